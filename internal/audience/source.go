package audience

import (
	"context"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/models"
)

// sessionReader is the slice of the store the snapshot source needs.
type sessionReader interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	HasResponse(ctx context.Context, sessionID, slideID uuid.UUID, participantID string) (bool, error)
}

// StoreSource adapts a store into a SnapshotSource for engines running
// in the same process as the server (and for tests).
type StoreSource struct {
	store sessionReader
}

func NewStoreSource(store sessionReader) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) SessionState(ctx context.Context, sessionID uuid.UUID) (Observation, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Observation{}, err
	}
	return Observation{Status: sess.Status, ActiveSlideID: sess.ActiveSlideID}, nil
}

func (s *StoreSource) HasResponse(ctx context.Context, sessionID, slideID uuid.UUID, participantID string) (bool, error) {
	return s.store.HasResponse(ctx, sessionID, slideID, participantID)
}
