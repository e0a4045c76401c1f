// Package ingest accepts answer submissions: one response per
// (session, slide, participant), enforced by the store's uniqueness
// constraint rather than a read-then-write check in application code.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/realtime"
	"github.com/slidecast/slidecast/internal/store"
)

var (
	// ErrSlideNotActive is returned when the submission targets a slide
	// other than the session's current one.
	ErrSlideNotActive = errors.New("slide is not the active slide")

	// ErrInvalidAnswer is returned when the answer payload's shape does
	// not match the slide's type.
	ErrInvalidAnswer = errors.New("answer does not match slide type")
)

// Store defines what the ingest path needs from storage.
type Store interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSlide(ctx context.Context, id uuid.UUID) (*models.Slide, error)
	InsertResponse(ctx context.Context, params store.InsertResponseParams) (*models.Response, error)
}

// SubmitRequest is one answer submission.
type SubmitRequest struct {
	SessionID     uuid.UUID     `json:"session_id"`
	SlideID       uuid.UUID     `json:"slide_id"`
	ParticipantID string        `json:"participant_id"`
	Answer        models.Answer `json:"answer"`
}

// Service validates and persists submissions. It never blocks on
// aggregation; presenter-side readers recompute from the response set on
// their own schedule.
type Service struct {
	store Store
	bus   realtime.Publisher
}

func NewService(store Store, bus realtime.Publisher) *Service {
	return &Service{store: store, bus: bus}
}

// Submit persists one response. Returns store.ErrSessionEnded for a
// terminal session, ErrSlideNotActive when the slide is not current,
// ErrInvalidAnswer on a shape mismatch, and store.ErrDuplicateResponse
// when this participant already answered the slide. The duplicate case
// is the expected outcome of an idempotent retry, not a failure.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Response, error) {
	if req.ParticipantID == "" {
		return nil, fmt.Errorf("participant id is required")
	}

	sess, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	// Fail fast on ended sessions. A session ending between this read and
	// the insert below is a tolerated race; at worst one late response
	// lands, and the response set stays consistent either way.
	if sess.Ended() {
		return nil, store.ErrSessionEnded
	}
	if sess.ActiveSlideID == nil || *sess.ActiveSlideID != req.SlideID {
		return nil, ErrSlideNotActive
	}

	slide, err := s.store.GetSlide(ctx, req.SlideID)
	if err != nil {
		return nil, err
	}
	if !slide.Type.Interactive() {
		return nil, ErrSlideNotActive
	}
	if !req.Answer.MatchesType(slide.Type) {
		return nil, ErrInvalidAnswer
	}

	resp, err := s.store.InsertResponse(ctx, store.InsertResponseParams{
		SessionID:     req.SessionID,
		SlideID:       req.SlideID,
		ParticipantID: req.ParticipantID,
		Answer:        req.Answer,
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("session_id", req.SessionID.String()).
		Str("slide_id", req.SlideID.String()).
		Msg("response accepted")

	if err := s.bus.Publish(ctx, realtime.ResponseCreated(resp)); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", req.SessionID.String()).
			Msg("push announce failed for response")
	}
	return resp, nil
}
