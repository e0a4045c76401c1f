// Package control is the presenter control plane: the only writer of
// session lifecycle transitions and the active slide pointer.
package control

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/joincode"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/realtime"
	"github.com/slidecast/slidecast/internal/store"
)

// Direction selects relative slide navigation.
type Direction string

const (
	DirectionNext Direction = "next"
	DirectionPrev Direction = "prev"
)

// codeMintAttempts bounds retries when a freshly minted join code
// collides with a concurrently active session.
const codeMintAttempts = 5

// SessionStore defines what the control plane needs from storage.
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	CreateSession(ctx context.Context, params store.CreateSessionParams) (*models.Session, error)
	UpdateActiveSlide(ctx context.Context, sessionID, slideID uuid.UUID) (*models.Session, error)
	EndSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, bool, error)
	CodeActive(ctx context.Context, code string) (bool, error)
	SlidesByPresentation(ctx context.Context, presentationID uuid.UUID) ([]models.Slide, error)
}

// Service mutates session state and announces every successful write on
// the push channel. Publishing is best-effort: a publish failure is
// logged and swallowed, because the audience poll loop picks the change
// up within one interval regardless.
type Service struct {
	store SessionStore
	bus   realtime.Publisher
}

func NewService(store SessionStore, bus realtime.Publisher) *Service {
	return &Service{store: store, bus: bus}
}

// StartSession creates an active session for the presentation with the
// active slide pointer on the first slide by position, and mints a join
// code unique among currently-active sessions.
func (s *Service) StartSession(ctx context.Context, presentationID uuid.UUID) (*models.Session, error) {
	slides, err := s.store.SlidesByPresentation(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	if len(slides) == 0 {
		return nil, ErrEmptyPresentation
	}

	code, err := s.mintCode(ctx)
	if err != nil {
		return nil, err
	}

	first := slides[0].ID
	sess, err := s.store.CreateSession(ctx, store.CreateSessionParams{
		PresentationID: presentationID,
		Code:           code,
		ActiveSlideID:  &first,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("presentation_id", presentationID.String()).
		Str("code", sess.Code).
		Int("slides", len(slides)).
		Msg("session started")

	s.announce(ctx, sess)
	return sess, nil
}

// Advance moves the active slide pointer one position forward or back.
// At the first or last slide the call is a silent no-op and returns the
// unchanged session.
func (s *Service) Advance(ctx context.Context, sessionID uuid.UUID, dir Direction) (*models.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, store.ErrSessionEnded
	}

	slides, err := s.store.SlidesByPresentation(ctx, sess.PresentationID)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}

	idx := activeIndex(slides, sess.ActiveSlideID)
	switch dir {
	case DirectionNext:
		idx++
	case DirectionPrev:
		idx--
	default:
		return nil, fmt.Errorf("unknown direction %q", dir)
	}
	if idx < 0 || idx >= len(slides) {
		// Boundary: stay put rather than erroring.
		return sess, nil
	}

	return s.moveTo(ctx, sessionID, slides[idx].ID)
}

// GoTo jumps the active slide pointer directly to slideID, which must
// belong to the session's presentation.
func (s *Service) GoTo(ctx context.Context, sessionID, slideID uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, store.ErrSessionEnded
	}

	slides, err := s.store.SlidesByPresentation(ctx, sess.PresentationID)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	found := false
	for _, slide := range slides {
		if slide.ID == slideID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrInvalidSlide
	}

	return s.moveTo(ctx, sessionID, slideID)
}

// EndSession transitions the session to its terminal state. Idempotent:
// ending an already-ended session returns it unchanged.
func (s *Service) EndSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	sess, transitioned, err := s.store.EndSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if transitioned {
		log.Info().Str("session_id", sessionID.String()).Msg("session ended")
		s.announce(ctx, sess)
	}
	return sess, nil
}

func (s *Service) moveTo(ctx context.Context, sessionID, slideID uuid.UUID) (*models.Session, error) {
	sess, err := s.store.UpdateActiveSlide(ctx, sessionID, slideID)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("slide_id", slideID.String()).
		Msg("active slide updated")

	s.announce(ctx, sess)
	return sess, nil
}

func (s *Service) mintCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeMintAttempts; attempt++ {
		code, err := joincode.Mint()
		if err != nil {
			return "", fmt.Errorf("mint join code: %w", err)
		}
		active, err := s.store.CodeActive(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check join code: %w", err)
		}
		if !active {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not mint a unique join code after %d attempts", codeMintAttempts)
}

func (s *Service) announce(ctx context.Context, sess *models.Session) {
	if err := s.bus.Publish(ctx, realtime.SessionUpdated(sess)); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sess.ID.String()).
			Msg("push announce failed, poll will correct")
	}
}

func activeIndex(slides []models.Slide, activeID *uuid.UUID) int {
	if activeID == nil {
		return -1
	}
	for i, slide := range slides {
		if slide.ID == *activeID {
			return i
		}
	}
	return -1
}
