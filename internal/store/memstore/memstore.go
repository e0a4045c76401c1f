// Package memstore is an in-memory implementation of the storage surface,
// used for development mode and hermetic tests. Responses are kept in an
// append-only slice, mirroring the append-only contract of the durable
// store; the (session, slide, participant) uniqueness check happens under
// the same lock as the append, so it is atomic with respect to concurrent
// submitters.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/joincode"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/store"
)

type responseKey struct {
	sessionID     uuid.UUID
	slideID       uuid.UUID
	participantID string
}

type Store struct {
	mu            sync.RWMutex
	presentations map[uuid.UUID]models.Presentation
	slides        map[uuid.UUID]models.Slide
	sessions      map[uuid.UUID]models.Session
	responses     []models.Response
	responseIndex map[responseKey]struct{}
}

func New() *Store {
	return &Store{
		presentations: make(map[uuid.UUID]models.Presentation),
		slides:        make(map[uuid.UUID]models.Slide),
		sessions:      make(map[uuid.UUID]models.Session),
		responseIndex: make(map[responseKey]struct{}),
	}
}

func (s *Store) CreatePresentation(_ context.Context, title string) (*models.Presentation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.Presentation{ID: uuid.New(), Title: title, CreatedAt: time.Now()}
	s.presentations[p.ID] = p
	return &p, nil
}

func (s *Store) GetPresentation(_ context.Context, id uuid.UUID) (*models.Presentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presentations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateSlide(_ context.Context, params store.CreateSlideParams) (*models.Slide, error) {
	slide := models.Slide{
		ID:             uuid.New(),
		PresentationID: params.PresentationID,
		Type:           params.Type,
		Title:          params.Title,
		Description:    params.Description,
		Position:       params.Position,
		Settings:       params.Settings,
	}
	if err := slide.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slides[slide.ID] = slide
	return &slide, nil
}

func (s *Store) GetSlide(_ context.Context, id uuid.UUID) (*models.Slide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slide, ok := s.slides[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &slide, nil
}

func (s *Store) SlidesByPresentation(_ context.Context, presentationID uuid.UUID) ([]models.Slide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var slides []models.Slide
	for _, slide := range s.slides {
		if slide.PresentationID == presentationID {
			slides = append(slides, slide)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].Position < slides[j].Position })
	return slides, nil
}

func (s *Store) CreateSession(_ context.Context, params store.CreateSessionParams) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := models.Session{
		ID:             uuid.New(),
		PresentationID: params.PresentationID,
		Code:           joincode.Normalize(params.Code),
		Status:         models.SessionStatusActive,
		ActiveSlideID:  params.ActiveSlideID,
		StartedAt:      time.Now(),
	}
	s.sessions[sess.ID] = sess
	return &sess, nil
}

func (s *Store) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) GetSessionByCode(_ context.Context, code string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code = joincode.Normalize(code)
	var newest *models.Session
	for id := range s.sessions {
		sess := s.sessions[id]
		if sess.Code != code {
			continue
		}
		if newest == nil || sess.StartedAt.After(newest.StartedAt) {
			newest = &sess
		}
	}
	if newest == nil {
		return nil, store.ErrNotFound
	}
	out := *newest
	return &out, nil
}

func (s *Store) CodeActive(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code = joincode.Normalize(code)
	for _, sess := range s.sessions {
		if sess.Code == code && sess.Status == models.SessionStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateActiveSlide(_ context.Context, sessionID, slideID uuid.UUID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sess.Ended() {
		return nil, store.ErrSessionEnded
	}
	sess.ActiveSlideID = &slideID
	s.sessions[sessionID] = sess
	return &sess, nil
}

func (s *Store) EndSession(_ context.Context, sessionID uuid.UUID) (*models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if sess.Ended() {
		return &sess, false, nil
	}
	now := time.Now()
	sess.Status = models.SessionStatusEnded
	sess.EndedAt = &now
	s.sessions[sessionID] = sess
	return &sess, true, nil
}

func (s *Store) InsertResponse(_ context.Context, params store.InsertResponseParams) (*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := responseKey{params.SessionID, params.SlideID, params.ParticipantID}
	if _, exists := s.responseIndex[key]; exists {
		return nil, store.ErrDuplicateResponse
	}

	resp := models.Response{
		ID:            uuid.New(),
		SessionID:     params.SessionID,
		SlideID:       params.SlideID,
		ParticipantID: params.ParticipantID,
		Answer:        params.Answer,
		CreatedAt:     time.Now(),
	}
	s.responseIndex[key] = struct{}{}
	s.responses = append(s.responses, resp)
	return &resp, nil
}

func (s *Store) HasResponse(_ context.Context, sessionID, slideID uuid.UUID, participantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.responseIndex[responseKey{sessionID, slideID, participantID}]
	return exists, nil
}

func (s *Store) ResponsesBySession(_ context.Context, sessionID uuid.UUID) ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Response
	for _, resp := range s.responses {
		if resp.SessionID == sessionID {
			out = append(out, resp)
		}
	}
	return out, nil
}

func (s *Store) ResponsesBySlide(_ context.Context, sessionID, slideID uuid.UUID) ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Response
	for _, resp := range s.responses {
		if resp.SessionID == sessionID && resp.SlideID == slideID {
			out = append(out, resp)
		}
	}
	return out, nil
}

func (s *Store) ParticipantCount(_ context.Context, sessionID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, resp := range s.responses {
		if resp.SessionID == sessionID {
			seen[resp.ParticipantID] = struct{}{}
		}
	}
	return len(seen), nil
}
