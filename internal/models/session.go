package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle state of a live session.
// The transition is monotonic: active -> ended, never back.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// Session represents one live run of a presentation. The active slide
// pointer is the single piece of shared mutable state in the system;
// only the presenter control plane writes it.
type Session struct {
	ID             uuid.UUID     `json:"id"`
	PresentationID uuid.UUID     `json:"presentation_id"`
	Code           string        `json:"code"`
	Status         SessionStatus `json:"status"`
	ActiveSlideID  *uuid.UUID    `json:"active_slide_id,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
}

// Ended reports whether the session has reached its terminal state.
func (s *Session) Ended() bool {
	return s.Status == SessionStatusEnded
}

// Presentation is an ordered collection of slides owned by a presenter.
type Presentation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
