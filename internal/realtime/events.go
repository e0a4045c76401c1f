// Package realtime is the best-effort push channel. Producers publish
// row-change events scoped to a session; consumers subscribe by session
// id. Delivery is at-most-effort by contract — dropped events are
// expected and are corrected by the audience engine's polling backstop,
// so nothing in this package retries, acknowledges or replays.
package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/models"
)

// EventType identifies the kind of row change an event describes.
type EventType string

const (
	// EventSessionUpdated fires after any write to a session row: slide
	// navigation and lifecycle transitions alike.
	EventSessionUpdated EventType = "session.updated"

	// EventResponseCreated fires after a response insert. Consumed by the
	// presenter side to recompute aggregates.
	EventResponseCreated EventType = "response.created"
)

// SessionState is the post-update image of the fields the audience
// engine converges on.
type SessionState struct {
	Status        models.SessionStatus `json:"status"`
	ActiveSlideID *uuid.UUID           `json:"active_slide_id,omitempty"`
}

// ResponseRef identifies a newly inserted response. The answer payload is
// deliberately omitted; aggregation readers re-fetch from the store.
type ResponseRef struct {
	ResponseID    uuid.UUID `json:"response_id"`
	SlideID       uuid.UUID `json:"slide_id"`
	ParticipantID string    `json:"participant_id"`
}

// Event is the envelope pushed over the channel.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	SessionID uuid.UUID     `json:"session_id"`
	Timestamp time.Time     `json:"timestamp"`
	Session   *SessionState `json:"session,omitempty"`
	Response  *ResponseRef  `json:"response,omitempty"`
}

// SessionUpdated builds a session.updated event from a session row image.
func SessionUpdated(sess *models.Session) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      EventSessionUpdated,
		SessionID: sess.ID,
		Timestamp: time.Now(),
		Session: &SessionState{
			Status:        sess.Status,
			ActiveSlideID: sess.ActiveSlideID,
		},
	}
}

// ResponseCreated builds a response.created event.
func ResponseCreated(resp *models.Response) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      EventResponseCreated,
		SessionID: resp.SessionID,
		Timestamp: time.Now(),
		Response: &ResponseRef{
			ResponseID:    resp.ID,
			SlideID:       resp.SlideID,
			ParticipantID: resp.ParticipantID,
		},
	}
}
