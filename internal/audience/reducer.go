// Package audience implements the client-side synchronization engine:
// each connected audience member converges on the presenter's
// (status, active slide) within bounded latency, fed by two redundant
// detection channels - a best-effort push subscription and a periodic
// reconciliation poll - both driving the same pure reducer.
package audience

import (
	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/models"
)

// Phase is the audience client's position in its state machine.
type Phase string

const (
	// PhaseWaiting means no slide is active yet ("waiting for presenter").
	// A valid, stable state, not an error.
	PhaseWaiting Phase = "waiting"

	// PhaseShowing means the client is displaying the active slide and
	// has not answered it.
	PhaseShowing Phase = "showing"

	// PhaseSubmitted means the client answered the active slide and is
	// waiting for the next one.
	PhaseSubmitted Phase = "submitted"

	// PhaseEnded is terminal.
	PhaseEnded Phase = "ended"
)

// State is the client state: a phase plus the slide it refers to.
// SlideID is uuid.Nil in the waiting and ended phases.
type State struct {
	Phase   Phase
	SlideID uuid.UUID
}

// Observation is one authoritative (status, active slide) reading of the
// session, regardless of which channel delivered it.
type Observation struct {
	Status        models.SessionStatus
	ActiveSlideID *uuid.UUID
}

// Reduce applies an observation to the current state and reports whether
// anything changed. It is pure: both detection channels feed it, neither
// is privileged, and applying the same observation twice never produces
// a second transition. answered reports whether the local participant
// has already responded to a slide; it is only consulted when the
// observation moves the client onto a different slide.
func Reduce(cur State, obs Observation, answered func(uuid.UUID) bool) (State, bool) {
	if cur.Phase == PhaseEnded {
		// Terminal; nothing can move the client out.
		return cur, false
	}
	if obs.Status == models.SessionStatusEnded {
		return State{Phase: PhaseEnded}, true
	}
	if obs.ActiveSlideID == nil {
		if cur.Phase == PhaseWaiting {
			return cur, false
		}
		return State{Phase: PhaseWaiting}, true
	}

	slideID := *obs.ActiveSlideID
	if (cur.Phase == PhaseShowing || cur.Phase == PhaseSubmitted) && cur.SlideID == slideID {
		// Same slide observed again, nothing to do.
		return cur, false
	}
	if answered != nil && answered(slideID) {
		return State{Phase: PhaseSubmitted, SlideID: slideID}, true
	}
	return State{Phase: PhaseShowing, SlideID: slideID}, true
}
