package models

import (
	"time"

	"github.com/google/uuid"
)

// Answer is the variant payload of a response. Exactly one of the field
// groups is populated, matching the owning slide's type:
//
//	multiple_choice: {"selected":[0,2]}
//	scale:           {"value":4}
//	word_cloud:      {"words":["go","fast"]}
//	open_ended:      {"text":"..."}
//
// The wire format keys double as the variant tag.
type Answer struct {
	Selected []int    `json:"selected,omitempty"`
	Value    *int     `json:"value,omitempty"`
	Words    []string `json:"words,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// MatchesType reports whether the populated variant of the answer is the
// one a slide of type t expects. Range checks (option index bounds, scale
// bounds) are intentionally not performed here; aggregation tolerates
// out-of-range values.
func (a Answer) MatchesType(t SlideType) bool {
	switch t {
	case SlideTypeMultipleChoice:
		return a.Selected != nil
	case SlideTypeScale:
		return a.Value != nil
	case SlideTypeWordCloud:
		return a.Words != nil
	case SlideTypeOpenEnded:
		return a.Text != ""
	}
	return false
}

// Response is one participant's immutable answer to one slide within one
// session. At most one response exists per (session, slide, participant);
// that uniqueness is enforced at the storage layer.
type Response struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	SlideID       uuid.UUID `json:"slide_id"`
	ParticipantID string    `json:"participant_id"`
	Answer        Answer    `json:"answer"`
	CreatedAt     time.Time `json:"created_at"`
}
