package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SlideType defines the kind of a slide. The type determines the shape
// of both the settings payload and every answer submitted against it.
type SlideType string

const (
	SlideTypeWelcome        SlideType = "welcome"
	SlideTypeContent        SlideType = "content"
	SlideTypeMultipleChoice SlideType = "multiple_choice"
	SlideTypeScale          SlideType = "scale"
	SlideTypeWordCloud      SlideType = "word_cloud"
	SlideTypeOpenEnded      SlideType = "open_ended"
)

// ValidSlideType reports whether t is a member of the closed type set.
func ValidSlideType(t SlideType) bool {
	switch t {
	case SlideTypeWelcome, SlideTypeContent, SlideTypeMultipleChoice,
		SlideTypeScale, SlideTypeWordCloud, SlideTypeOpenEnded:
		return true
	}
	return false
}

// Interactive reports whether slides of type t accept responses.
func (t SlideType) Interactive() bool {
	switch t {
	case SlideTypeMultipleChoice, SlideTypeScale, SlideTypeWordCloud, SlideTypeOpenEnded:
		return true
	}
	return false
}

// Default settings applied when a slide's settings omit a field.
const (
	DefaultScaleMin      = 1
	DefaultScaleMax      = 5
	DefaultMaxWords      = 3
	DefaultMaxTextLength = 500
)

// SlideSettings holds the JSONB settings payload for a slide. It is a
// variant keyed by the slide's type; fields for other types are left at
// their zero value and omitted on the wire.
type SlideSettings struct {
	// multiple_choice
	Options       []string `json:"options,omitempty"`
	AllowMultiple bool     `json:"allow_multiple,omitempty"`

	// scale
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
	MinLabel string `json:"min_label,omitempty"`
	MaxLabel string `json:"max_label,omitempty"`

	// word_cloud
	MaxWords int `json:"max_words,omitempty"`

	// open_ended
	MaxLength int `json:"max_length,omitempty"`

	// content
	Body     string `json:"body,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ScaleRange returns the scale bounds with defaults applied.
func (s SlideSettings) ScaleRange() (min, max int) {
	min, max = s.Min, s.Max
	if min == 0 {
		min = DefaultScaleMin
	}
	if max == 0 {
		max = DefaultScaleMax
	}
	return min, max
}

// WordLimit returns the word-cloud submission limit with the default applied.
func (s SlideSettings) WordLimit() int {
	if s.MaxWords == 0 {
		return DefaultMaxWords
	}
	return s.MaxWords
}

// TextLimit returns the open-ended length limit with the default applied.
func (s SlideSettings) TextLimit() int {
	if s.MaxLength == 0 {
		return DefaultMaxTextLength
	}
	return s.MaxLength
}

// Slide is one question or content unit within a presentation.
// Position defines a strict total order within the presentation.
type Slide struct {
	ID             uuid.UUID     `json:"id"`
	PresentationID uuid.UUID     `json:"presentation_id"`
	Type           SlideType     `json:"type"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Position       int           `json:"position"`
	Settings       SlideSettings `json:"settings"`
}

// ErrInvalidSettings marks a slide whose settings do not fit its type.
var ErrInvalidSettings = errors.New("invalid slide settings")

// Validate checks that the slide's settings make sense for its type.
func (s *Slide) Validate() error {
	if !ValidSlideType(s.Type) {
		return fmt.Errorf("%w: unknown slide type %q", ErrInvalidSettings, s.Type)
	}
	switch s.Type {
	case SlideTypeMultipleChoice:
		if len(s.Settings.Options) == 0 {
			return fmt.Errorf("%w: multiple_choice slide requires at least one option", ErrInvalidSettings)
		}
	case SlideTypeScale:
		min, max := s.Settings.ScaleRange()
		if min >= max {
			return fmt.Errorf("%w: scale slide requires min < max, got [%d,%d]", ErrInvalidSettings, min, max)
		}
	}
	return nil
}
