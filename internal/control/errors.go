package control

import "errors"

var (
	// ErrEmptyPresentation is returned when starting a session for a
	// presentation with no slides.
	ErrEmptyPresentation = errors.New("presentation has no slides")

	// ErrInvalidSlide is returned when a jump targets a slide that does
	// not belong to the session's presentation.
	ErrInvalidSlide = errors.New("slide does not belong to this session's presentation")
)
