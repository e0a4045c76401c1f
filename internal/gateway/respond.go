package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/control"
	"github.com/slidecast/slidecast/internal/ingest"
	"github.com/slidecast/slidecast/internal/store"
)

// respondJSON writes v as a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

// respondError writes the JSON error envelope {"error": code}.
func respondError(w http.ResponseWriter, status int, code string) {
	respondJSON(w, status, map[string]string{"error": code})
}

// respondServiceError maps service sentinel errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, store.ErrSessionEnded):
		respondError(w, http.StatusGone, "session_ended")
	case errors.Is(err, store.ErrDuplicateResponse):
		respondError(w, http.StatusConflict, "duplicate_response")
	case errors.Is(err, ingest.ErrSlideNotActive):
		respondError(w, http.StatusConflict, "slide_not_active")
	case errors.Is(err, ingest.ErrInvalidAnswer):
		respondError(w, http.StatusBadRequest, "invalid_answer")
	case errors.Is(err, control.ErrEmptyPresentation):
		respondError(w, http.StatusBadRequest, "empty_presentation")
	case errors.Is(err, control.ErrInvalidSlide):
		respondError(w, http.StatusBadRequest, "invalid_slide")
	default:
		log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal")
	}
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
