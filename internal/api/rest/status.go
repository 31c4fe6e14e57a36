package rest

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"media-transcription-proxy/internal/observability/logging"
	"media-transcription-proxy/internal/service/store"
)

// Status handles GET /transcription-status/{resultId}. A 404 means the result
// is not ready yet (or has expired).
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "resultId")
	log := logging.WithResult("rest-status", middleware.GetReqID(r.Context()), resultID)

	result, err := h.store.Get(r.Context(), resultID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.metrics.RecordStatusLookup("pending")
		writeMessage(w, http.StatusNotFound, "Transcription not found")
	case err != nil:
		log.Error().Err(err).Msg("Status lookup failed")
		h.metrics.RecordStatusLookup("error")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	default:
		log.Debug().Msg("Transcription retrieved")
		h.metrics.RecordStatusLookup("found")
		writeJSON(w, http.StatusOK, result)
	}
}
