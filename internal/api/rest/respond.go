package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"media-transcription-proxy/internal/service/transcribe"
)

type errorBody struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

// writeError renders transcription failures; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var te *transcribe.Error
	if !errors.As(err, &te) {
		writeMessage(w, http.StatusInternalServerError, transcribe.MsgInternal)
		return
	}
	body := errorBody{Message: te.Message, Details: te.Details}
	if te.Kind == transcribe.KindUpstream {
		body.Status = te.UpstreamStatus
	}
	status := te.Status
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, body)
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
