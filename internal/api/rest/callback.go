package rest

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/observability/logging"
	"media-transcription-proxy/internal/schema"
)

type callbackResponse struct {
	Success  bool   `json:"success"`
	ResultID string `json:"resultId"`
}

// Callback handles POST /transcription-callback. The provider pushes a finished
// transcript; it is normalized once and stored under the id the client polls.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	log := logging.WithRequest("rest-callback", reqID)

	if h.opts.CallbackSecret == "" {
		log.Error().Msg("Callback secret is not configured, rejecting callback")
	}
	if !authorized(r.Header.Get("Authorization"), h.opts.CallbackSecret) {
		log.Warn().Str("remoteAddr", r.RemoteAddr).Msg("Unauthorized callback")
		h.metrics.RecordCallback("unauthorized")
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.CallbackMaxBytes))
	if err != nil {
		if isTooLarge(err) {
			h.metrics.RecordCallback("too_large")
			writeMessage(w, http.StatusRequestEntityTooLarge, "Callback body too large")
			return
		}
		log.Error().Err(err).Msg("Failed to read callback body")
		h.metrics.RecordCallback("error")
		writeMessage(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.metrics.RecordCallback("empty")
		writeMessage(w, http.StatusBadRequest, "Empty request body")
		return
	}

	parsed, meta := schema.ParseCallback(body)
	if meta.Degraded {
		log.Warn().Int("bodyBytes", len(body)).Msg("Callback body is not a JSON object, storing raw text")
	} else if meta.SegmentsRepaired {
		log.Warn().Msg("Callback carried no usable segments, synthesized one")
	}
	result := schema.Normalize(parsed)
	if err := schema.Validate(result); err != nil {
		log.Error().Err(err).Msg("Normalized callback result is invalid")
		h.metrics.RecordCallback("error")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resultID := strings.TrimSpace(r.URL.Query().Get("resultId"))
	if resultID == "" {
		resultID = meta.TaskID
	}

	ctx := r.Context()
	if resultID != "" {
		err = h.store.StoreAs(ctx, resultID, result)
	} else {
		resultID, err = h.store.Store(ctx, result)
	}
	if err != nil {
		log.Error().Err(err).Str("resultId", resultID).Msg("Failed to store callback result")
		h.metrics.RecordCallback("error")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	rlog := logging.WithResult("rest-callback", reqID, resultID)
	rlog.Info().
		Int("segments", len(result.Segments)).
		Bool("degraded", meta.Degraded).
		Msg("Callback result stored")
	h.metrics.RecordCallback(callbackOutcome(meta))

	if h.publisher != nil {
		ev := models.TranscriptionCompleted{
			EventType:    models.EventTypeCompleted,
			ResultID:     resultID,
			TextLength:   len(result.Text),
			SegmentCount: len(result.Segments),
			Degraded:     meta.Degraded,
			Timestamp:    h.now().UnixMilli(),
		}
		if err := h.publisher.PublishCompleted(ctx, ev); err != nil {
			rlog.Warn().Err(err).Msg("Failed to publish completed event")
		}
	}

	writeJSON(w, http.StatusOK, callbackResponse{Success: true, ResultID: resultID})
}

func callbackOutcome(meta schema.CallbackMeta) string {
	switch {
	case meta.Degraded:
		return "degraded"
	case meta.SegmentsRepaired:
		return "repaired"
	default:
		return "stored"
	}
}

// authorized accepts "Bearer <secret>" with any casing of the scheme, or the
// bare secret. An empty secret authorizes nothing.
func authorized(header, secret string) bool {
	if secret == "" {
		return false
	}
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
