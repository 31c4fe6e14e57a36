package rest

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"media-transcription-proxy/internal/observability/logging"
	"media-transcription-proxy/internal/service/transcribe"
)

// Transcribe handles POST /transcribe. The form carries the media in the
// "file" field, either as a file part or as a URL string.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	log := logging.WithRequest("rest-transcribe", reqID)

	limit := h.opts.MaxUploadBytes
	// Reject from the header alone; the body is never read.
	if r.ContentLength > limit+formOverhead {
		log.Warn().Int64("contentLength", r.ContentLength).Msg("Upload rejected by Content-Length")
		h.metrics.RecordRejected("too_large")
		writeMessage(w, http.StatusRequestEntityTooLarge, transcribe.OverLimitMessage(limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if isTooLarge(err) {
			h.metrics.RecordRejected("too_large")
			writeMessage(w, http.StatusRequestEntityTooLarge, transcribe.OverLimitMessage(limit))
			return
		}
		log.Debug().Err(err).Msg("Failed to parse multipart form")
		h.metrics.RecordRejected("invalid")
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn().Err(err).Msg("Failed to remove multipart temp files")
		}
	}()

	in := transcribe.Input{
		Size: -1,
		Options: transcribe.RawOptions{
			Prompt:      r.FormValue("prompt"),
			Language:    r.FormValue("language"),
			MinSpeakers: r.FormValue("min_speakers"),
			MaxSpeakers: r.FormValue("max_speakers"),
			Translate:   r.FormValue("translate"),
		},
	}

	f, fh, err := r.FormFile("file")
	switch {
	case err == nil:
		defer f.Close()
		in.File = f
		in.FileName = fh.Filename
		in.ContentType = fh.Header.Get("Content-Type")
		in.Size = fh.Size
	case errors.Is(err, http.ErrMissingFile):
		in.URL = r.FormValue("file")
		if in.URL == "" {
			in.URL = r.FormValue("url")
		}
	default:
		log.Debug().Err(err).Msg("Failed to open uploaded file")
		writeMessage(w, http.StatusBadRequest, "Invalid file input")
		return
	}

	log.Debug().
		Str("fileName", in.FileName).
		Str("contentType", in.ContentType).
		Int64("size", in.Size).
		Bool("url", in.URL != "").
		Str("language", in.Options.Language).
		Msg("Transcription request received")

	resp, err := h.transcriber.Transcribe(r.Context(), reqID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	if resp.Result != nil {
		writeJSON(w, http.StatusOK, resp.Result)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ResultID string `json:"resultId"`
	}{resp.ResultID})
}
