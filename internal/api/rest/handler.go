// Package rest implements the HTTP endpoints of the transcription proxy.
package rest

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"

	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/observability/metrics"
	"media-transcription-proxy/internal/service/store"
	"media-transcription-proxy/internal/service/transcribe"
)

const (
	RouteTranscribe = "/transcribe"
	RouteCallback   = "/transcription-callback"
	RouteStatus     = "/transcription-status/{resultId}"

	// formOverhead is the allowance for multipart framing and text fields on
	// top of the upload limit. Requests declaring more are rejected from the
	// header; files within formOverhead of the limit are caught while reading.
	formOverhead = 64 << 10

	// maxMemory is how much of a multipart form is kept in memory before
	// spilling file parts to disk.
	maxMemory = 32 << 20

	defaultCallbackMaxBytes = 32 << 20
)

// Transcriber runs a transcription request.
type Transcriber interface {
	Transcribe(ctx context.Context, requestID string, in transcribe.Input) (*transcribe.Response, error)
}

// CompletedPublisher receives an event for every stored callback result.
type CompletedPublisher interface {
	PublishCompleted(ctx context.Context, ev models.TranscriptionCompleted) error
}

type Options struct {
	// CallbackSecret authenticates provider callbacks. Empty rejects all.
	CallbackSecret   string
	MaxUploadBytes   int64
	CallbackMaxBytes int64
	Metrics          *metrics.Metrics
}

// Handler serves the transcription, callback and status endpoints.
type Handler struct {
	transcriber Transcriber
	store       store.Store
	publisher   CompletedPublisher
	opts        Options
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewHandler wires the endpoints. publisher may be nil.
func NewHandler(t Transcriber, s store.Store, publisher CompletedPublisher, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = transcribe.DefaultMaxBytes
	}
	if opts.CallbackMaxBytes <= 0 {
		opts.CallbackMaxBytes = defaultCallbackMaxBytes
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Handler{
		transcriber: t,
		store:       s,
		publisher:   publisher,
		opts:        opts,
		metrics:     m,
		now:         time.Now,
	}
}

// Register mounts the endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Post(RouteTranscribe, h.Transcribe)
	r.Post(RouteCallback, h.Callback)
	r.Get(RouteStatus, h.Status)
}
