// Package transcribe validates transcription requests, forwards them to the
// configured provider and normalizes whatever the provider answers.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"media-transcription-proxy/internal/config"
	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/observability/logging"
	"media-transcription-proxy/internal/observability/metrics"
	"media-transcription-proxy/internal/schema"
	"media-transcription-proxy/internal/service/provider"
)

const (
	SourceFile = "file"
	SourceURL  = "url"

	DefaultMaxBytes    = 100 * 1024 * 1024
	DefaultURLMaxBytes = 1024 * 1024 * 1024

	// sniffBytes is how much of an upload is inspected to detect its type.
	sniffBytes = 3072
)

var mediaExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".aac": true, ".opus": true,
	".ogg": true, ".m4a": true, ".mp4": true, ".mpeg": true, ".mpg": true,
	".mov": true, ".webm": true, ".mkv": true, ".avi": true, ".wma": true,
}

var mediaHosts = []string{
	"youtube.com", "youtu.be", "vimeo.com", "soundcloud.com",
	"drive.google.com", "dropbox.com", "storage.googleapis.com", "amazonaws.com",
}

type Config struct {
	MaxBytes     int64
	URLMaxBytes  int64
	AllowedTypes []string

	// CallbackURL is attached to provider requests when non-empty.
	CallbackURL string
}

// EventPublisher receives accepted events for asynchronous tasks.
type EventPublisher interface {
	PublishAccepted(ctx context.Context, ev models.TranscriptionAccepted) error
}

// Input is one transcription request as received from a client.
type Input struct {
	File        io.Reader
	FileName    string
	ContentType string
	Size        int64 // -1 when unknown

	URL string

	Options RawOptions
}

// RawOptions are the optional form fields, unparsed.
type RawOptions struct {
	Prompt      string
	Language    string
	MinSpeakers string
	MaxSpeakers string
	Translate   string
}

// Response carries either a finished transcript or the id to poll.
type Response struct {
	Result   *models.TranscriptionResult
	ResultID string
}

// Service handles POST /transcribe requests.
type Service struct {
	provider  provider.Provider
	cfg       Config
	publisher EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a Service. publisher may be nil; nil metrics falls back to
// metrics.DefaultMetrics.
func New(p provider.Provider, cfg Config, publisher EventPublisher, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.URLMaxBytes <= 0 {
		cfg.URLMaxBytes = DefaultURLMaxBytes
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = config.DefaultAllowedTypes
	}
	return &Service{
		provider:  p,
		cfg:       cfg,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// Transcribe validates the input, calls the provider once and classifies its
// answer. Failures are returned as *Error.
func (s *Service) Transcribe(ctx context.Context, requestID string, in Input) (*Response, error) {
	log := logging.WithRequest("transcribe", requestID)

	req, source, verr := s.validate(log, in)
	if verr != nil {
		s.reject(verr)
		return nil, verr
	}
	s.metrics.RecordSubmitted(source)

	log.Info().
		Str("source", source).
		Str("provider", s.provider.Name()).
		Str("contentType", req.ContentType).
		Int64("size", req.Size).
		Bool("callback", req.Options.CallbackURL != "").
		Msg("Forwarding transcription request")

	start := s.now()
	outcome, err := s.provider.Transcribe(ctx, req)
	latency := s.now().Sub(start).Seconds()
	if err != nil {
		return nil, s.providerError(log, err, req)
	}
	s.metrics.RecordProviderCall(s.provider.Name(), outcome.Kind(), latency)

	switch o := outcome.(type) {
	case provider.Direct:
		result := schema.Normalize(models.TranscriptionResult{Text: o.Text, Segments: o.Segments})
		log.Info().Int("segments", len(result.Segments)).Msg("Transcription completed synchronously")
		return &Response{Result: &result}, nil

	case provider.AsyncTask:
		log.Info().Str("resultId", o.ID).Msg("Transcription accepted for asynchronous processing")
		s.publishAccepted(ctx, log, o.ID, source)
		return &Response{ResultID: o.ID}, nil

	case provider.PlainText:
		result := schema.Normalize(models.TranscriptionResult{Text: o.Text})
		log.Info().Msg("Provider returned plain text")
		return &Response{Result: &result}, nil

	case provider.Unrecognized:
		log.Error().
			Int("bodyBytes", len(o.Body)).
			Msg("Unrecognized provider response")
		log.Debug().Bytes("body", truncate(o.Body, 512)).Msg("Unrecognized provider body")
		return nil, &Error{Kind: KindUpstream, Status: http.StatusBadGateway, Message: MsgUnexpectedFormat}

	default:
		return nil, &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: MsgInternal}
	}
}

func (s *Service) validate(log zerolog.Logger, in Input) (provider.Request, string, *Error) {
	req := provider.Request{Options: s.parseOptions(log, in.Options)}
	req.Options.CallbackURL = s.cfg.CallbackURL

	if strings.TrimSpace(in.URL) != "" && in.File == nil {
		u, err := ValidateURL(in.URL, provider.URLSchemes(s.provider)...)
		if err != nil {
			return req, SourceURL, inputError(http.StatusBadRequest, MsgInvalidURL)
		}
		if !LooksLikeMedia(u) {
			log.Warn().Str("url", u.Redacted()).Msg("URL does not look like a media file")
		}
		req.URL = u.String()
		return req, SourceURL, nil
	}

	if in.File == nil {
		return req, SourceFile, inputError(http.StatusBadRequest, MsgNoInput)
	}

	file, ctype, err := s.resolveType(in.File, in.ContentType)
	if err != nil {
		return req, SourceFile, &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: MsgInternal, Err: err}
	}
	if !s.allowed(ctype) {
		display := ctype
		if display == "" {
			display = "unknown"
		}
		return req, SourceFile, inputError(http.StatusBadRequest, InvalidFormatMessage(display, s.cfg.AllowedTypes))
	}
	if in.Size > s.cfg.MaxBytes {
		return req, SourceFile, inputError(http.StatusRequestEntityTooLarge, OverLimitMessage(s.cfg.MaxBytes))
	}

	req.File = file
	req.FileName = in.FileName
	req.ContentType = ctype
	req.Size = in.Size
	return req, SourceFile, nil
}

// resolveType returns the media type to validate against. Missing or generic
// declared types are replaced by the sniffed type.
func (s *Service) resolveType(r io.Reader, declared string) (io.Reader, string, error) {
	ctype := baseType(declared)
	if ctype != "" && ctype != "application/octet-stream" {
		return r, ctype, nil
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	head = head[:n]
	detected := mimetype.Detect(head)

	ctype = baseType(detected.String())
	for _, a := range s.cfg.AllowedTypes {
		if detected.Is(a) {
			ctype = a
			break
		}
	}
	return io.MultiReader(bytes.NewReader(head), r), ctype, nil
}

func (s *Service) allowed(ctype string) bool {
	for _, a := range s.cfg.AllowedTypes {
		if strings.EqualFold(a, ctype) {
			return true
		}
	}
	return false
}

func (s *Service) parseOptions(log zerolog.Logger, raw RawOptions) provider.Options {
	opts := provider.Options{
		Prompt:   strings.TrimSpace(raw.Prompt),
		Language: strings.TrimSpace(raw.Language),
	}
	if t, err := strconv.ParseBool(strings.TrimSpace(raw.Translate)); err == nil {
		opts.Translate = t
	}

	minS, minOK := speakerCount(raw.MinSpeakers)
	maxS, maxOK := speakerCount(raw.MaxSpeakers)
	if (raw.MinSpeakers != "" && !minOK) || (raw.MaxSpeakers != "" && !maxOK) {
		log.Warn().
			Str("minSpeakers", raw.MinSpeakers).
			Str("maxSpeakers", raw.MaxSpeakers).
			Msg("Ignoring malformed speaker count")
	}
	if minOK && maxOK && minS > maxS {
		log.Warn().Int("minSpeakers", minS).Int("maxSpeakers", maxS).Msg("Ignoring speaker range with min > max")
		return opts
	}
	if minOK {
		opts.MinSpeakers = minS
	}
	if maxOK {
		opts.MaxSpeakers = maxS
	}
	return opts
}

func speakerCount(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Service) providerError(log zerolog.Logger, err error, req provider.Request) *Error {
	name := s.provider.Name()

	if errors.Is(err, provider.ErrMissingCredentials) {
		log.Error().Err(err).Str("provider", name).Msg("Provider credentials are not configured")
		s.metrics.RecordRejected("config")
		return &Error{Kind: KindConfig, Status: http.StatusInternalServerError, Message: MsgConfiguration, Err: err}
	}

	if se, ok := provider.AsStatusError(err); ok {
		s.metrics.RecordProviderError(name, se.StatusCode)
		log.Error().
			Int("upstreamStatus", se.StatusCode).
			Str("provider", name).
			Msg("Provider returned an error")
		log.Debug().Str("body", se.Body).Msg("Provider error body")
		return s.upstreamError(se, req.IsURL(), req.ContentType)
	}

	s.metrics.RecordProviderError(name, 0)
	if errors.Is(err, context.DeadlineExceeded) {
		log.Error().Err(err).Str("provider", name).Msg("Provider request timed out")
		return &Error{Kind: KindUpstream, Status: http.StatusGatewayTimeout, Message: MsgTimedOut, Err: err}
	}
	log.Error().Err(err).Str("provider", name).Msg("Provider request failed")
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: MsgInternal, Err: err}
}

func (s *Service) publishAccepted(ctx context.Context, log zerolog.Logger, resultID, source string) {
	if s.publisher == nil {
		return
	}
	ev := models.TranscriptionAccepted{
		EventType: models.EventTypeAccepted,
		ResultID:  resultID,
		Provider:  s.provider.Name(),
		Source:    source,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.publisher.PublishAccepted(ctx, ev); err != nil {
		log.Warn().Err(err).Str("resultId", resultID).Msg("Failed to publish accepted event")
	}
}

func (s *Service) reject(e *Error) {
	reason := string(e.Kind)
	if e.Kind == KindInput {
		switch e.Status {
		case http.StatusRequestEntityTooLarge:
			reason = "too_large"
		default:
			reason = "invalid"
		}
	}
	s.metrics.RecordRejected(reason)
}

// ValidateURL accepts absolute URLs with a host whose scheme is one of
// schemes, or http(s) when none are given.
func ValidateURL(raw string, schemes ...string) (*url.URL, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if len(schemes) == 0 {
		schemes = provider.DefaultURLSchemes
	}
	if !slices.Contains(schemes, strings.ToLower(u.Scheme)) {
		return nil, errors.New("unsupported url scheme")
	}
	if u.Host == "" {
		return nil, errors.New("url has no host")
	}
	return u, nil
}

// LooksLikeMedia reports whether the URL has a media extension or a known
// media hosting domain.
func LooksLikeMedia(u *url.URL) bool {
	if mediaExtensions[strings.ToLower(path.Ext(u.Path))] {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range mediaHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func baseType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(ct)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
