package transcribe

import (
	"fmt"
	"net/http"
	"strings"

	"media-transcription-proxy/internal/service/provider"
)

// Kind classifies a failure for logging and rendering.
type Kind string

const (
	KindInput    Kind = "input"
	KindConfig   Kind = "config"
	KindUpstream Kind = "upstream"
	KindInternal Kind = "internal"
)

const (
	MsgNoInput           = "No file or URL provided"
	MsgInvalidURL        = "Invalid URL provided"
	MsgConfiguration     = "Service configuration error"
	MsgAuthentication    = "Service authentication error"
	MsgRateLimited       = "Rate limit exceeded. Please try again later."
	MsgInvalidParameters = "Invalid request parameters"
	MsgUnexpectedFormat  = "Unexpected response format from transcription service"
	MsgFailed            = "Failed to transcribe audio/video"
	MsgTimedOut          = "Transcription request timed out"
	MsgInternal          = "Internal server error"
)

// Error is a request failure carrying the status and user-facing message.
// Upstream bodies never reach Message or Details.
type Error struct {
	Kind           Kind
	Status         int
	Message        string
	Details        string
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func inputError(status int, msg string) *Error {
	return &Error{Kind: KindInput, Status: status, Message: msg}
}

// OverLimitMessage is the upload size message for the given limit.
func OverLimitMessage(limit int64) string {
	return fmt.Sprintf("File size exceeds %s. Please use URL upload for larger files.", FormatBytes(limit))
}

// OverURLLimitMessage is the size message for URL inputs.
func OverURLLimitMessage(limit int64) string {
	return fmt.Sprintf("File size exceeds %s limit.", FormatBytes(limit))
}

// InvalidFormatMessage names the rejected type and the allowlist.
func InvalidFormatMessage(detected string, allowed []string) string {
	return fmt.Sprintf("Invalid file format: %q. Allowed formats: %s", detected, strings.Join(allowed, ", "))
}

// FormatBytes renders a limit as whole MB or GB.
func FormatBytes(n int64) string {
	const (
		mb = 1024 * 1024
		gb = 1024 * mb
	)
	switch {
	case n >= gb && n%gb == 0:
		return fmt.Sprintf("%dGB", n/gb)
	case n >= mb:
		return fmt.Sprintf("%dMB", n/mb)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// upstreamError maps a non-2xx provider answer to a client-facing error.
func (s *Service) upstreamError(se *provider.StatusError, isURL bool, detectedType string) *Error {
	e := &Error{
		Kind:           KindUpstream,
		Status:         se.StatusCode,
		UpstreamStatus: se.StatusCode,
		Err:            se,
	}
	hint := strings.ToLower(se.Body)

	switch se.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Message = MsgAuthentication
	case http.StatusRequestEntityTooLarge:
		if isURL {
			e.Message = OverURLLimitMessage(s.cfg.URLMaxBytes)
		} else {
			e.Message = OverLimitMessage(s.cfg.MaxBytes)
		}
	case http.StatusUnsupportedMediaType:
		if detectedType == "" {
			detectedType = "unknown format"
		}
		e.Message = InvalidFormatMessage(detectedType, s.cfg.AllowedTypes)
	case http.StatusTooManyRequests:
		e.Message = MsgRateLimited
	case http.StatusBadRequest:
		e.Message = MsgInvalidParameters
		switch {
		case strings.Contains(hint, "url"):
			e.Message = MsgInvalidURL
			e.Details = "The provider could not fetch the media at the given URL."
		case strings.Contains(hint, "size") || strings.Contains(hint, "too large"):
			if isURL {
				e.Message = OverURLLimitMessage(s.cfg.URLMaxBytes)
			} else {
				e.Message = OverLimitMessage(s.cfg.MaxBytes)
			}
		}
	default:
		e.Message = MsgFailed
		if se.StatusCode < 400 || se.StatusCode > 599 {
			e.Status = http.StatusBadGateway
		}
	}
	return e
}
