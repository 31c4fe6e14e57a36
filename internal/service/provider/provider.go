// Package provider defines the interface for transcription backends and the
// classification of their responses.
package provider

import (
	"context"
	"io"
)

// Options are the optional recognition hints forwarded to the backend.
type Options struct {
	Prompt      string
	Language    string
	MinSpeakers int
	MaxSpeakers int
	Translate   bool

	// CallbackURL asks the backend to push the result asynchronously.
	CallbackURL string
}

// Request is a single transcription job. Exactly one of File or URL is set.
type Request struct {
	File        io.Reader
	FileName    string
	ContentType string
	Size        int64

	URL string

	Options Options
}

// IsURL reports whether the media is referenced by URL instead of uploaded.
func (r Request) IsURL() bool {
	return r.URL != ""
}

// Provider is a transcription backend (Lemonfox, OpenAI, Google, mock).
type Provider interface {
	// Name identifies the backend in logs, metrics and events.
	Name() string

	// Transcribe submits the media and classifies the backend's answer.
	// Non-2xx answers are returned as *StatusError.
	Transcribe(ctx context.Context, req Request) (Outcome, error)
}

// DefaultURLSchemes are accepted for URL inputs unless the backend says otherwise.
var DefaultURLSchemes = []string{"http", "https"}

// URLSchemer is implemented by backends that fetch media from schemes other
// than http(s).
type URLSchemer interface {
	URLSchemes() []string
}

// URLSchemes returns the URL schemes p accepts.
func URLSchemes(p Provider) []string {
	if us, ok := p.(URLSchemer); ok {
		if schemes := us.URLSchemes(); len(schemes) > 0 {
			return schemes
		}
	}
	return DefaultURLSchemes
}
