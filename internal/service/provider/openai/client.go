// Package openai implements a Whisper backend on top of any OpenAI-compatible
// audio API (OpenAI itself, or Lemonfox's compatible endpoint).
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/service/provider"
)

const Name = "openai"

type Config struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1. A full
	// /audio/transcriptions URL is accepted and trimmed.
	BaseURL string
	APIKey  string
	Model   string
}

// audioClient is the subset of the go-openai client used here.
type audioClient interface {
	CreateTranscription(ctx context.Context, req goopenai.AudioRequest) (goopenai.AudioResponse, error)
	CreateTranslation(ctx context.Context, req goopenai.AudioRequest) (goopenai.AudioResponse, error)
}

type Client struct {
	api    audioClient
	model  string
	hasKey bool
}

// New creates an OpenAI-compatible backend.
func New(cfg Config) *Client {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if base := BaseURL(cfg.BaseURL); base != "" {
		oc.BaseURL = base
	}
	model := cfg.Model
	if model == "" {
		model = goopenai.Whisper1
	}
	return &Client{
		api:    goopenai.NewClientWithConfig(oc),
		model:  model,
		hasKey: cfg.APIKey != "",
	}
}

// BaseURL strips the endpoint path from a full transcription URL.
func BaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	for _, suffix := range []string{"/audio/transcriptions", "/audio/translations"} {
		u = strings.TrimSuffix(u, suffix)
	}
	return u
}

func (c *Client) Name() string { return Name }

// Transcribe uploads the media and always yields a Direct outcome.
func (c *Client) Transcribe(ctx context.Context, req provider.Request) (provider.Outcome, error) {
	if !c.hasKey {
		return nil, provider.ErrMissingCredentials
	}
	if req.IsURL() {
		return nil, provider.NewStatusError(400, []byte("openai backend does not accept a media url"))
	}

	name := req.FileName
	if name == "" {
		name = "upload"
	}
	areq := goopenai.AudioRequest{
		Model:    c.model,
		FilePath: name,
		Reader:   req.File,
		Prompt:   req.Options.Prompt,
		Language: req.Options.Language,
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	}

	var (
		resp goopenai.AudioResponse
		err  error
	)
	if req.Options.Translate {
		resp, err = c.api.CreateTranslation(ctx, areq)
	} else {
		resp, err = c.api.CreateTranscription(ctx, areq)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return toDirect(resp), nil
}

func toDirect(resp goopenai.AudioResponse) provider.Direct {
	segs := make([]models.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segs = append(segs, models.Segment{
			ID:         s.ID,
			Text:       strings.TrimSpace(s.Text),
			Start:      s.Start,
			End:        s.End,
			AvgLogprob: s.AvgLogprob,
			Language:   resp.Language,
		})
	}
	return provider.Direct{Text: resp.Text, Segments: segs}
}

func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return fmt.Errorf("openai: %w", &provider.StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message})
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fmt.Errorf("openai: %w", &provider.StatusError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()})
	}
	return fmt.Errorf("openai: %w", err)
}
