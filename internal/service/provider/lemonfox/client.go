// Package lemonfox implements the Lemonfox REST transcription backend.
package lemonfox

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"media-transcription-proxy/internal/observability/logging"
	"media-transcription-proxy/internal/service/provider"
)

const (
	Name = "lemonfox"

	DefaultURL     = "https://api.lemonfox.ai/v1/audio/transcriptions"
	DefaultTimeout = time.Hour

	// maxResponseBytes bounds the transcript body read from the backend.
	maxResponseBytes = 64 << 20
)

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration

	// HTTPClient overrides the default client; its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client sends multipart transcription requests to Lemonfox.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
	log    zerolog.Logger
}

// New creates a Lemonfox client.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		http:   hc,
		log:    logging.WithComponent("provider-lemonfox"),
	}
}

func (c *Client) Name() string { return Name }

// Transcribe streams the media (or URL) to Lemonfox and classifies the answer.
func (c *Client) Transcribe(ctx context.Context, req provider.Request) (provider.Outcome, error) {
	if c.apiKey == "" {
		return nil, provider.ErrMissingCredentials
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, req))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("lemonfox request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read lemonfox response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug().
			Int("status", resp.StatusCode).
			Str("body", truncate(body, 512)).
			Msg("Lemonfox returned an error")
		return nil, provider.NewStatusError(resp.StatusCode, body)
	}

	return provider.Classify(body), nil
}

// writeForm writes every multipart field and closes the writer.
func writeForm(mw *multipart.Writer, req provider.Request) error {
	if req.IsURL() {
		if err := mw.WriteField("file", req.URL); err != nil {
			return err
		}
	} else {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(req.FileName)))
		ct := req.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, req.File); err != nil {
			return err
		}
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"speaker_labels", "true"},
	}
	opts := req.Options
	if opts.Prompt != "" {
		fields = append(fields, [2]string{"prompt", opts.Prompt})
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	if opts.MinSpeakers > 0 {
		fields = append(fields, [2]string{"min_speakers", strconv.Itoa(opts.MinSpeakers)})
	}
	if opts.MaxSpeakers > 0 {
		fields = append(fields, [2]string{"max_speakers", strconv.Itoa(opts.MaxSpeakers)})
	}
	if opts.Translate {
		fields = append(fields, [2]string{"translate", "true"})
	}
	if opts.CallbackURL != "" {
		fields = append(fields, [2]string{"callback_url", opts.CallbackURL})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	return mw.Close()
}

func fileName(name string) string {
	if name == "" {
		return "upload"
	}
	return name
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
