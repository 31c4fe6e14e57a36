// Package mock provides a transcription backend for local development without
// provider credentials. It answers with a canned diarized conversation, either
// inline or by calling back like an asynchronous provider.
package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/observability/logging"
	"media-transcription-proxy/internal/service/provider"
)

const Name = "mock"

// Utterance is one canned speaker turn.
type Utterance struct {
	Speaker    string
	Text       string
	Duration   float64 // seconds
	Confidence float64
}

// DefaultConversation is the transcript returned for every request.
var DefaultConversation = []Utterance{
	{Speaker: "SPEAKER_00", Text: "I want to cancel my subscription", Duration: 2.4, Confidence: 0.94},
	{Speaker: "SPEAKER_01", Text: "Can you help me with my account", Duration: 2.1, Confidence: 0.91},
	{Speaker: "SPEAKER_00", Text: "I've been waiting for over an hour", Duration: 2.6, Confidence: 0.89},
	{Speaker: "SPEAKER_01", Text: "Yes please go ahead", Duration: 1.5, Confidence: 0.97},
	{Speaker: "SPEAKER_00", Text: "Thank you very much", Duration: 1.3, Confidence: 0.98},
}

type Config struct {
	// Async answers with a task id and delivers the transcript to the
	// callback URL after Delay.
	Async bool
	Delay time.Duration

	// CallbackURL is used when the request carries none.
	CallbackURL string
	Secret      string

	HTTPClient *http.Client
}

// Adapter implements provider.Provider with canned responses.
type Adapter struct {
	cfg          Config
	conversation []Utterance
	log          zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a mock backend.
func New(cfg Config) *Adapter {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		cfg:          cfg,
		conversation: DefaultConversation,
		log:          logging.WithComponent("provider-mock"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (a *Adapter) Name() string { return Name }

// Transcribe drains the upload and returns the canned conversation.
func (a *Adapter) Transcribe(ctx context.Context, req provider.Request) (provider.Outcome, error) {
	if req.File != nil {
		if _, err := io.Copy(io.Discard, req.File); err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
	}

	result := Transcript(a.conversation)

	target := req.Options.CallbackURL
	if target == "" {
		target = a.cfg.CallbackURL
	}
	if !a.cfg.Async || target == "" {
		return provider.Direct{Text: result.Text, Segments: result.Segments}, nil
	}

	taskID := uuid.NewString()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.deliver(target, taskID, result)
	}()
	return provider.AsyncTask{ID: taskID}, nil
}

// Close cancels pending deliveries and waits for them to finish.
func (a *Adapter) Close() error {
	a.cancel()
	a.wg.Wait()
	return nil
}

func (a *Adapter) deliver(target, taskID string, result models.TranscriptionResult) {
	t := time.NewTimer(a.cfg.Delay)
	defer t.Stop()
	select {
	case <-a.ctx.Done():
		return
	case <-t.C:
	}

	payload := struct {
		TaskID string `json:"task_id"`
		models.TranscriptionResult
	}{TaskID: taskID, TranscriptionResult: result}
	body, err := json.Marshal(payload)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to encode mock callback")
		return
	}

	req, err := http.NewRequestWithContext(a.ctx, http.MethodPost, withResultID(target, taskID), bytes.NewReader(body))
	if err != nil {
		a.log.Error().Err(err).Str("callbackUrl", target).Msg("Invalid mock callback URL")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Secret)
	}

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		a.log.Warn().Err(err).Str("taskId", taskID).Msg("Mock callback delivery failed")
		return
	}
	resp.Body.Close()

	a.log.Debug().
		Str("taskId", taskID).
		Int("status", resp.StatusCode).
		Msg("Mock callback delivered")
}

func withResultID(target, id string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	if q.Get("resultId") == "" {
		q.Set("resultId", id)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Transcript lays the utterances out back to back with per-word timings.
func Transcript(utterances []Utterance) models.TranscriptionResult {
	var (
		texts []string
		segs  = make([]models.Segment, 0, len(utterances))
		clock float64
	)
	for i, u := range utterances {
		fields := strings.Fields(u.Text)
		words := make([]models.Word, 0, len(fields))
		step := 0.0
		if len(fields) > 0 {
			step = u.Duration / float64(len(fields))
		}
		for j, w := range fields {
			start := clock + float64(j)*step
			words = append(words, models.Word{
				Word:    w,
				Start:   start,
				End:     start + step,
				Score:   u.Confidence,
				Speaker: u.Speaker,
			})
		}
		segs = append(segs, models.Segment{
			ID:       i,
			Text:     u.Text,
			Start:    clock,
			End:      clock + u.Duration,
			Language: "en",
			Speaker:  u.Speaker,
			Words:    words,
		})
		texts = append(texts, u.Text)
		clock += u.Duration
	}
	return models.TranscriptionResult{Text: strings.Join(texts, " "), Segments: segs}
}
