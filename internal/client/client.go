// Package client talks to the transcription proxy: it submits media and, when
// the server answers with a result id, polls until the transcript is ready.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/service/poller"
)

// APIError is a non-2xx answer from the proxy.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// SubmitRequest describes one transcription. Exactly one of File or URL is set.
type SubmitRequest struct {
	File        io.Reader
	FileName    string
	ContentType string

	URL string

	Prompt      string
	Language    string
	MinSpeakers int
	MaxSpeakers int
	Translate   bool
}

// SubmitResponse carries either an immediate result or a result id to poll.
type SubmitResponse struct {
	Result   *models.TranscriptionResult
	ResultID string
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the proxy at baseURL. A nil httpClient uses one
// without a timeout, since uploads and synchronous transcriptions can be long.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Submit posts the media to /transcribe.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if req.File == nil && req.URL == "" {
		return nil, errors.New("file or url required")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeSubmitForm(mw, req))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	var probe struct {
		ResultID string  `json:"resultId"`
		Text     *string `json:"text"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	if probe.ResultID != "" && probe.Text == nil {
		return &SubmitResponse{ResultID: probe.ResultID}, nil
	}
	var result models.TranscriptionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &SubmitResponse{Result: &result}, nil
}

func writeSubmitForm(mw *multipart.Writer, req SubmitRequest) error {
	fields := map[string]string{}
	if req.Prompt != "" {
		fields["prompt"] = req.Prompt
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.MinSpeakers > 0 {
		fields["min_speakers"] = strconv.Itoa(req.MinSpeakers)
	}
	if req.MaxSpeakers > 0 {
		fields["max_speakers"] = strconv.Itoa(req.MaxSpeakers)
	}
	if req.Translate {
		fields["translate"] = "true"
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	if req.File == nil {
		if err := mw.WriteField("file", req.URL); err != nil {
			return err
		}
		return mw.Close()
	}

	name := req.FileName
	if name == "" {
		name = "upload"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if req.ContentType != "" {
		h.Set("Content-Type", req.ContentType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return err
	}
	return mw.Close()
}

// FetchStatus implements poller.StatusFetcher against
// GET /transcription-status/{resultId}.
func (c *Client) FetchStatus(ctx context.Context, resultID string) (*models.TranscriptionResult, error) {
	u := c.baseURL + "/transcription-status/" + url.PathEscape(resultID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var result models.TranscriptionResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
		return &result, nil
	case http.StatusNotFound:
		return nil, poller.ErrNotReady
	default:
		return nil, decodeAPIError(resp.StatusCode, body)
	}
}

// Transcribe submits the media and, for asynchronous answers, polls until the
// transcript arrives. onUpdate may be nil.
func (c *Client) Transcribe(ctx context.Context, req SubmitRequest, onUpdate func(poller.Update), opts ...poller.Option) (*models.TranscriptionResult, time.Duration, error) {
	start := time.Now()
	lc := poller.NewLifecycle()

	resp, err := c.Submit(ctx, req)
	if err != nil {
		lc.Fail(err)
		return nil, time.Since(start), err
	}
	if resp.Result != nil {
		_ = lc.Complete()
		return resp.Result, time.Since(start), nil
	}
	if err := lc.Accept(resp.ResultID); err != nil {
		return nil, time.Since(start), err
	}

	if onUpdate != nil {
		opts = append(opts, poller.WithObserver(onUpdate))
	}
	h, err := poller.New(c, opts...).Start(ctx, lc)
	if err != nil {
		return nil, time.Since(start), err
	}
	result, err := h.Wait()
	return result, time.Since(start), err
}

func decodeAPIError(status int, body []byte) error {
	var eb struct {
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &eb); err != nil || eb.Message == "" {
		eb.Message = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: eb.Message, Details: eb.Details}
}
