package provider

import (
	"bytes"
	"encoding/json"

	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/schema"
)

// Outcome is the classified shape of a successful backend answer. The concrete
// type is one of Direct, AsyncTask, PlainText or Unrecognized.
type Outcome interface {
	Kind() string
	isOutcome()
}

// Direct is a finished transcript returned inline.
type Direct struct {
	Text     string
	Segments []models.Segment
}

// AsyncTask means the backend accepted the job and will call back later.
type AsyncTask struct {
	ID string
}

// PlainText is a bare string body.
type PlainText struct {
	Text string
}

// Unrecognized is any other body.
type Unrecognized struct {
	Body []byte
}

func (Direct) Kind() string       { return "direct" }
func (AsyncTask) Kind() string    { return "async_task" }
func (PlainText) Kind() string    { return "plain_text" }
func (Unrecognized) Kind() string { return "unrecognized" }

func (Direct) isOutcome()       {}
func (AsyncTask) isOutcome()    {}
func (PlainText) isOutcome()    {}
func (Unrecognized) isOutcome() {}

// Classify inspects a 2xx response body. Checks run in priority order: a text
// field, then a task identifier, then a bare string.
func Classify(body []byte) Outcome {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Unrecognized{Body: body}
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		// Not JSON at all: the body itself is the transcript.
		return PlainText{Text: string(trimmed)}
	}

	switch val := v.(type) {
	case string:
		return PlainText{Text: val}
	case map[string]any:
		return classifyObject(trimmed, val)
	default:
		return Unrecognized{Body: body}
	}
}

func classifyObject(raw []byte, obj map[string]any) Outcome {
	if text, ok := obj["text"].(string); ok {
		var payload struct {
			Segments json.RawMessage `json:"segments"`
		}
		_ = json.Unmarshal(raw, &payload)
		return Direct{Text: text, Segments: decodeSegments(payload.Segments)}
	}

	var ids struct {
		TaskID json.RawMessage `json:"task_id"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &ids); err == nil {
		if id := schema.IDValue(ids.TaskID); id != "" {
			return AsyncTask{ID: id}
		}
		if id := schema.IDValue(ids.ID); id != "" {
			return AsyncTask{ID: id}
		}
	}
	return Unrecognized{Body: raw}
}

func decodeSegments(raw json.RawMessage) []models.Segment {
	if len(raw) == 0 {
		return nil
	}
	var segs []models.Segment
	if err := json.Unmarshal(raw, &segs); err != nil {
		return nil
	}
	return segs
}
