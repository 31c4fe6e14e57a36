// Package schema normalizes transcription payloads into values that satisfy the
// data model: every result has at least one segment, every segment has a speaker
// and a word list, and segment bounds are ordered.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"media-transcription-proxy/internal/models"
)

// Errors reported by Validate.
var (
	ErrNoSegments      = errors.New("result has no segments")
	ErrMissingSpeaker  = errors.New("segment has no speaker")
	ErrInvertedBounds  = errors.New("segment ends before it starts")
	ErrMissingWordList = errors.New("segment has no word list")
)

// CallbackMeta describes how a callback body was interpreted.
type CallbackMeta struct {
	// TaskID is the provider task identifier carried by the payload, if any.
	TaskID string
	// Degraded is true when the body was not a JSON object and the raw body
	// became the transcript text.
	Degraded bool
	// SegmentsRepaired is true when segments were absent or unusable.
	SegmentsRepaired bool
}

// SyntheticSegment covers a whole transcript with a single best-effort segment.
func SyntheticSegment(text string) models.Segment {
	return models.Segment{
		ID:      0,
		Text:    text,
		Start:   0,
		End:     0,
		Speaker: models.DefaultSpeaker,
		Words:   []models.Word{},
	}
}

// Conversation maps segments to conversation turns, one per segment.
func Conversation(segments []models.Segment) []models.ConversationTurn {
	turns := make([]models.ConversationTurn, 0, len(segments))
	for _, seg := range segments {
		role := seg.Speaker
		if role == "" {
			role = models.DefaultSpeaker
		}
		turns = append(turns, models.ConversationTurn{
			Role:      role,
			Text:      seg.Text,
			Timestamp: &models.Timestamp{Start: seg.Start, End: seg.End},
		})
	}
	return turns
}

// Normalize returns a copy of r that satisfies the data model invariants and
// carries a structured conversation.
func Normalize(r models.TranscriptionResult) models.TranscriptionResult {
	out := models.TranscriptionResult{
		Text:  r.Text,
		Error: r.Error,
	}

	if len(r.Segments) == 0 {
		out.Segments = []models.Segment{SyntheticSegment(r.Text)}
	} else {
		out.Segments = make([]models.Segment, len(r.Segments))
		for i, seg := range r.Segments {
			out.Segments[i] = normalizeSegment(seg)
		}
	}

	if len(r.StructuredConversation) > 0 {
		out.StructuredConversation = r.StructuredConversation
	} else {
		out.StructuredConversation = Conversation(out.Segments)
	}
	return out
}

func normalizeSegment(seg models.Segment) models.Segment {
	if strings.TrimSpace(seg.Speaker) == "" {
		seg.Speaker = models.DefaultSpeaker
	}
	if seg.End < seg.Start {
		seg.End = seg.Start
	}
	if seg.Words == nil {
		seg.Words = []models.Word{}
	} else {
		words := make([]models.Word, len(seg.Words))
		for i, w := range seg.Words {
			if w.Speaker == "" {
				w.Speaker = seg.Speaker
			}
			words[i] = w
		}
		seg.Words = words
	}
	return seg
}

// Validate reports the first data model invariant r violates.
func Validate(r models.TranscriptionResult) error {
	if len(r.Segments) == 0 {
		return ErrNoSegments
	}
	for i, seg := range r.Segments {
		switch {
		case seg.Speaker == "":
			return fmt.Errorf("segment %d: %w", i, ErrMissingSpeaker)
		case seg.End < seg.Start:
			return fmt.Errorf("segment %d: %w", i, ErrInvertedBounds)
		case seg.Words == nil:
			return fmt.Errorf("segment %d: %w", i, ErrMissingWordList)
		}
	}
	return nil
}

type callbackDocument struct {
	Text                   *string                   `json:"text"`
	Segments               json.RawMessage           `json:"segments"`
	StructuredConversation []models.ConversationTurn `json:"structuredConversation"`
	Error                  string                    `json:"error"`
	TaskID                 json.RawMessage           `json:"task_id"`
	ID                     json.RawMessage           `json:"id"`
}

// ParseCallback interprets a provider callback body. It never fails: bodies that
// are not JSON objects become a degraded result whose text is the raw body.
// The returned result is not yet normalized.
func ParseCallback(raw []byte) (models.TranscriptionResult, CallbackMeta) {
	var meta CallbackMeta

	var doc callbackDocument
	if err := json.Unmarshal(raw, &doc); err != nil || !isObject(raw) {
		meta.Degraded = true
		meta.SegmentsRepaired = true
		text := string(raw)
		return models.TranscriptionResult{
			Text:     text,
			Segments: []models.Segment{SyntheticSegment(text)},
		}, meta
	}

	result := models.TranscriptionResult{
		Error:                  doc.Error,
		StructuredConversation: doc.StructuredConversation,
	}
	if doc.Text != nil {
		result.Text = *doc.Text
	}

	segments, ok := decodeSegments(doc.Segments)
	if !ok {
		meta.SegmentsRepaired = true
		segments = []models.Segment{SyntheticSegment(result.Text)}
	}
	result.Segments = segments

	meta.TaskID = firstID(doc.TaskID, doc.ID)
	return result, meta
}

// isObject reports whether raw is a JSON object; a literal null decodes into a
// struct without error.
func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// decodeSegments accepts only a JSON array of segment objects.
func decodeSegments(raw json.RawMessage) ([]models.Segment, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var segments []models.Segment
	if err := json.Unmarshal(trimmed, &segments); err != nil {
		return nil, false
	}
	if len(segments) == 0 {
		return nil, false
	}
	return segments, true
}

// IDValue extracts an identifier that may be encoded as a JSON string or number.
func IDValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func firstID(candidates ...json.RawMessage) string {
	for _, c := range candidates {
		if id := IDValue(c); id != "" {
			return id
		}
	}
	return ""
}
