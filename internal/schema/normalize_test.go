package schema

import (
	"errors"
	"testing"

	"media-transcription-proxy/internal/models"
)

func TestParseCallback_UnparsableBody(t *testing.T) {
	raw := []byte("this is not json {")

	result, meta := ParseCallback(raw)

	if !meta.Degraded {
		t.Error("expected degraded result for unparsable body")
	}
	if result.Text != string(raw) {
		t.Errorf("expected text to equal raw body, got %q", result.Text)
	}
	if len(result.Segments) != 1 {
		t.Fatalf("expected 1 synthetic segment, got %d", len(result.Segments))
	}
	seg := result.Segments[0]
	if seg.Speaker != models.DefaultSpeaker || seg.Start != 0 || seg.End != 0 || seg.Text != string(raw) {
		t.Errorf("unexpected synthetic segment: %+v", seg)
	}
}

func TestParseCallback_JSONStringIsDegraded(t *testing.T) {
	result, meta := ParseCallback([]byte(`"hello"`))
	if !meta.Degraded {
		t.Error("expected a bare JSON string to be treated as degraded")
	}
	if result.Text != `"hello"` {
		t.Errorf("expected raw body as text, got %q", result.Text)
	}
}

func TestParseCallback_NullIsDegraded(t *testing.T) {
	for _, body := range []string{"null", "  null\n"} {
		result, meta := ParseCallback([]byte(body))
		if !meta.Degraded {
			t.Errorf("ParseCallback(%q): expected degraded result", body)
		}
		if result.Text != body {
			t.Errorf("ParseCallback(%q): text = %q, want raw body", body, result.Text)
		}
		if len(result.Segments) != 1 || result.Segments[0].Text != body {
			t.Errorf("ParseCallback(%q): unexpected segments %+v", body, result.Segments)
		}
	}
}

func TestParseCallback_MissingFields(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantText     string
		wantRepaired bool
		wantSegments int
	}{
		{"no text no segments", `{}`, "", true, 1},
		{"text only", `{"text":"hi there"}`, "hi there", true, 1},
		{"segments not an array", `{"text":"a","segments":"oops"}`, "a", true, 1},
		{"segments wrong element type", `{"text":"a","segments":[1,2]}`, "a", true, 1},
		{"segments present", `{"text":"a b","segments":[{"id":1,"text":"a","start":0,"end":1,"speaker":"A"},{"id":2,"text":"b","start":1,"end":2}]}`, "a b", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, meta := ParseCallback([]byte(tt.body))
			if meta.Degraded {
				t.Error("object bodies must not be degraded")
			}
			if result.Text != tt.wantText {
				t.Errorf("text = %q, want %q", result.Text, tt.wantText)
			}
			if meta.SegmentsRepaired != tt.wantRepaired {
				t.Errorf("SegmentsRepaired = %v, want %v", meta.SegmentsRepaired, tt.wantRepaired)
			}
			if len(result.Segments) != tt.wantSegments {
				t.Errorf("segments = %d, want %d", len(result.Segments), tt.wantSegments)
			}
		})
	}
}

func TestParseCallback_TaskID(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"text":"x","task_id":"abc-123"}`, "abc-123"},
		{`{"text":"x","id":42}`, "42"},
		{`{"text":"x","task_id":"t1","id":"i1"}`, "t1"},
		{`{"text":"x","id":null}`, ""},
		{`{"text":"x"}`, ""},
	}
	for _, tt := range tests {
		_, meta := ParseCallback([]byte(tt.body))
		if meta.TaskID != tt.want {
			t.Errorf("ParseCallback(%s).TaskID = %q, want %q", tt.body, meta.TaskID, tt.want)
		}
	}
}

func TestNormalize_SynthesizesSegmentAndConversation(t *testing.T) {
	out := Normalize(models.TranscriptionResult{Text: "full transcript"})

	if len(out.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(out.Segments))
	}
	if out.Segments[0].Text != "full transcript" || out.Segments[0].Speaker != models.DefaultSpeaker {
		t.Errorf("unexpected segment: %+v", out.Segments[0])
	}
	if len(out.StructuredConversation) != 1 {
		t.Fatalf("expected 1 conversation turn, got %d", len(out.StructuredConversation))
	}
	turn := out.StructuredConversation[0]
	if turn.Role != models.DefaultSpeaker || turn.Text != "full transcript" {
		t.Errorf("unexpected turn: %+v", turn)
	}
	if err := Validate(out); err != nil {
		t.Errorf("normalized result should validate: %v", err)
	}
}

func TestNormalize_RepairsSegments(t *testing.T) {
	in := models.TranscriptionResult{
		Text: "a b",
		Segments: []models.Segment{
			{ID: 1, Text: "a", Start: 2, End: 1},
			{ID: 2, Text: "b", Start: 3, End: 4, Speaker: "B", Words: []models.Word{{Word: "b", Start: 3, End: 4}}},
		},
	}

	out := Normalize(in)

	if out.Segments[0].Speaker != models.DefaultSpeaker {
		t.Errorf("expected default speaker, got %q", out.Segments[0].Speaker)
	}
	if out.Segments[0].End != 2 {
		t.Errorf("expected end clamped to start, got %v", out.Segments[0].End)
	}
	if out.Segments[0].Words == nil {
		t.Error("expected empty word list, got nil")
	}
	if out.Segments[1].Words[0].Speaker != "B" {
		t.Errorf("expected word speaker inherited from segment, got %q", out.Segments[1].Words[0].Speaker)
	}
	if got := out.StructuredConversation[1]; got.Role != "B" || got.Timestamp.Start != 3 || got.Timestamp.End != 4 {
		t.Errorf("unexpected turn: %+v", got)
	}

	// input must not be mutated
	if in.Segments[0].Speaker != "" {
		t.Error("Normalize mutated its input")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   models.TranscriptionResult
		want error
	}{
		{"no segments", models.TranscriptionResult{}, ErrNoSegments},
		{"missing speaker", models.TranscriptionResult{Segments: []models.Segment{{Words: []models.Word{}}}}, ErrMissingSpeaker},
		{"inverted", models.TranscriptionResult{Segments: []models.Segment{{Speaker: "A", Start: 2, End: 1, Words: []models.Word{}}}}, ErrInvertedBounds},
		{"nil words", models.TranscriptionResult{Segments: []models.Segment{{Speaker: "A"}}}, ErrMissingWordList},
		{"ok", models.TranscriptionResult{Segments: []models.Segment{{Speaker: "A", Words: []models.Word{}}}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
