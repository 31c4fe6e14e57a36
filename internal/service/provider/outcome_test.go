package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"text with segments", `{"text":"hi","segments":[{"id":0,"text":"hi","start":0,"end":1,"speaker":"SPEAKER_00"}]}`, "direct"},
		{"text only", `{"text":"hi"}`, "direct"},
		{"empty text still direct", `{"text":""}`, "direct"},
		{"task id", `{"task_id":"abc"}`, "async_task"},
		{"numeric id", `{"id":17}`, "async_task"},
		{"json string", `"hello world"`, "plain_text"},
		{"bare text", `hello world`, "plain_text"},
		{"empty body", ``, "unrecognized"},
		{"whitespace body", "  \n", "unrecognized"},
		{"array", `[1,2,3]`, "unrecognized"},
		{"number", `42`, "unrecognized"},
		{"object without known fields", `{"status":"queued"}`, "unrecognized"},
		{"null id", `{"id":null}`, "unrecognized"},
		{"non-string text", `{"text":5}`, "unrecognized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify([]byte(tt.body))
			if got.Kind() != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.body, got.Kind(), tt.want)
			}
		})
	}
}

func TestClassify_TextWinsOverTaskID(t *testing.T) {
	out := Classify([]byte(`{"text":"done","task_id":"t-1"}`))
	if _, ok := out.(Direct); !ok {
		t.Fatalf("expected Direct, got %T", out)
	}
}

func TestClassify_TaskIDBeforeID(t *testing.T) {
	out, ok := Classify([]byte(`{"task_id":"t-1","id":"i-1"}`)).(AsyncTask)
	if !ok {
		t.Fatal("expected AsyncTask")
	}
	if out.ID != "t-1" {
		t.Errorf("expected task_id to win, got %q", out.ID)
	}
}

func TestClassify_DirectSegments(t *testing.T) {
	out, ok := Classify([]byte(`{"text":"a b","segments":[{"id":1,"text":"a","start":0,"end":1.5,"speaker":"A"},{"id":2,"text":"b","start":1.5,"end":3}]}`)).(Direct)
	if !ok {
		t.Fatal("expected Direct")
	}
	if len(out.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(out.Segments))
	}
	if out.Segments[0].Speaker != "A" || out.Segments[1].End != 3 {
		t.Errorf("unexpected segments: %+v", out.Segments)
	}
}

func TestClassify_MalformedSegmentsDropped(t *testing.T) {
	out, ok := Classify([]byte(`{"text":"a","segments":"nope"}`)).(Direct)
	if !ok {
		t.Fatal("expected Direct")
	}
	if out.Segments != nil {
		t.Errorf("expected nil segments, got %+v", out.Segments)
	}
}

func TestStatusError(t *testing.T) {
	big := make([]byte, maxErrorBody*2)
	se := NewStatusError(http.StatusTooManyRequests, big)
	if len(se.Body) != maxErrorBody {
		t.Errorf("expected body truncated to %d, got %d", maxErrorBody, len(se.Body))
	}

	wrapped := fmt.Errorf("call failed: %w", se)
	got, ok := AsStatusError(wrapped)
	if !ok || got.StatusCode != http.StatusTooManyRequests {
		t.Errorf("AsStatusError() = %v, %v", got, ok)
	}
	if _, ok := AsStatusError(errors.New("plain")); ok {
		t.Error("plain error must not unwrap to StatusError")
	}
}

type plainProvider struct{}

func (plainProvider) Name() string { return "plain" }
func (plainProvider) Transcribe(context.Context, Request) (Outcome, error) {
	return Unrecognized{}, nil
}

type emptySchemeProvider struct{ plainProvider }

func (emptySchemeProvider) URLSchemes() []string { return nil }

func TestURLSchemes_Defaults(t *testing.T) {
	for _, p := range []Provider{plainProvider{}, emptySchemeProvider{}} {
		got := URLSchemes(p)
		if len(got) != 2 || got[0] != "http" || got[1] != "https" {
			t.Errorf("URLSchemes(%T) = %v, want [http https]", p, got)
		}
	}
}
