package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"media-transcription-proxy/internal/service/provider"
)

type fakeRecognizer struct {
	req  *speechpb.LongRunningRecognizeRequest
	resp *speechpb.LongRunningRecognizeResponse
	err  error
}

func (f *fakeRecognizer) Recognize(_ context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeRecognizer) Close() error { return nil }

func word(w string, start, end time.Duration, tag int32) *speechpb.WordInfo {
	return &speechpb.WordInfo{
		Word:       w,
		StartTime:  durationpb.New(start),
		EndTime:    durationpb.New(end),
		SpeakerTag: tag,
		Confidence: 0.9,
	}
}

func diarizedResponse() *speechpb.LongRunningRecognizeResponse {
	return &speechpb.LongRunningRecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hi there hello"}}},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{
				Words: []*speechpb.WordInfo{
					word("hi", 0, 500*time.Millisecond, 1),
					word("there", 500*time.Millisecond, time.Second, 1),
					word("hello", 1500*time.Millisecond, 2*time.Second, 2),
				},
			}}},
		},
	}
}

func TestTranscribe_DiarizedSegments(t *testing.T) {
	fake := &fakeRecognizer{resp: diarizedResponse()}
	a := newAdapter(fake, Config{})

	out, err := a.Transcribe(context.Background(), provider.Request{
		File:        strings.NewReader("flacdata"),
		ContentType: "audio/flac",
		Options:     provider.Options{MinSpeakers: 2, MaxSpeakers: 2},
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	direct, ok := out.(provider.Direct)
	if !ok {
		t.Fatalf("expected Direct, got %T", out)
	}
	if direct.Text != "hi there hello" {
		t.Errorf("text = %q", direct.Text)
	}
	if len(direct.Segments) != 2 {
		t.Fatalf("expected 2 speaker turns, got %d", len(direct.Segments))
	}
	first, second := direct.Segments[0], direct.Segments[1]
	if first.Speaker != "SPEAKER_00" || first.Text != "hi there" || first.End != 1 {
		t.Errorf("unexpected first segment: %+v", first)
	}
	if second.Speaker != "SPEAKER_01" || second.Start != 1.5 || second.ID != 1 {
		t.Errorf("unexpected second segment: %+v", second)
	}

	cfg := fake.req.GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_FLAC {
		t.Errorf("encoding = %v", cfg.GetEncoding())
	}
	if cfg.GetLanguageCode() != defaultLanguage {
		t.Errorf("language = %q", cfg.GetLanguageCode())
	}
	if d := cfg.GetDiarizationConfig(); !d.GetEnableSpeakerDiarization() || d.GetMinSpeakerCount() != 2 {
		t.Errorf("unexpected diarization config: %+v", d)
	}
	if string(fake.req.GetAudio().GetContent()) != "flacdata" {
		t.Error("expected inline audio content")
	}
}

func TestTranscribe_GCSURL(t *testing.T) {
	fake := &fakeRecognizer{resp: &speechpb.LongRunningRecognizeResponse{}}
	a := newAdapter(fake, Config{LanguageCode: "de-DE"})

	if _, err := a.Transcribe(context.Background(), provider.Request{
		URL:     "gs://bucket/call.wav",
		Options: provider.Options{Language: "fr-FR"},
	}); err != nil {
		t.Fatal(err)
	}
	if fake.req.GetAudio().GetUri() != "gs://bucket/call.wav" {
		t.Errorf("uri = %q", fake.req.GetAudio().GetUri())
	}
	if fake.req.GetConfig().GetLanguageCode() != "fr-FR" {
		t.Errorf("request language must override default, got %q", fake.req.GetConfig().GetLanguageCode())
	}
}

func TestTranscribe_RejectsHTTPURL(t *testing.T) {
	a := newAdapter(&fakeRecognizer{}, Config{})
	_, err := a.Transcribe(context.Background(), provider.Request{URL: "https://example.com/a.wav"})
	se, ok := provider.AsStatusError(err)
	if !ok || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestTranscribe_MapsGRPCErrors(t *testing.T) {
	tests := []struct {
		code codes.Code
		want int
	}{
		{codes.Unauthenticated, http.StatusUnauthorized},
		{codes.PermissionDenied, http.StatusForbidden},
		{codes.ResourceExhausted, http.StatusTooManyRequests},
		{codes.InvalidArgument, http.StatusBadRequest},
		{codes.Internal, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			a := newAdapter(&fakeRecognizer{err: status.Error(tt.code, "boom")}, Config{})
			_, err := a.Transcribe(context.Background(), provider.Request{File: strings.NewReader("x")})
			se, ok := provider.AsStatusError(err)
			if !ok || se.StatusCode != tt.want {
				t.Errorf("got %v, want status %d", err, tt.want)
			}
		})
	}
}

func TestTranscribe_NonGRPCError(t *testing.T) {
	a := newAdapter(&fakeRecognizer{err: errors.New("dial failed")}, Config{})
	_, err := a.Transcribe(context.Background(), provider.Request{File: strings.NewReader("x")})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := provider.AsStatusError(err); ok {
		t.Error("transport errors must not become status errors")
	}
}

func TestInferEncoding(t *testing.T) {
	tests := []struct {
		ct, uri string
		want    speechpb.RecognitionConfig_AudioEncoding
	}{
		{"audio/wav", "", speechpb.RecognitionConfig_LINEAR16},
		{"audio/mpeg", "", speechpb.RecognitionConfig_MP3},
		{"", "gs://b/x.ogg", speechpb.RecognitionConfig_OGG_OPUS},
		{"video/webm", "", speechpb.RecognitionConfig_WEBM_OPUS},
		{"video/mp4", "", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED},
	}
	for _, tt := range tests {
		if got := inferEncoding(tt.ct, tt.uri); got != tt.want {
			t.Errorf("inferEncoding(%q, %q) = %v, want %v", tt.ct, tt.uri, got, tt.want)
		}
	}
}

func TestURLSchemes_CloudStorageOnly(t *testing.T) {
	a := newAdapter(&fakeRecognizer{}, Config{})
	got := provider.URLSchemes(a)
	if len(got) != 1 || got[0] != "gs" {
		t.Errorf("URLSchemes() = %v, want [gs]", got)
	}
}
