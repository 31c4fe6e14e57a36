// Package google provides a Google Cloud Speech-to-Text transcription backend.
package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/service/provider"
)

const (
	Name = "google"

	defaultLanguage = "en-US"
)

type Config struct {
	APIKey       string
	Endpoint     string
	LanguageCode string
	Model        string
}

// recognizer runs one long-running recognition to completion.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

type speechRecognizer struct {
	client *speech.Client
}

func (r *speechRecognizer) Recognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := r.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (r *speechRecognizer) Close() error {
	return r.client.Close()
}

// Adapter implements provider.Provider using Google Cloud Speech-to-Text.
type Adapter struct {
	rec      recognizer
	language string
	model    string
}

// New creates a Google backend. Without an API key the client uses
// application default credentials (GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return newAdapter(&speechRecognizer{client: c}, cfg), nil
}

func newAdapter(rec recognizer, cfg Config) *Adapter {
	lang := cfg.LanguageCode
	if lang == "" {
		lang = defaultLanguage
	}
	return &Adapter{rec: rec, language: lang, model: cfg.Model}
}

func (a *Adapter) Name() string { return Name }

// URLSchemes reports that only Cloud Storage objects can be referenced by URL.
func (a *Adapter) URLSchemes() []string { return []string{"gs"} }

// Close releases the underlying gRPC connection.
func (a *Adapter) Close() error {
	return a.rec.Close()
}

// Transcribe waits for the long-running operation and returns a diarized
// Direct outcome.
func (a *Adapter) Transcribe(ctx context.Context, req provider.Request) (provider.Outcome, error) {
	audio := &speechpb.RecognitionAudio{}
	if req.IsURL() {
		if !strings.HasPrefix(req.URL, "gs://") {
			return nil, provider.NewStatusError(http.StatusBadRequest, []byte("google backend only accepts gs:// url inputs"))
		}
		audio.AudioSource = &speechpb.RecognitionAudio_Uri{Uri: req.URL}
	} else {
		data, err := io.ReadAll(req.File)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		audio.AudioSource = &speechpb.RecognitionAudio_Content{Content: data}
	}

	resp, err := a.rec.Recognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: a.recognitionConfig(req),
		Audio:  audio,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return parseResponse(resp), nil
}

func (a *Adapter) recognitionConfig(req provider.Request) *speechpb.RecognitionConfig {
	lang := a.language
	if req.Options.Language != "" {
		lang = req.Options.Language
	}
	rc := &speechpb.RecognitionConfig{
		Encoding:                   inferEncoding(req.ContentType, req.URL),
		LanguageCode:               lang,
		Model:                      a.model,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          int32(req.Options.MinSpeakers),
			MaxSpeakerCount:          int32(req.Options.MaxSpeakers),
		},
	}
	if req.Options.Prompt != "" {
		rc.SpeechContexts = []*speechpb.SpeechContext{{Phrases: strings.Fields(req.Options.Prompt)}}
	}
	return rc
}

func inferEncoding(contentType, uri string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(contentType)
	u := strings.ToLower(uri)
	switch {
	case strings.Contains(m, "wav") || strings.HasSuffix(u, ".wav"):
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac") || strings.HasSuffix(u, ".flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3") || strings.Contains(m, "mpeg") || strings.HasSuffix(u, ".mp3"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg") || strings.Contains(m, "opus") || strings.HasSuffix(u, ".ogg") || strings.HasSuffix(u, ".opus"):
		return speechpb.RecognitionConfig_OGG_OPUS
	case strings.Contains(m, "webm") || strings.HasSuffix(u, ".webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

// parseResponse joins the alternatives into the transcript text and groups
// diarized words into one segment per speaker turn.
func parseResponse(resp *speechpb.LongRunningRecognizeResponse) provider.Direct {
	var (
		text  []string
		words []*speechpb.WordInfo
	)
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 || alts[0] == nil {
			continue
		}
		alt := alts[0]
		if t := strings.TrimSpace(alt.GetTranscript()); t != "" {
			text = append(text, t)
		}
		// With diarization the final result repeats every word with a speaker tag.
		if len(alt.GetWords()) > 0 && alt.GetWords()[0].GetSpeakerTag() != 0 {
			words = alt.GetWords()
		}
	}

	return provider.Direct{
		Text:     strings.Join(text, " "),
		Segments: groupBySpeaker(words),
	}
}

func groupBySpeaker(words []*speechpb.WordInfo) []models.Segment {
	var segs []models.Segment
	var cur *models.Segment

	flush := func() {
		if cur != nil {
			segs = append(segs, *cur)
			cur = nil
		}
	}

	for _, w := range words {
		spk := speakerLabel(w.GetSpeakerTag())
		if cur != nil && cur.Speaker != spk {
			flush()
		}
		start, end := seconds(w.GetStartTime()), seconds(w.GetEndTime())
		if cur == nil {
			cur = &models.Segment{ID: len(segs), Start: start, Speaker: spk}
		}
		if cur.Text != "" {
			cur.Text += " "
		}
		cur.Text += w.GetWord()
		if end > cur.End {
			cur.End = end
		}
		cur.Words = append(cur.Words, models.Word{
			Word:    w.GetWord(),
			Start:   start,
			End:     end,
			Score:   float64(w.GetConfidence()),
			Speaker: spk,
		})
	}
	flush()
	return segs
}

func speakerLabel(tag int32) string {
	return fmt.Sprintf("SPEAKER_%02d", max(tag-1, 0))
}

func seconds(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return d.AsDuration().Seconds()
}

// mapError converts gRPC failures into provider status errors.
func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("google speech: %w", err)
	}
	return fmt.Errorf("google speech: %w", &provider.StatusError{
		StatusCode: httpStatus(st.Code()),
		Body:       st.Message(),
	})
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}
