// Command sttclient submits a media file or URL to the transcription proxy
// and waits for the transcript.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gabriel-vasile/mimetype"
	"github.com/schollz/progressbar/v3"

	"media-transcription-proxy/internal/client"
	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/service/poller"
)

type CLI struct {
	Input string `arg:"" help:"Media file path, or an http(s):// or gs:// URL"`

	Server      string        `short:"s" env:"TRANSCRIPTION_PROXY_URL" default:"http://localhost:8080" help:"Base URL of the transcription proxy"`
	Prompt      string        `short:"p" help:"Context prompt for the model"`
	Language    string        `short:"l" help:"Language of the media"`
	MinSpeakers int           `help:"Minimum number of speakers"`
	MaxSpeakers int           `help:"Maximum number of speakers"`
	Translate   bool          `short:"t" help:"Translate the transcript to English"`
	Timeout     time.Duration `default:"1h" help:"Give up polling after this long"`
	JSON        bool          `name:"json" help:"Print the raw transcript JSON"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("sttclient"),
		kong.Description("Submit media to the transcription proxy and print the transcript."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.FatalIfErrorf(cli.run(ctx, os.Stdout))
}

func (c *CLI) run(ctx context.Context, out io.Writer) error {
	req := client.SubmitRequest{
		Prompt:      c.Prompt,
		Language:    c.Language,
		MinSpeakers: c.MinSpeakers,
		MaxSpeakers: c.MaxSpeakers,
		Translate:   c.Translate,
	}

	if isURL(c.Input) {
		req.URL = c.Input
	} else {
		f, err := os.Open(c.Input)
		if err != nil {
			return err
		}
		defer f.Close()
		mt, err := mimetype.DetectFile(c.Input)
		if err != nil {
			return fmt.Errorf("detect type: %w", err)
		}
		req.File = f
		req.FileName = filepath.Base(c.Input)
		req.ContentType = mt.String()
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("uploading"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	onUpdate := func(u poller.Update) {
		bar.Describe(fmt.Sprintf("%s (poll %d, %s elapsed)", u.State, u.Attempt, u.Elapsed.Round(time.Second)))
		_ = bar.Add(1)
	}

	schedule := poller.DefaultSchedule()
	schedule.Timeout = c.Timeout

	result, took, err := client.New(c.Server, nil).Transcribe(ctx, req, onUpdate, poller.WithSchedule(schedule))
	_ = bar.Finish()
	if err != nil {
		if errors.Is(err, poller.ErrTimeout) {
			return errors.New(poller.TimeoutMessage)
		}
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprint(out, formatTranscript(result))
	fmt.Fprintf(out, "\nProcessing time: %s\n", took.Round(time.Millisecond))
	return nil
}

func isURL(s string) bool {
	for _, p := range []string{"http://", "https://", "gs://"} {
		if strings.HasPrefix(strings.ToLower(s), p) {
			return true
		}
	}
	return false
}

func formatTranscript(r *models.TranscriptionResult) string {
	var b strings.Builder
	if len(r.Segments) == 0 {
		b.WriteString(r.Text)
		b.WriteByte('\n')
		return b.String()
	}
	for _, s := range r.Segments {
		fmt.Fprintf(&b, "[%s - %s] %s: %s\n", clock(s.Start), clock(s.End), s.Speaker, strings.TrimSpace(s.Text))
	}
	return b.String()
}

func clock(sec float64) string {
	d := time.Duration(sec * float64(time.Second))
	return fmt.Sprintf("%02d:%02d.%01d", int(d.Minutes()), int(d.Seconds())%60, (d.Milliseconds()%1000)/100)
}
