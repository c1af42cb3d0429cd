package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apuntes-app/apuntes/core/application"
	cliContext "github.com/apuntes-app/apuntes/core/cli/context"
	"github.com/apuntes-app/apuntes/core/config"
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/transcription"
	"github.com/apuntes-app/apuntes/pkg/signals"
	"github.com/google/uuid"
	"github.com/mudler/xlog"
	"github.com/schollz/progressbar/v3"
)

type TranscribeCMD struct {
	STTFlags `embed:""`

	Filename string `arg:"" type:"existingfile" help:"Recording to transcribe"`

	Profile     string `short:"p" help:"Transcription profile, defaults to the default profile"`
	Subject     string `short:"s" help:"Course or topic, used as a hint for the speech-to-text model"`
	SpeakerMode string `help:"Override the speaker mode of the profile (single or multiple)"`
	WebhookURL  string `short:"w" help:"Forward the transcript to this webhook"`
	NoMarkers   bool   `help:"Do not insert [m:ss] markers between chunks"`
	Output      string `short:"o" type:"path" help:"Write the transcript to this file instead of stdout"`
	Quiet       bool   `short:"q" help:"Do not render the progress bar"`
}

func (t *TranscribeCMD) Run(ctx *cliContext.Context) error {
	runCtx, cancel := signals.Context(context.Background())
	defer cancel()

	app, err := application.New(append(t.appOptions(),
		config.WithContext(runCtx),
		config.DisableMetricsEndpoint,
	)...)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Shutdown(context.Background()); err != nil {
			xlog.Debug("error while shutting down", "error", err)
		}
	}()

	opts, err := t.options(app.ApplicationConfig())
	if err != nil {
		return err
	}

	data, err := os.ReadFile(t.Filename)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	observers := app.Observers(runID)
	if !t.Quiet {
		bar := progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(filepath.Base(t.Filename)),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionClearOnFinish(),
		)
		observers = append(observers, progressBarObserver(bar))
	}

	res, err := app.Pipeline().Run(transcription.ContextWithRunID(runCtx, runID), data, filepath.Base(t.Filename), opts, observers...)
	if res != nil {
		for _, w := range res.Warnings {
			xlog.Warn(w)
		}
		for _, e := range res.Errors {
			xlog.Warn("chunk not transcribed", "chunk", e.String(), "attempts", e.Attempts)
		}
	}
	if err != nil && !(errors.Is(err, transcription.ErrCancelled) && res != nil && res.Transcript != "") {
		return err
	}

	if err := t.write(res.Transcript); err != nil {
		return err
	}
	// a cancelled run still printed its partial transcript
	return err
}

func (t *TranscribeCMD) options(appConfig *config.ApplicationConfig) (schema.TranscriptionOptions, error) {
	opts, err := appConfig.TranscriptionOptions(t.Profile)
	if err != nil {
		return opts, err
	}
	if t.Subject != "" {
		opts.Subject = t.Subject
	}
	if t.SpeakerMode != "" {
		opts.SpeakerMode = schema.SpeakerMode(t.SpeakerMode)
	}
	if t.WebhookURL != "" {
		opts.WebhookURL = t.WebhookURL
	}
	if t.NoMarkers {
		opts.TimeMarkers = false
	}
	return opts, opts.Validate()
}

func (t *TranscribeCMD) write(transcript string) error {
	if t.Output == "" {
		fmt.Println(transcript)
		return nil
	}
	return os.WriteFile(t.Output, []byte(transcript+"\n"), 0644)
}

func progressBarObserver(bar *progressbar.ProgressBar) transcription.ObserverFunc {
	return func(p schema.TranscriptionProgress) {
		if p.Progress == 0 {
			bar.Reset()
		}
		bar.Describe(describe(p.Output))
		_ = bar.Set(p.Progress)
	}
}

// describe keeps the bar on one line: intermediate outputs may carry the
// whole partial transcript.
func describe(output string) string {
	const maxLen = 40
	r := []rune(output)
	for i, c := range r {
		if c == '\n' {
			r = r[:i]
			break
		}
	}
	if len(r) > maxLen {
		return string(r[:maxLen-3]) + "..."
	}
	return string(r)
}
