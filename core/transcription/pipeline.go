package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/pkg/audio"
	"github.com/google/uuid"
	"github.com/mudler/xlog"
)

const DefaultChunkDelay = 500 * time.Millisecond

// Percentages of the progress bar reserved for each stage.
const (
	progressSegmented = 5
	progressChunked   = 90
	progressAssembled = 95
	progressDone      = 100
)

const (
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// Recorder receives pipeline measurements. The services package backs it
// with OpenTelemetry instruments.
type Recorder interface {
	ChunkFinished(outcome schema.ChunkOutcome, elapsed time.Duration)
	ChunkRetried()
	WebhookFinished(err error)
	RunFinished(status string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ChunkFinished(schema.ChunkOutcome, time.Duration) {}
func (noopRecorder) ChunkRetried()                                    {}
func (noopRecorder) WebhookFinished(error)                            {}
func (noopRecorder) RunFinished(string, time.Duration)                {}

// Pipeline turns one recording into one transcript: segment, transcribe
// every chunk in order, assemble, and optionally forward to a webhook.
type Pipeline struct {
	segmenter   audio.Segmenter
	transcriber ChunkTranscriber
	webhook     *WebhookForwarder
	recorder    Recorder
	retryDelay  time.Duration
	chunkDelay  time.Duration
	sleep       Sleeper
}

type PipelineOption func(*Pipeline)

func WithWebhook(w *WebhookForwarder) PipelineOption {
	return func(p *Pipeline) {
		p.webhook = w
	}
}

func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

func WithRetryDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.retryDelay = d
	}
}

// WithChunkDelay sets the pause between consecutive chunk requests.
func WithChunkDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.chunkDelay = d
	}
}

func WithPipelineSleeper(s Sleeper) PipelineOption {
	return func(p *Pipeline) {
		if s != nil {
			p.sleep = s
		}
	}
}

func NewPipeline(segmenter audio.Segmenter, transcriber ChunkTranscriber, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		segmenter:   segmenter,
		transcriber: transcriber,
		webhook:     NewWebhookForwarder(),
		recorder:    noopRecorder{},
		retryDelay:  DefaultRetryBaseDelay,
		chunkDelay:  DefaultChunkDelay,
		sleep:       SleepContext,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes a single recording. Chunks are transcribed strictly one at a
// time. Individual chunk failures are recorded in the result; the only
// fatal outcomes are invalid input, ErrNoTranscript and cancellation. On
// cancellation the partial result is returned together with ErrCancelled.
func (p *Pipeline) Run(ctx context.Context, data []byte, filename string, opts schema.TranscriptionOptions, observers ...Observer) (*schema.TranscriptionResult, error) {
	runID := RunIDFromContext(ctx)
	started := time.Now()
	reporter := NewReporter(observers...)
	reporter.Report("Preparing audio...", 0)

	fail := func(status string, err error) error {
		reporter.Fail(fmt.Sprintf("Transcription failed: %v", err))
		p.recorder.RunFinished(status, time.Since(started))
		xlog.Error("transcription run failed", "run_id", runID, "error", err)
		return err
	}

	if err := opts.Validate(); err != nil {
		return nil, fail(RunFailed, err)
	}
	if len(data) == 0 {
		return nil, fail(RunFailed, ErrEmptyAudio)
	}

	xlog.Info("transcription run started", "run_id", runID, "file", filename, "bytes", len(data), "max_chunk_duration", opts.MaxChunkDuration, "speaker_mode", opts.SpeakerMode)

	seg, err := p.segmenter.Segment(ctx, data, opts.MaxChunkDuration)
	if err != nil {
		if ctx.Err() != nil {
			return &schema.TranscriptionResult{RunID: runID}, fail(RunCancelled, cancelled(ctx.Err()))
		}
		return nil, fail(RunFailed, fmt.Errorf("segmentation failed: %w", err))
	}

	result := &schema.TranscriptionResult{
		RunID:    runID,
		Chunks:   len(seg.Chunks),
		Duration: seg.Duration,
	}
	if seg.Warning != nil {
		result.Warnings = append(result.Warnings, seg.Warning.Error())
	}

	chunks := make([]schema.AudioChunk, len(seg.Chunks))
	for i, c := range seg.Chunks {
		chunks[i] = schema.AudioChunk{
			Index:     i,
			Name:      audio.ChunkFileName(i, c.Data, filename),
			Data:      c.Data,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Degraded:  c.Degraded,
		}
	}
	outcomes := make([]schema.ChunkOutcome, len(chunks))

	total := len(chunks)
	reporter.Report(fmt.Sprintf("Audio split into %d chunk(s)", total), progressSegmented)

	retrier := NewRetrier(p.transcriber, opts.RetryAttempts, WithBaseDelay(p.retryDelay), WithSleeper(p.sleep))
	asm := NewAssembler(opts.TimeMarkers)

	var interrupted error
	for i := range chunks {
		chunk := &chunks[i]
		if err := ctx.Err(); err != nil {
			interrupted = cancelled(err)
			break
		}
		if i > 0 && p.chunkDelay > 0 {
			if err := p.sleep(ctx, p.chunkDelay); err != nil {
				interrupted = cancelled(err)
				break
			}
		}

		reporter.Report(fmt.Sprintf("Transcribing chunk %d of %d...", i+1, total), chunkProgress(i, total))

		chunkStarted := time.Now()
		outcome := retrier.Run(ctx, ChunkRequest{
			Name:        chunk.Name,
			Data:        chunk.Data,
			Subject:     opts.Subject,
			SpeakerMode: opts.SpeakerMode,
		}, func(ev RetryEvent) {
			p.recorder.ChunkRetried()
			reporter.Report(fmt.Sprintf("Retrying chunk %d of %d (attempt %d of %d)...", i+1, total, ev.Attempt, ev.MaxAttempts), reporter.Last())
		})
		chunk.Data = nil

		if outcome.State == schema.ChunkFailed && errors.Is(outcome.Err, ErrCancelled) {
			interrupted = outcome.Err
			break
		}

		outcomes[i] = outcome
		p.recorder.ChunkFinished(outcome, time.Since(chunkStarted))
		asm.Add(*chunk, outcome)

		switch outcome.State {
		case schema.ChunkSucceeded:
			if result.Language == "" {
				result.Language = outcome.Language
			}
		case schema.ChunkFailed:
			result.Errors = append(result.Errors, schema.ChunkError{
				Index:     chunk.Index,
				StartTime: chunk.StartTime,
				EndTime:   chunk.EndTime,
				Attempts:  outcome.Attempts,
				Message:   outcome.Err.Error(),
			})
			xlog.Warn("chunk failed, continuing with the next one", "run_id", runID, "chunk", chunk.String(), "attempts", outcome.Attempts, "error", outcome.Err)
		}

		reporter.Report(asm.Partial(), chunkProgress(i+1, total))
	}

	transcript, err := asm.Transcript()
	if err != nil {
		if interrupted != nil {
			return result, fail(RunCancelled, interrupted)
		}
		return result, fail(RunFailed, err)
	}
	result.Transcript = transcript
	reporter.Report(transcript, progressAssembled)

	// A cancelled run still delivers whatever was transcribed.
	if opts.WebhookURL != "" && p.webhook != nil {
		p.forward(context.WithoutCancel(ctx), runID, result, opts)
	}

	if interrupted != nil {
		reporter.Fail("Transcription cancelled")
		p.recorder.RunFinished(RunCancelled, time.Since(started))
		xlog.Warn("transcription run cancelled", "run_id", runID, "transcribed_chunks", countDone(outcomes))
		return result, interrupted
	}

	status := RunSucceeded
	if len(result.Errors) > 0 {
		status = RunPartial
	}
	p.recorder.RunFinished(status, time.Since(started))
	reporter.Report(transcript, progressDone)
	xlog.Info("transcription run finished", "run_id", runID, "status", status, "chunks", total, "failed_chunks", len(result.Errors), "elapsed", time.Since(started))
	return result, nil
}

type runIDKey struct{}

// ContextWithRunID makes Run log and report under id instead of a fresh one.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

func (p *Pipeline) forward(ctx context.Context, runID string, result *schema.TranscriptionResult, opts schema.TranscriptionOptions) {
	resp, err := p.webhook.Forward(ctx, opts.WebhookURL, result.Transcript, opts)
	p.recorder.WebhookFinished(err)
	if err != nil {
		xlog.Warn("webhook delivery failed", "run_id", runID, "url", opts.WebhookURL, "error", err)
		result.Warnings = append(result.Warnings, err.Error())
		return
	}
	result.WebhookResponse = resp
}

func chunkProgress(done, total int) int {
	if total <= 0 {
		return progressSegmented
	}
	return progressSegmented + (progressChunked-progressSegmented)*done/total
}

func countDone(outcomes []schema.ChunkOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.State != schema.ChunkPending {
			n++
		}
	}
	return n
}
