package transcription

import (
	"context"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/mudler/xlog"
)

const (
	DefaultRetryBaseDelay = 2 * time.Second
	DefaultRetryMaxDelay  = 60 * time.Second
)

// Sleeper waits for d or until ctx is done. Tests inject a recording fake.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryEvent describes an attempt that is about to be made after a failure.
type RetryEvent struct {
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
	Err         error
}

// Retrier wraps a ChunkTranscriber and turns its errors into a ChunkOutcome.
// A chunk is tried at most attempts+1 times with exponential backoff.
type Retrier struct {
	transcriber ChunkTranscriber
	attempts    int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       Sleeper
}

type RetrierOption func(*Retrier)

func WithBaseDelay(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		if d >= 0 {
			r.baseDelay = d
		}
	}
}

// WithMaxDelay caps a single backoff. Zero or negative leaves the default.
func WithMaxDelay(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		if d > 0 {
			r.maxDelay = d
		}
	}
}

func WithSleeper(s Sleeper) RetrierOption {
	return func(r *Retrier) {
		if s != nil {
			r.sleep = s
		}
	}
}

func NewRetrier(transcriber ChunkTranscriber, attempts int, opts ...RetrierOption) *Retrier {
	if attempts < 0 {
		attempts = 0
	}
	r := &Retrier{
		transcriber: transcriber,
		attempts:    attempts,
		baseDelay:   DefaultRetryBaseDelay,
		maxDelay:    DefaultRetryMaxDelay,
		sleep:       SleepContext,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Backoff returns the wait before the n-th retry (1-based): base, 2*base,
// 4*base... capped at the max delay. It never decreases as n grows.
func (r *Retrier) Backoff(n int) time.Duration {
	if n < 1 || r.baseDelay <= 0 {
		return 0
	}
	d := r.baseDelay
	for i := 1; i < n && d < r.maxDelay; i++ {
		d *= 2
	}
	return min(d, r.maxDelay)
}

// Run never returns an error: failures are recorded in the outcome so the
// caller can keep going with the next chunk.
func (r *Retrier) Run(ctx context.Context, req ChunkRequest, onRetry func(RetryEvent)) schema.ChunkOutcome {
	maxAttempts := r.attempts + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.Backoff(attempt - 1)
			if onRetry != nil {
				onRetry(RetryEvent{Attempt: attempt, MaxAttempts: maxAttempts, Delay: delay, Err: lastErr})
			}
			if err := r.sleep(ctx, delay); err != nil {
				return schema.Failed(cancelled(err), attempt-1)
			}
		}

		res, err := r.transcriber.TranscribeChunk(ctx, req)
		if err == nil {
			return schema.Succeeded(res.Text, res.Language, attempt)
		}
		lastErr = err

		if ctx.Err() != nil {
			return schema.Failed(cancelled(ctx.Err()), attempt)
		}
		if !Retryable(err) {
			xlog.Debug("chunk error is not retryable", "chunk", req.Name, "error", err)
			return schema.Failed(err, attempt)
		}
		if attempt < maxAttempts {
			xlog.Warn("chunk transcription failed, retrying", "chunk", req.Name, "attempt", attempt, "max_attempts", maxAttempts, "error", err)
		}
	}

	xlog.Error("chunk transcription failed, giving up", "chunk", req.Name, "attempts", maxAttempts, "error", lastErr)
	return schema.Failed(lastErr, maxAttempts)
}
