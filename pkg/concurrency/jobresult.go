package concurrency

import (
	"context"
	"sync"
)

// JobResult is the read-only side of an asynchronous action. Unlike a plain
// channel it keeps the result around, so any number of callers can Wait
// after completion, and a result can travel together with an error.
type JobResult[RequestType any, ResultType any] struct {
	request *RequestType
	once    sync.Once
	done    chan struct{}

	mu     sync.RWMutex
	result *ResultType
	err    error
}

// WritableJobResult is handed to the producer only.
type WritableJobResult[RequestType any, ResultType any] struct {
	*JobResult[RequestType, ResultType]
}

// Wait blocks until the result is ready or ctx expires. Both values may be
// set: a cancelled transcription still carries its partial result.
func (jr *JobResult[RequestType, ResultType]) Wait(ctx context.Context) (*ResultType, error) {
	select {
	case <-jr.done:
		jr.mu.RLock()
		defer jr.mu.RUnlock()
		return jr.result, jr.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Finished reports whether the result has been set, without blocking.
func (jr *JobResult[RequestType, ResultType]) Finished() bool {
	select {
	case <-jr.done:
		return true
	default:
		return false
	}
}

// Done is closed once the result is set.
func (jr *JobResult[RequestType, ResultType]) Done() <-chan struct{} {
	return jr.done
}

func (jr *JobResult[RequestType, ResultType]) Request() *RequestType {
	return jr.request
}

// SetResult publishes the outcome. Only the first call has any effect.
func (wjr *WritableJobResult[RequestType, ResultType]) SetResult(result *ResultType, err error) {
	wjr.once.Do(func() {
		wjr.mu.Lock()
		wjr.result = result
		wjr.err = err
		wjr.mu.Unlock()
		close(wjr.done)
	})
}

// NewJobResult binds a request to a matched pair of JobResult and WritableJobResult.
func NewJobResult[RequestType any, ResultType any](request RequestType) (*JobResult[RequestType, ResultType], *WritableJobResult[RequestType, ResultType]) {
	jr := &JobResult[RequestType, ResultType]{
		request: &request,
		done:    make(chan struct{}),
	}
	return jr, &WritableJobResult[RequestType, ResultType]{JobResult: jr}
}
