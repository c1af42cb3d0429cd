package transcription

import (
	"sync"

	"github.com/apuntes-app/apuntes/core/schema"
)

// Observer receives progress events. Implementations must not block: they
// are called synchronously from the pipeline goroutine.
type Observer interface {
	OnProgress(p schema.TranscriptionProgress)
}

type ObserverFunc func(p schema.TranscriptionProgress)

func (f ObserverFunc) OnProgress(p schema.TranscriptionProgress) { f(p) }

// Reporter fans progress out to every subscribed observer. Progress never
// goes backwards, except for the terminal failure event which resets to 0.
type Reporter struct {
	mu        sync.Mutex
	observers []Observer
	last      int
}

func NewReporter(observers ...Observer) *Reporter {
	r := &Reporter{}
	for _, o := range observers {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
	return r
}

func (r *Reporter) Subscribe(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

func (r *Reporter) Report(output string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	progress = min(max(progress, r.last), 100)
	r.last = progress
	r.emit(schema.TranscriptionProgress{Output: output, Progress: progress})
}

// Fail emits the terminal event of an unsuccessful run.
func (r *Reporter) Fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = 0
	r.emit(schema.TranscriptionProgress{Output: message, Progress: 0})
}

// Last returns the most recently reported percentage.
func (r *Reporter) Last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Reporter) emit(p schema.TranscriptionProgress) {
	for _, o := range r.observers {
		o.OnProgress(p)
	}
}
