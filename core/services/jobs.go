package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/transcription"
	"github.com/apuntes-app/apuntes/pkg/concurrency"
	"github.com/apuntes-app/apuntes/pkg/xsync"
	"github.com/google/uuid"
	"github.com/mudler/xlog"
	"github.com/robfig/cron/v3"
)

var (
	ErrJobNotFound = errors.New("transcription job not found")
	ErrJobFinished = errors.New("transcription job already finished")
)

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Runner is satisfied by *transcription.Pipeline.
type Runner interface {
	Run(ctx context.Context, data []byte, filename string, opts schema.TranscriptionOptions, observers ...transcription.Observer) (*schema.TranscriptionResult, error)
}

// JobRequest is what a caller submits. Data is dropped once the run ends.
type JobRequest struct {
	Filename string
	Data     []byte
	Options  schema.TranscriptionOptions
}

// Job is a snapshot of an async transcription, safe to serialize.
type Job struct {
	ID         string                       `json:"id"`
	Status     JobStatus                    `json:"status"`
	Filename   string                       `json:"filename"`
	Progress   schema.TranscriptionProgress `json:"progress"`
	Result     *schema.TranscriptionResult  `json:"result,omitempty"`
	Error      string                       `json:"error,omitempty"`
	CreatedAt  time.Time                    `json:"created_at"`
	FinishedAt *time.Time                   `json:"finished_at,omitempty"`
}

type jobEntry struct {
	mu          sync.Mutex
	job         Job
	cancel      context.CancelFunc
	result      *concurrency.JobResult[JobRequest, schema.TranscriptionResult]
	subscribers map[int]chan schema.TranscriptionProgress
	nextSub     int
}

func (e *jobEntry) snapshot() Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

func (e *jobEntry) OnProgress(p schema.TranscriptionProgress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.job.Progress = p
	for _, ch := range e.subscribers {
		select {
		case ch <- p:
		default:
			// slow subscriber, drop the event
		}
	}
}

// ObserverFactory builds an extra per-job observer, e.g. a NATS publisher.
type ObserverFactory func(jobID string) transcription.Observer

// JobService runs transcriptions in the background and keeps their state
// around for JobRetention after they finish.
type JobService struct {
	ctx       context.Context
	runner    Runner
	jobs      *xsync.SyncedMap[string, *jobEntry]
	retention time.Duration
	observers []ObserverFactory
	now       func() time.Time
	scheduler *cron.Cron
}

func NewJobService(ctx context.Context, runner Runner, retention time.Duration, observers ...ObserverFactory) *JobService {
	return &JobService{
		ctx:       ctx,
		runner:    runner,
		jobs:      xsync.NewSyncedMap[string, *jobEntry](),
		retention: retention,
		observers: observers,
		now:       time.Now,
		scheduler: cron.New(),
	}
}

// StartPruning runs Prune on the cron schedule spec (e.g. "@every 1m") until
// Stop is called or the service context ends.
func (s *JobService) StartPruning(spec string) error {
	if _, err := s.scheduler.AddFunc(spec, func() { s.Prune() }); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	s.scheduler.Start()
	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()
	xlog.Debug("scheduled pruning of finished jobs", "schedule", spec, "retention", s.retention)
	return nil
}

// Stop halts scheduled pruning and waits for a running prune to return.
func (s *JobService) Stop() {
	<-s.scheduler.Stop().Done()
}

// Submit starts a run and returns its job id immediately.
func (s *JobService) Submit(req JobRequest) string {
	s.Prune()

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(transcription.ContextWithRunID(s.ctx, id))
	jr, wjr := concurrency.NewJobResult[JobRequest, schema.TranscriptionResult](JobRequest{
		Filename: req.Filename,
		Options:  req.Options,
	})
	entry := &jobEntry{
		job: Job{
			ID:        id,
			Status:    JobRunning,
			Filename:  req.Filename,
			CreatedAt: s.now(),
		},
		cancel:      cancel,
		result:      jr,
		subscribers: map[int]chan schema.TranscriptionProgress{},
	}
	s.jobs.Set(id, entry)

	observers := []transcription.Observer{entry}
	for _, f := range s.observers {
		if o := f(id); o != nil {
			observers = append(observers, o)
		}
	}

	go func() {
		defer cancel()
		res, err := s.runner.Run(ctx, req.Data, req.Filename, req.Options, observers...)
		s.finish(entry, res, err)
		wjr.SetResult(res, err)
	}()

	xlog.Info("transcription job submitted", "job_id", id, "file", req.Filename, "bytes", len(req.Data))
	return id
}

func (s *JobService) finish(entry *jobEntry, res *schema.TranscriptionResult, err error) {
	now := s.now()
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.job.Result = res
	entry.job.FinishedAt = &now
	switch {
	case err == nil:
		entry.job.Status = JobSucceeded
	case errors.Is(err, transcription.ErrCancelled):
		entry.job.Status = JobCancelled
		entry.job.Error = err.Error()
	default:
		entry.job.Status = JobFailed
		entry.job.Error = err.Error()
	}
	for id, ch := range entry.subscribers {
		close(ch)
		delete(entry.subscribers, id)
	}
	xlog.Info("transcription job finished", "job_id", entry.job.ID, "status", entry.job.Status)
}

func (s *JobService) Get(id string) (Job, error) {
	entry, ok := s.jobs.Get(id)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return entry.snapshot(), nil
}

// List returns every known job, newest first.
func (s *JobService) List() []Job {
	entries := s.jobs.Values()
	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, e.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs
}

// Cancel stops a running job. The pipeline still returns the partial
// transcript and forwards it to the webhook.
func (s *JobService) Cancel(id string) error {
	entry, ok := s.jobs.Get(id)
	if !ok {
		return ErrJobNotFound
	}
	if entry.result.Finished() {
		return ErrJobFinished
	}
	entry.cancel()
	xlog.Info("transcription job cancellation requested", "job_id", id)
	return nil
}

// Wait blocks until the job ends or ctx expires.
func (s *JobService) Wait(ctx context.Context, id string) (*schema.TranscriptionResult, error) {
	entry, ok := s.jobs.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	return entry.result.Wait(ctx)
}

// Subscribe streams progress events of a running job. Only events emitted
// after subscribing are delivered; the channel closes when the job ends.
func (s *JobService) Subscribe(id string) (<-chan schema.TranscriptionProgress, func(), error) {
	entry, ok := s.jobs.Get(id)
	if !ok {
		return nil, nil, ErrJobNotFound
	}

	ch := make(chan schema.TranscriptionProgress, 64)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.job.FinishedAt != nil {
		close(ch)
		return ch, func() {}, nil
	}
	sub := entry.nextSub
	entry.nextSub++
	entry.subscribers[sub] = ch

	unsubscribe := func() {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if c, ok := entry.subscribers[sub]; ok {
			close(c)
			delete(entry.subscribers, sub)
		}
	}
	return ch, unsubscribe, nil
}

// Prune forgets jobs that finished more than the retention period ago.
func (s *JobService) Prune() int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.retention)
	n := s.jobs.DeleteFunc(func(_ string, e *jobEntry) bool {
		j := e.snapshot()
		return j.FinishedAt != nil && j.FinishedAt.Before(cutoff)
	})
	if n > 0 {
		xlog.Debug("pruned finished transcription jobs", "count", n)
	}
	return n
}
