package schema

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultMaxChunkDuration is the window length, in seconds, used when none is given.
	DefaultMaxChunkDuration = 300.0
	// MaxChunkDurationCeiling is the longest window the speech-to-text service accepts safely.
	MaxChunkDurationCeiling = 420.0
	// DefaultRetryAttempts is the number of extra tries per chunk after the first failure.
	DefaultRetryAttempts = 3
	// MaxRetryAttempts bounds RetryAttempts.
	MaxRetryAttempts = 10
)

type SpeakerMode string

const (
	SpeakerModeSingle   SpeakerMode = "single"
	SpeakerModeMultiple SpeakerMode = "multiple"
)

func (m SpeakerMode) Valid() bool {
	return m == SpeakerModeSingle || m == SpeakerModeMultiple
}

// TranscriptionOptions is fixed for the lifetime of a pipeline run.
type TranscriptionOptions struct {
	// MaxChunkDuration is expressed in seconds
	MaxChunkDuration float64     `json:"max_chunk_duration" yaml:"max_chunk_duration"`
	SpeakerMode      SpeakerMode `json:"speaker_mode" yaml:"speaker_mode"`
	Subject          string      `json:"subject,omitempty" yaml:"subject,omitempty"`
	WebhookURL       string      `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	RetryAttempts    int         `json:"retry_attempts" yaml:"retry_attempts"`
	TimeMarkers      bool        `json:"time_markers" yaml:"time_markers"`
}

// DefaultTranscriptionOptions returns the options used by the "standard" profile.
func DefaultTranscriptionOptions() TranscriptionOptions {
	return TranscriptionOptions{
		MaxChunkDuration: DefaultMaxChunkDuration,
		SpeakerMode:      SpeakerModeSingle,
		RetryAttempts:    DefaultRetryAttempts,
		TimeMarkers:      true,
	}
}

// Validate normalizes the options in place. A zero or oversized chunk
// duration is clamped rather than rejected.
func (o *TranscriptionOptions) Validate() error {
	if o.MaxChunkDuration <= 0 {
		o.MaxChunkDuration = DefaultMaxChunkDuration
	}
	if o.MaxChunkDuration > MaxChunkDurationCeiling {
		o.MaxChunkDuration = MaxChunkDurationCeiling
	}
	if o.SpeakerMode == "" {
		o.SpeakerMode = SpeakerModeSingle
	}
	if !o.SpeakerMode.Valid() {
		return fmt.Errorf("invalid speaker mode %q", o.SpeakerMode)
	}
	if o.RetryAttempts < 0 || o.RetryAttempts > MaxRetryAttempts {
		return fmt.Errorf("retry attempts must be between 0 and %d, got %d", MaxRetryAttempts, o.RetryAttempts)
	}
	if o.WebhookURL != "" {
		u, err := url.Parse(o.WebhookURL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid webhook url %q", o.WebhookURL)
		}
	}
	return nil
}

// AudioChunk is a bounded-duration slice of a recording. Times are in seconds.
type AudioChunk struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Data      []byte  `json:"-"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Degraded  bool    `json:"degraded,omitempty"`
}

func (c AudioChunk) Duration() float64 {
	return c.EndTime - c.StartTime
}

func (c AudioChunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s", c.Index, FormatTimestamp(c.StartTime), FormatTimestamp(c.EndTime))
}

type ChunkState int

const (
	ChunkPending ChunkState = iota
	ChunkSucceeded
	ChunkFailed
)

func (s ChunkState) String() string {
	switch s {
	case ChunkSucceeded:
		return "succeeded"
	case ChunkFailed:
		return "failed"
	default:
		return "pending"
	}
}

// ChunkOutcome is the result slot for one chunk. Outcomes are stored in an
// array parallel to the chunks, indexed by AudioChunk.Index.
type ChunkOutcome struct {
	State    ChunkState
	Text     string
	Language string
	Err      error
	Attempts int
}

func Succeeded(text, language string, attempts int) ChunkOutcome {
	return ChunkOutcome{State: ChunkSucceeded, Text: text, Language: language, Attempts: attempts}
}

func Failed(err error, attempts int) ChunkOutcome {
	return ChunkOutcome{State: ChunkFailed, Err: err, Attempts: attempts}
}

// TranscriptionProgress is emitted repeatedly during a run and never persisted.
type TranscriptionProgress struct {
	Output   string `json:"output"`
	Progress int    `json:"progress"`
}

type ChunkError struct {
	Index     int     `json:"index"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Attempts  int     `json:"attempts"`
	Message   string  `json:"message"`
}

func (e ChunkError) String() string {
	return fmt.Sprintf("chunk %d [%s]: %s", e.Index+1, FormatTimestamp(e.StartTime), e.Message)
}

type TranscriptionResult struct {
	RunID           string          `json:"run_id"`
	Transcript      string          `json:"transcript"`
	Language        string          `json:"language,omitempty"`
	WebhookResponse json.RawMessage `json:"webhook_response,omitempty"`
	Errors          []ChunkError    `json:"errors,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	Chunks          int             `json:"chunks"`
	Duration        float64         `json:"duration"`
}

// FormatTimestamp renders seconds as minutes:seconds, e.g. 300 -> "5:00".
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
