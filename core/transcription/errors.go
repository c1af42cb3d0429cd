package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyAudio is returned for a zero-byte chunk. It is never retried.
	ErrEmptyAudio = errors.New("empty audio payload")
	// ErrTimeout is returned when the speech-to-text service does not answer in time.
	ErrTimeout = errors.New("transcription request timed out")
	// ErrMalformedResponse is returned for a 2xx response whose body cannot be decoded.
	ErrMalformedResponse = errors.New("transcription response could not be decoded")
	// ErrNoTranscript is the only pipeline-fatal condition: every chunk failed.
	ErrNoTranscript = errors.New("no transcript could be produced")
	ErrCancelled    = errors.New("transcription cancelled")
	// ErrNothingToForward is returned by the webhook forwarder for empty transcripts.
	ErrNothingToForward = errors.New("nothing to forward")
)

type APIErrorKind string

const (
	APIErrorRateLimited APIErrorKind = "rate_limited"
	APIErrorTooLarge    APIErrorKind = "too_large"
	APIErrorServer      APIErrorKind = "server_error"
	APIErrorOther       APIErrorKind = "other"
)

// APIError is a non-2xx answer from the speech-to-text service.
type APIError struct {
	StatusCode int
	Kind       APIErrorKind
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("speech-to-text api error (%s, status %d)", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("speech-to-text api error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Retryable is true for every status. Kind only labels the failure.
func (e *APIError) Retryable() bool {
	return true
}

func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Kind: ClassifyStatus(statusCode), Message: message}
}

func ClassifyStatus(statusCode int) APIErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return APIErrorRateLimited
	case statusCode == http.StatusRequestEntityTooLarge:
		return APIErrorTooLarge
	case statusCode >= 500:
		return APIErrorServer
	default:
		return APIErrorOther
	}
}

// Retryable reports whether another attempt could succeed.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrEmptyAudio),
		errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled):
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
