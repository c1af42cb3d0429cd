package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel          = openai.Whisper1
	DefaultLanguage       = "es"
	DefaultRequestTimeout = 90 * time.Second
)

// ChunkRequest is everything a transcriber needs to turn one chunk into text.
type ChunkRequest struct {
	Name        string
	Data        []byte
	Subject     string
	SpeakerMode schema.SpeakerMode
}

type Transcription struct {
	Text     string
	Language string
}

// ChunkTranscriber performs exactly one request per call. Retrying is the
// caller's business.
type ChunkTranscriber interface {
	TranscribeChunk(ctx context.Context, req ChunkRequest) (Transcription, error)
}

// OpenAITranscriber talks to any OpenAI-compatible /audio/transcriptions
// endpoint.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
	timeout  time.Duration
}

type TranscriberOption func(*OpenAITranscriber)

func WithModel(model string) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if model != "" {
			t.model = model
		}
	}
}

func WithLanguage(language string) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if language != "" {
			t.language = language
		}
	}
}

func WithRequestTimeout(d time.Duration) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func NewOpenAITranscriber(baseURL, apiKey string, httpClient *http.Client, opts ...TranscriberOption) *OpenAITranscriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	t := &OpenAITranscriber{
		client:   openai.NewClientWithConfig(cfg),
		model:    DefaultModel,
		language: DefaultLanguage,
		timeout:  DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *OpenAITranscriber) TranscribeChunk(ctx context.Context, req ChunkRequest) (Transcription, error) {
	if len(req.Data) == 0 {
		return Transcription{}, ErrEmptyAudio
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	started := time.Now()
	resp, err := t.client.CreateTranscription(callCtx, openai.AudioRequest{
		Model:    t.model,
		FilePath: req.Name,
		Reader:   bytes.NewReader(req.Data),
		Prompt:   BuildPrompt(req.SpeakerMode, req.Subject),
		Language: t.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcription{}, t.classify(ctx, callCtx, err)
	}

	// A silent chunk comes back with empty text and is still a success.
	text := strings.TrimSpace(resp.Text)

	xlog.Debug("chunk transcribed", "chunk", req.Name, "bytes", len(req.Data), "elapsed", time.Since(started), "language", resp.Language)
	return Transcription{
		Text:     text,
		Language: normalizeLanguage(resp.Language, t.language),
	}, nil
}

// classify maps client errors onto the package's error taxonomy.
func (t *OpenAITranscriber) classify(parent, call context.Context, err error) error {
	if parent.Err() != nil {
		return cancelled(parent.Err())
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewAPIError(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return NewAPIError(reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)))
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("transcription request failed: %w", err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return fmt.Errorf("transcription request failed: %w", err)
}
