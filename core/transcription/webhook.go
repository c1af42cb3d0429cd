package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/mudler/xlog"
)

const (
	DefaultWebhookTimeout = 30 * time.Second
	maxWebhookResponse    = 1 << 20
)

// WebhookPayload is the JSON body delivered to the configured URL.
type WebhookPayload struct {
	Transcript  string             `json:"transcript"`
	Subject     string             `json:"subject,omitempty"`
	SpeakerMode schema.SpeakerMode `json:"speakerMode"`
	Timestamp   time.Time          `json:"timestamp"`
}

// WebhookForwarder POSTs the final transcript to a user-supplied URL. A
// single attempt is made; delivery problems never fail the pipeline.
type WebhookForwarder struct {
	client        *http.Client
	plainText     bool
	authorization string
	now           func() time.Time
}

type WebhookOption func(*WebhookForwarder)

// WithPlainText sends the bare transcript as text/plain instead of JSON.
func WithPlainText(enabled bool) WebhookOption {
	return func(w *WebhookForwarder) {
		w.plainText = enabled
	}
}

func WithWebhookAuthorization(header string) WebhookOption {
	return func(w *WebhookForwarder) {
		w.authorization = header
	}
}

func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *WebhookForwarder) {
		if c != nil {
			w.client = c
		}
	}
}

func NewWebhookForwarder(opts ...WebhookOption) *WebhookForwarder {
	w := &WebhookForwarder{
		client: &http.Client{Timeout: DefaultWebhookTimeout},
		now:    time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Forward delivers the transcript and returns the receiver's response body.
// JSON bodies are returned verbatim, anything else is wrapped as a JSON
// string. An empty transcript is never sent.
func (w *WebhookForwarder) Forward(ctx context.Context, url string, transcript string, opts schema.TranscriptionOptions) (json.RawMessage, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrNothingToForward
	}

	body, contentType, err := w.body(transcript, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if w.authorization != "" {
		req.Header.Set("Authorization", w.authorization)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponse))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	xlog.Debug("webhook delivered", "url", url, "status", resp.StatusCode, "bytes", len(body))
	return responsePayload(raw), nil
}

func (w *WebhookForwarder) body(transcript string, opts schema.TranscriptionOptions) ([]byte, string, error) {
	if w.plainText {
		return []byte(transcript), "text/plain; charset=utf-8", nil
	}
	b, err := json.Marshal(WebhookPayload{
		Transcript:  transcript,
		Subject:     opts.Subject,
		SpeakerMode: opts.SpeakerMode,
		Timestamp:   w.now().UTC(),
	})
	if err != nil {
		return nil, "", err
	}
	return b, "application/json", nil
}

func responsePayload(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(string(trimmed))
	if err != nil {
		return nil
	}
	return quoted
}
