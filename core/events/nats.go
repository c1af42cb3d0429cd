package events

import (
	"encoding/json"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/transcription"
	"github.com/mudler/xlog"
	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn the observer needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ProgressEvent is the payload published for every progress update.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Output    string    `json:"output"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

var _ transcription.Observer = (*NATSObserver)(nil)

// NATSObserver republishes progress on "<prefix>.<run id>". Publishing is
// buffered by the client, so OnProgress never blocks the pipeline.
type NATSObserver struct {
	pub     Publisher
	subject string
	runID   string
	now     func() time.Time
}

func NewNATSObserver(pub Publisher, prefix, runID string) *NATSObserver {
	return &NATSObserver{
		pub:     pub,
		subject: Subject(prefix, runID),
		runID:   runID,
		now:     time.Now,
	}
}

func Subject(prefix, runID string) string {
	return prefix + "." + runID
}

func (o *NATSObserver) OnProgress(p schema.TranscriptionProgress) {
	data, err := json.Marshal(ProgressEvent{
		RunID:     o.runID,
		Output:    p.Output,
		Progress:  p.Progress,
		Timestamp: o.now().UTC(),
	})
	if err != nil {
		xlog.Error("failed to encode progress event", "run_id", o.runID, "error", err)
		return
	}
	if err := o.pub.Publish(o.subject, data); err != nil {
		xlog.Warn("failed to publish progress event", "subject", o.subject, "error", err)
	}
}

// Connect dials the NATS server and keeps reconnecting in the background.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("apuntes"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				xlog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			xlog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
}
