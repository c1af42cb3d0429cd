package apuntes

import (
	"net/http"
	"sync"
	"time"

	"github.com/apuntes-app/apuntes/core/application"
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/services"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/mudler/xlog"
)

const wsWriteTimeout = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressMessage is what the progress stream sends: one "progress" message
// per event, then a single "done" message with the final job snapshot.
type ProgressMessage struct {
	Type     string                        `json:"type"`
	Progress *schema.TranscriptionProgress `json:"progress,omitempty"`
	Job      *services.Job                 `json:"job,omitempty"`
}

// lockedConn wraps a websocket connection with a mutex for safe concurrent writes
type lockedConn struct {
	*websocket.Conn
	sync.Mutex
}

func (lc *lockedConn) writeJSON(v any) error {
	lc.Lock()
	defer lc.Unlock()
	lc.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return lc.Conn.WriteJSON(v)
}

// JobProgressEndpoint streams the progress of a job over a websocket. Only
// events emitted after the connection is established are sent.
// @Summary Stream transcription progress
// @Param id path string true "Job ID"
// @Router /v1/transcriptions/jobs/{id}/ws [get]
func JobProgressEndpoint(app *application.Application) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		events, unsubscribe, err := app.JobService().Subscribe(id)
		if err != nil {
			return jobError(err)
		}
		defer unsubscribe()

		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		defer ws.Close()
		conn := &lockedConn{Conn: ws}

		xlog.Debug("progress stream opened", "job_id", id, "address", ws.RemoteAddr().String())

		// The client never sends anything; reading only detects it leaving.
		go func() {
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						xlog.Debug("progress stream read error", "job_id", id, "error", err)
					}
					unsubscribe()
					return
				}
			}
		}()

		for ev := range events {
			if err := conn.writeJSON(ProgressMessage{Type: "progress", Progress: &ev}); err != nil {
				xlog.Debug("progress stream closed by client", "job_id", id, "error", err)
				return nil
			}
		}

		job, err := app.JobService().Get(id)
		if err != nil {
			return nil
		}
		if err := conn.writeJSON(ProgressMessage{Type: "done", Job: &job}); err != nil {
			return nil
		}
		conn.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)),
			time.Now().Add(wsWriteTimeout))
		conn.Unlock()
		return nil
	}
}
