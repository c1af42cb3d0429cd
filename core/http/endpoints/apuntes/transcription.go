package apuntes

import (
	"errors"
	"net/http"

	"github.com/apuntes-app/apuntes/core/application"
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/transcription"
	"github.com/apuntes-app/apuntes/pkg/audio"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// statusClientClosedRequest is used when the caller went away mid-run.
const statusClientClosedRequest = 499

// FailedTranscription carries the partial result next to the error, so a
// caller still sees which chunks failed.
type FailedTranscription struct {
	Error  *schema.APIError            `json:"error"`
	Result *schema.TranscriptionResult `json:"result,omitempty"`
}

// TranscriptionEndpoint transcribes a recording and answers once the whole
// pipeline is done.
// @Summary Transcribe a recording
// @accept multipart/form-data
// @Param file formData file true "audio file"
// @Param profile formData string false "profile name"
// @Param subject formData string false "course or topic, used as a prompt hint"
// @Param speaker_mode formData string false "single or multiple"
// @Param webhook_url formData string false "where to forward the transcript"
// @Success 200 {object} schema.TranscriptionResult "Response"
// @Router /v1/transcriptions [post]
func TranscriptionEndpoint(app *application.Application) echo.HandlerFunc {
	return func(c echo.Context) error {
		up, err := readUpload(c, app.ApplicationConfig())
		if err != nil {
			return err
		}

		runID := uuid.New().String()
		ctx := transcription.ContextWithRunID(c.Request().Context(), runID)
		res, err := app.Pipeline().Run(ctx, up.Data, up.Filename, up.Options, app.Observers(runID)...)
		if err != nil {
			code := statusForError(err)
			return c.JSON(code, FailedTranscription{
				Error:  &schema.APIError{Message: err.Error(), Code: code, Type: errorType(err)},
				Result: res,
			})
		}
		return c.JSON(http.StatusOK, res)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, transcription.ErrEmptyAudio), errors.Is(err, audio.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, audio.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transcription.ErrCancelled):
		return statusClientClosedRequest
	case errors.Is(err, transcription.ErrNoTranscript):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, transcription.ErrCancelled):
		return "cancelled"
	case errors.Is(err, transcription.ErrNoTranscript):
		return "no_transcript"
	case errors.Is(err, transcription.ErrEmptyAudio), errors.Is(err, audio.ErrEmpty), errors.Is(err, audio.ErrDecode):
		return "invalid_request_error"
	default:
		return "server_error"
	}
}
