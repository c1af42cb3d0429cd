package apuntes

import (
	"errors"
	"net/http"

	"github.com/apuntes-app/apuntes/core/application"
	"github.com/apuntes-app/apuntes/core/services"
	"github.com/labstack/echo/v4"
)

// SubmitJobEndpoint starts a transcription in the background.
// @Summary Submit an async transcription job
// @accept multipart/form-data
// @Param file formData file true "audio file"
// @Param profile formData string false "profile name"
// @Success 202 {object} map[string]string "Job submitted"
// @Failure 400 {object} schema.ErrorResponse "Invalid request"
// @Router /v1/transcriptions/jobs [post]
func SubmitJobEndpoint(app *application.Application) echo.HandlerFunc {
	return func(c echo.Context) error {
		up, err := readUpload(c, app.ApplicationConfig())
		if err != nil {
			return err
		}

		id := app.JobService().Submit(services.JobRequest{
			Filename: up.Filename,
			Data:     up.Data,
			Options:  up.Options,
		})
		return c.JSON(http.StatusAccepted, map[string]string{"job_id": id})
	}
}

// GetJobEndpoint returns a job's status and, once finished, its result.
// @Summary Get a transcription job
// @Param id path string true "Job ID"
// @Success 200 {object} services.Job "Job details"
// @Failure 404 {object} schema.ErrorResponse "Job not found"
// @Router /v1/transcriptions/jobs/{id} [get]
func GetJobEndpoint(app *application.Application) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := app.JobService().Get(c.Param("id"))
		if err != nil {
			return jobError(err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

// ListJobsEndpoint lists known jobs, newest first.
// @Summary List transcription jobs
// @Success 200 {array} services.Job "Jobs"
// @Router /v1/transcriptions/jobs [get]
func ListJobsEndpoint(app *application.Application) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, app.JobService().List())
	}
}

// CancelJobEndpoint stops a running job. Whatever was transcribed so far is
// still assembled and forwarded.
// @Summary Cancel a transcription job
// @Param id path string true "Job ID"
// @Success 202 {object} map[string]string "Cancellation requested"
// @Failure 404 {object} schema.ErrorResponse "Job not found"
// @Failure 409 {object} schema.ErrorResponse "Job already finished"
// @Router /v1/transcriptions/jobs/{id} [delete]
func CancelJobEndpoint(app *application.Application) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := app.JobService().Cancel(c.Param("id")); err != nil {
			return jobError(err)
		}
		return c.JSON(http.StatusAccepted, map[string]string{"message": "cancellation requested"})
	}
}

func jobError(err error) error {
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrJobFinished):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}
