package routes

import (
	"github.com/apuntes-app/apuntes/core/application"
	"github.com/apuntes-app/apuntes/core/http/endpoints/apuntes"
	"github.com/labstack/echo/v4"
)

func RegisterTranscriptionRoutes(e *echo.Echo, app *application.Application) {
	e.POST("/v1/transcriptions", apuntes.TranscriptionEndpoint(app))

	jobs := e.Group("/v1/transcriptions/jobs")
	jobs.POST("", apuntes.SubmitJobEndpoint(app))
	jobs.GET("", apuntes.ListJobsEndpoint(app))
	jobs.GET("/:id", apuntes.GetJobEndpoint(app))
	jobs.DELETE("/:id", apuntes.CancelJobEndpoint(app))
	jobs.GET("/:id/ws", apuntes.JobProgressEndpoint(app))

	e.GET("/v1/profiles", apuntes.ListProfilesEndpoint(app))

	if g := app.MetricsGatherer(); g != nil {
		e.GET("/metrics", apuntes.MetricsEndpoint(g))
	}
}
