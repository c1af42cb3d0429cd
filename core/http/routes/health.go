package routes

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthRoutes registers liveness and readiness probes. Readiness fails once
// ctx is done.
func HealthRoutes(e *echo.Echo, ctx context.Context) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/readyz", func(c echo.Context) error {
		if ctx.Err() != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
}
