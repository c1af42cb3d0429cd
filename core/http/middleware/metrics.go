package middleware

import (
	"time"

	"github.com/apuntes-app/apuntes/core/services"
	"github.com/labstack/echo/v4"
)

// Metrics records the latency of every API call, keyed by route pattern so
// job ids do not explode the label set.
func Metrics(metrics *services.MetricsService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if shouldSkipMetrics(c.Path()) {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			metrics.ObserveAPICall(c.Request().Method, c.Path(), time.Since(start).Seconds())
			return err
		}
	}
}

func shouldSkipMetrics(path string) bool {
	switch path {
	case "", "/metrics", "/healthz", "/readyz":
		return true
	}
	return false
}
