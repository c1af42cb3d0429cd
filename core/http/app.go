package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/apuntes-app/apuntes/core/application"
	httpMiddleware "github.com/apuntes-app/apuntes/core/http/middleware"
	"github.com/apuntes-app/apuntes/core/http/routes"
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/mudler/xlog"
)

// @title apuntes API
// @version 1.0.0
// @description Lecture recording transcription API.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func API(application *application.Application) (*echo.Echo, error) {
	appConfig := application.ApplicationConfig()
	e := echo.New()
	e.Pre(httpMiddleware.StripPathPrefix())

	// Set body limit
	if appConfig.UploadLimitMB > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", appConfig.UploadLimitMB)))
	}

	// Set error handler
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		message := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		}
		if code >= http.StatusInternalServerError {
			xlog.Error("request failed", "path", c.Request().URL.Path, "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, schema.ErrorResponse{
				Error: &schema.APIError{Message: message, Code: code, Type: http.StatusText(code)},
			})
		}
		if err != nil {
			xlog.Error("failed to send error response", "error", err)
		}
	}

	// Hide banner
	e.HideBanner = true
	e.HidePort = true

	e.Use(httpMiddleware.RequestLogger())

	// Recover middleware
	if !appConfig.Debug {
		e.Use(middleware.Recover())
	}

	// Metrics middleware
	if metrics := application.MetricsService(); metrics != nil {
		e.Use(httpMiddleware.Metrics(metrics))
	}

	// CORS middleware
	if appConfig.CORS {
		e.Use(middleware.CORS())
	}

	// Auth is applied to all endpoints except the health checks
	e.Use(httpMiddleware.KeyAuth(appConfig))

	routes.HealthRoutes(e, appConfig.Context)
	routes.RegisterTranscriptionRoutes(e, application)

	e.Server.RegisterOnShutdown(func() {
		xlog.Info("apuntes API server shutting down")
	})

	return e, nil
}
