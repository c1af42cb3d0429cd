package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/mudler/xlog"
)

func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			err := next(c)
			if err != nil {
				// let the error handler set the final status before logging
				c.Error(err)
			}
			xlog.Info("HTTP request", "method", req.Method, "path", req.URL.Path, "status", c.Response().Status)
			return nil
		}
	}
}
