package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// StripPathPrefix removes the prefix a reverse proxy announces in
// X-Forwarded-Prefix so routes match when apuntes is mounted below a sub
// path. Register it with e.Pre so it runs before routing.
func StripPathPrefix() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			for _, prefix := range req.Header.Values("X-Forwarded-Prefix") {
				if p, ok := trimPrefix(req.URL.Path, prefix); ok {
					req.URL.Path = p
					req.URL.RawPath = ""
					req.RequestURI = req.URL.RequestURI()
					break
				}
			}
			return next(c)
		}
	}
}

// trimPrefix only matches on a segment boundary, so /api does not strip
// /apiv2/x.
func trimPrefix(path, prefix string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return path, false
	}
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || (rest != "" && rest[0] != '/') {
		return path, false
	}
	if rest == "" {
		rest = "/"
	}
	return rest, true
}
