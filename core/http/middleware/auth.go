package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/apuntes-app/apuntes/core/config"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Keys are accepted as a bearer token, an x-api-key header, or an api_key
// query parameter for websocket clients that cannot set headers.
const keyLookup = "header:" + echo.HeaderAuthorization + ",header:x-api-key,query:api_key"

var exemptPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

func KeyAuth(applicationConfig *config.ApplicationConfig) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper:      getApiKeyRequiredFilterFunction(applicationConfig),
		KeyLookup:    keyLookup,
		AuthScheme:   "Bearer",
		Validator:    getApiKeyValidationFunction(applicationConfig),
		ErrorHandler: getApiKeyErrorHandler(),
	})
}

func getApiKeyErrorHandler() middleware.KeyAuthErrorHandler {
	return func(err error, c echo.Context) error {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return &echo.HTTPError{
			Code:     http.StatusUnauthorized,
			Message:  "An authentication key is required",
			Internal: err,
		}
	}
}

func getApiKeyValidationFunction(applicationConfig *config.ApplicationConfig) middleware.KeyAuthValidator {
	return func(apiKey string, c echo.Context) (bool, error) {
		for _, validKey := range applicationConfig.ApiKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				return true, nil
			}
		}
		return false, nil
	}
}

func getApiKeyRequiredFilterFunction(applicationConfig *config.ApplicationConfig) middleware.Skipper {
	return func(c echo.Context) bool {
		if len(applicationConfig.ApiKeys) == 0 {
			return true
		}
		return exemptPaths[c.Request().URL.Path]
	}
}
