package apuntes

import (
	"net/http"

	"github.com/apuntes-app/apuntes/core/application"
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/labstack/echo/v4"
)

type ProfilesResponse struct {
	Default  string                                 `json:"default"`
	Profiles map[string]schema.TranscriptionOptions `json:"profiles"`
}

// ListProfilesEndpoint lists the transcription profiles a request can name.
// @Summary List transcription profiles
// @Success 200 {object} ProfilesResponse "Profiles"
// @Router /v1/profiles [get]
func ListProfilesEndpoint(app *application.Application) echo.HandlerFunc {
	return func(c echo.Context) error {
		appConfig := app.ApplicationConfig()
		resp := ProfilesResponse{
			Default:  appConfig.DefaultProfile,
			Profiles: map[string]schema.TranscriptionOptions{},
		}
		for _, name := range appConfig.ProfileNames() {
			opts, err := appConfig.TranscriptionOptions(name)
			if err != nil {
				// removed by a reload in between
				continue
			}
			resp.Profiles[name] = opts
		}
		return c.JSON(http.StatusOK, resp)
	}
}
