package apuntes

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/apuntes-app/apuntes/core/config"
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/pkg/utils"
	"github.com/labstack/echo/v4"
)

// upload is a parsed multipart transcription request.
type upload struct {
	Filename string
	Data     []byte
	Options  schema.TranscriptionOptions
}

// readUpload reads the "file" part and resolves the options: the named
// profile (or the default one) overridden by any explicit form field.
func readUpload(c echo.Context, appConfig *config.ApplicationConfig) (*upload, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "missing audio file in form field \"file\"").SetInternal(err)
	}

	opts, err := appConfig.TranscriptionOptions(c.FormValue("profile"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := applyFormOverrides(c, &opts); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if v := c.FormValue("webhook_url"); v != "" {
		if !appConfig.WebhookAllowPrivate {
			if err := utils.ValidatePublicURL(c.Request().Context(), v); err != nil {
				return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("webhook_url rejected: %v", err))
			}
		}
		opts.WebhookURL = v
	}
	if err := opts.Validate(); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data, err := utils.ReadMultipartFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed reading uploaded file: %w", err)
	}
	if len(data) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "uploaded file is empty")
	}

	return &upload{
		Filename: file.Filename,
		Data:     data,
		Options:  opts,
	}, nil
}

func applyFormOverrides(c echo.Context, opts *schema.TranscriptionOptions) error {
	if v := c.FormValue("subject"); v != "" {
		opts.Subject = v
	}
	if v := c.FormValue("speaker_mode"); v != "" {
		opts.SpeakerMode = schema.SpeakerMode(v)
	}
	if v := c.FormValue("max_chunk_duration"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid max_chunk_duration %q", v)
		}
		opts.MaxChunkDuration = d
	}
	if v := c.FormValue("retry_attempts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid retry_attempts %q", v)
		}
		opts.RetryAttempts = n
	}
	if v := c.FormValue("time_markers"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid time_markers %q", v)
		}
		opts.TimeMarkers = b
	}
	return nil
}
