package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/apuntes-app/apuntes/core/application"
	cliContext "github.com/apuntes-app/apuntes/core/cli/context"
	"github.com/apuntes-app/apuntes/core/config"
	apuntesHTTP "github.com/apuntes-app/apuntes/core/http"
	"github.com/apuntes-app/apuntes/pkg/signals"
	"github.com/mudler/xlog"
)

const shutdownTimeout = 30 * time.Second

type RunCMD struct {
	STTFlags `embed:""`

	Address                string        `env:"APUNTES_ADDRESS,ADDRESS" default:":8080" help:"Bind address for the API server" group:"api"`
	CORS                   bool          `env:"APUNTES_CORS,CORS" help:"Enable CORS for all origins" group:"api"`
	UploadLimit            int           `env:"APUNTES_UPLOAD_LIMIT,UPLOAD_LIMIT" default:"200" help:"Default upload-limit in MB" group:"api"`
	APIKeys                []string      `env:"APUNTES_API_KEY,API_KEY" help:"List of API Keys to enable API authentication. When this is set, all the requests must be authenticated with one of these API keys" group:"api"`
	DisableMetricsEndpoint bool          `env:"APUNTES_DISABLE_METRICS_ENDPOINT,DISABLE_METRICS_ENDPOINT" default:"false" help:"Disable the /metrics endpoint" group:"api"`
	JobRetention           time.Duration `env:"APUNTES_JOB_RETENTION" default:"1h" help:"How long finished jobs stay queryable" group:"api"`
	JobPruneSchedule       string        `env:"APUNTES_JOB_PRUNE_SCHEDULE" default:"@every 1m" help:"Cron schedule that forgets jobs older than the retention" group:"api"`
	WebhookURL             string        `env:"APUNTES_WEBHOOK_URL,WEBHOOK_URL" help:"Webhook used by every request that does not name its own" group:"webhook"`
	WebhookAllowPrivate    bool          `env:"APUNTES_WEBHOOK_ALLOW_PRIVATE" help:"Accept request webhooks that resolve to private or loopback addresses" group:"webhook"`
}

func (r *RunCMD) Run(ctx *cliContext.Context) error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	opts := append(r.appOptions(),
		config.WithContext(appCtx),
		config.WithDebug(ctx.Debug || (ctx.LogLevel != nil && *ctx.LogLevel == "debug")),
		config.WithAddress(r.Address),
		config.WithCors(r.CORS),
		config.WithUploadLimitMB(r.UploadLimit),
		config.WithApiKeys(r.APIKeys),
		config.WithJobRetention(r.JobRetention),
		config.WithJobPruneSchedule(r.JobPruneSchedule),
		config.WithWebhookURL(r.WebhookURL),
		config.WithWebhookAllowPrivate(r.WebhookAllowPrivate),
	)
	if r.DisableMetricsEndpoint {
		opts = append(opts, config.DisableMetricsEndpoint)
	}

	app, err := application.New(opts...)
	if err != nil {
		return err
	}

	appHTTP, err := apuntesHTTP.API(app)
	if err != nil {
		xlog.Error("error during HTTP App construction", "error", err)
		return err
	}

	xlog.Info("apuntes is started and running", "address", r.Address)

	signals.RegisterGracefulTerminationHandler(func() {
		cancelApp()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := appHTTP.Shutdown(shutdownCtx); err != nil {
			xlog.Error("error while shutting down the HTTP server", "error", err)
		}
		if err := app.Shutdown(shutdownCtx); err != nil {
			xlog.Error("error while shutting down", "error", err)
		}
	})

	if err := appHTTP.Start(r.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
