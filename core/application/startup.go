package application

import (
	"fmt"
	"net/http"
	"os"

	"github.com/apuntes-app/apuntes/core/config"
	"github.com/apuntes-app/apuntes/core/events"
	"github.com/apuntes-app/apuntes/core/services"
	"github.com/apuntes-app/apuntes/core/transcription"
	"github.com/apuntes-app/apuntes/pkg/audio"
	"github.com/apuntes-app/apuntes/pkg/utils"
	"github.com/mudler/xlog"
	"github.com/prometheus/client_golang/prometheus"
)

func New(opts ...config.AppOption) (*Application, error) {
	options := config.NewApplicationConfig(opts...)
	application := &Application{applicationConfig: options}

	xlog.Info("Starting apuntes", "stt", options.STTBaseURL, "model", options.STTModel, "segmenter", options.Segmenter)

	if err := os.MkdirAll(options.TempDir, 0750); err != nil {
		return nil, fmt.Errorf("unable to create TempDir: %q", err)
	}

	segmenter, err := newSegmenter(options)
	if err != nil {
		return nil, err
	}

	if options.ProfilesFile != "" {
		profiles, err := config.LoadProfiles(options.ProfilesFile)
		if err != nil {
			return nil, err
		}
		options.SetProfiles(profiles)

		w, err := watchProfiles(options)
		if err != nil {
			xlog.Error("unable to watch profiles file, changes need a restart", "file", options.ProfilesFile, "error", err)
		} else {
			application.profilesWatcher = w
		}
	}
	if _, err := options.TranscriptionOptions(""); err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}

	webhookClient := &http.Client{Timeout: options.WebhookTimeout}
	if !options.WebhookAllowPrivate {
		webhookClient.CheckRedirect = utils.PublicRedirects
	}

	pipelineOpts := []transcription.PipelineOption{
		transcription.WithRetryDelay(options.RetryBaseDelay),
		transcription.WithChunkDelay(options.ChunkDelay),
		transcription.WithWebhook(transcription.NewWebhookForwarder(
			transcription.WithPlainText(options.WebhookPlainText),
			transcription.WithWebhookAuthorization(options.WebhookAuthorization),
			transcription.WithWebhookClient(webhookClient),
		)),
	}

	if !options.DisableMetrics {
		application.registry = prometheus.NewRegistry()
		metrics, err := services.NewMetricsService(application.registry)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize metrics: %w", err)
		}
		application.metricsService = metrics
		pipelineOpts = append(pipelineOpts, transcription.WithRecorder(metrics))
	}

	if options.NATSURL != "" {
		nc, err := events.Connect(options.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to nats: %w", err)
		}
		application.natsConn = nc
		xlog.Info("publishing progress to nats", "url", options.NATSURL, "subject", options.NATSSubject+".*")
	}

	transcriber := transcription.NewOpenAITranscriber(options.STTBaseURL, options.STTApiKey, nil,
		transcription.WithModel(options.STTModel),
		transcription.WithLanguage(options.STTLanguage),
		transcription.WithRequestTimeout(options.STTRequestTimeout),
	)
	application.pipeline = transcription.NewPipeline(segmenter, transcriber, pipelineOpts...)
	application.jobService = services.NewJobService(options.Context, application.pipeline, options.JobRetention, func(jobID string) transcription.Observer {
		if obs := application.Observers(jobID); len(obs) > 0 {
			return obs[0]
		}
		return nil
	})
	if err := application.jobService.StartPruning(options.JobPruneSchedule); err != nil {
		return nil, err
	}

	go func() {
		<-options.Context.Done()
		xlog.Debug("Context canceled, shutting down")
		if application.profilesWatcher != nil {
			if err := application.profilesWatcher.Stop(); err != nil {
				xlog.Error("error stopping profiles watcher", "error", err)
			}
		}
	}()

	return application, nil
}

func newSegmenter(options *config.ApplicationConfig) (audio.Segmenter, error) {
	prober := audio.DefaultProber(options.TempDir)
	switch options.Segmenter {
	case config.SegmenterPCM:
		return audio.NewPCMSegmenter(prober, audio.DefaultDecoder(options.TempDir)), nil
	case config.SegmenterFFmpeg:
		return audio.NewFFmpegSegmenter(prober, options.TempDir), nil
	default:
		return nil, fmt.Errorf("unknown segmenter %q", options.Segmenter)
	}
}
