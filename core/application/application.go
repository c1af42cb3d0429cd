package application

import (
	"context"
	"errors"

	"github.com/apuntes-app/apuntes/core/config"
	"github.com/apuntes-app/apuntes/core/events"
	"github.com/apuntes-app/apuntes/core/services"
	"github.com/apuntes-app/apuntes/core/transcription"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
)

type Application struct {
	applicationConfig *config.ApplicationConfig
	pipeline          *transcription.Pipeline
	jobService        *services.JobService
	metricsService    *services.MetricsService
	registry          *prometheus.Registry
	natsConn          *nats.Conn
	profilesWatcher   *profilesWatcher
}

func (a *Application) ApplicationConfig() *config.ApplicationConfig {
	return a.applicationConfig
}

func (a *Application) Pipeline() *transcription.Pipeline {
	return a.pipeline
}

func (a *Application) JobService() *services.JobService {
	return a.jobService
}

// MetricsService is nil when metrics are disabled.
func (a *Application) MetricsService() *services.MetricsService {
	return a.metricsService
}

// MetricsGatherer is nil when metrics are disabled.
func (a *Application) MetricsGatherer() prometheus.Gatherer {
	if a.registry == nil {
		return nil
	}
	return a.registry
}

// Observers returns the extra observers attached to a run, such as the NATS
// progress publisher.
func (a *Application) Observers(runID string) []transcription.Observer {
	if a.natsConn == nil {
		return nil
	}
	return []transcription.Observer{
		events.NewNATSObserver(a.natsConn, a.applicationConfig.NATSSubject, runID),
	}
}

func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if a.jobService != nil {
		a.jobService.Stop()
	}
	if a.profilesWatcher != nil {
		errs = append(errs, a.profilesWatcher.Stop())
	}
	if a.natsConn != nil {
		errs = append(errs, a.natsConn.Drain())
	}
	if a.metricsService != nil {
		errs = append(errs, a.metricsService.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
