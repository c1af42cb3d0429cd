package services

import (
	"context"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/transcription"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricApi "go.opentelemetry.io/otel/sdk/metric"
)

var _ transcription.Recorder = (*MetricsService)(nil)

// MetricsService records pipeline and API measurements through OpenTelemetry
// and exports them to Prometheus.
type MetricsService struct {
	provider *metricApi.MeterProvider
	Meter    metric.Meter

	apiTime   metric.Float64Histogram
	chunks    metric.Int64Counter
	chunkTime metric.Float64Histogram
	retries   metric.Int64Counter
	webhooks  metric.Int64Counter
	runs      metric.Int64Counter
	runTime   metric.Float64Histogram
}

// NewMetricsService bootstraps the OpenTelemetry pipeline for Prometheus
// export into reg. Call Shutdown when done.
func NewMetricsService(reg prom.Registerer) (*MetricsService, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	provider := metricApi.NewMeterProvider(metricApi.WithReader(exporter))
	meter := provider.Meter("github.com/apuntes-app/apuntes")

	m := &MetricsService{provider: provider, Meter: meter}
	if m.apiTime, err = meter.Float64Histogram("apuntes_api_call", metric.WithDescription("api calls"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.chunks, err = meter.Int64Counter("apuntes_chunks", metric.WithDescription("chunks transcribed, by final state")); err != nil {
		return nil, err
	}
	if m.chunkTime, err = meter.Float64Histogram("apuntes_chunk_duration", metric.WithDescription("time spent on a chunk including retries"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("apuntes_chunk_retries", metric.WithDescription("chunk retry attempts")); err != nil {
		return nil, err
	}
	if m.webhooks, err = meter.Int64Counter("apuntes_webhook_deliveries", metric.WithDescription("webhook deliveries, by result")); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("apuntes_runs", metric.WithDescription("pipeline runs, by status")); err != nil {
		return nil, err
	}
	if m.runTime, err = meter.Float64Histogram("apuntes_run_duration", metric.WithDescription("pipeline run latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MetricsService) ObserveAPICall(method string, path string, duration float64) {
	opts := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	)
	m.apiTime.Record(context.Background(), duration, opts)
}

func (m *MetricsService) ChunkFinished(outcome schema.ChunkOutcome, elapsed time.Duration) {
	state := metric.WithAttributes(attribute.String("state", outcome.State.String()))
	m.chunks.Add(context.Background(), 1, state)
	m.chunkTime.Record(context.Background(), elapsed.Seconds(), state)
}

func (m *MetricsService) ChunkRetried() {
	m.retries.Add(context.Background(), 1)
}

func (m *MetricsService) WebhookFinished(err error) {
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	m.webhooks.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *MetricsService) RunFinished(status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(context.Background(), 1, attrs)
	m.runTime.Record(context.Background(), elapsed.Seconds(), attrs)
}

func (m *MetricsService) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
