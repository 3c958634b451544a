package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter installs a global meter provider exporting over OTLP/HTTP.
// Shut the returned provider down on exit.
func InitMeter(ctx context.Context, cfg Config, svc ServiceInfo) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(svc)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns the service meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the service's instruments.
type Metrics struct {
	stageDuration   metric.Float64Histogram
	jobTotal        metric.Int64Counter
	jobActive       metric.Int64UpDownCounter
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	stageDuration, err := meter.Float64Histogram("captiongen.stage.duration",
		metric.WithDescription("Duration of pipeline stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.duration histogram: %w", err)
	}

	jobTotal, err := meter.Int64Counter("captiongen.job.total",
		metric.WithDescription("Caption jobs by final status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job.total counter: %w", err)
	}

	jobActive, err := meter.Int64UpDownCounter("captiongen.job.active",
		metric.WithDescription("Caption jobs in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job.active counter: %w", err)
	}

	requestTotal, err := meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP requests by route and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.duration histogram: %w", err)
	}

	return &Metrics{
		stageDuration:   stageDuration,
		jobTotal:        jobTotal,
		jobActive:       jobActive,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
	}, nil
}

// RecordStage records one pipeline stage execution.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, d time.Duration) {
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// JobStarted increments the in-flight job count.
func (m *Metrics) JobStarted(ctx context.Context) {
	m.jobActive.Add(ctx, 1)
}

// JobFinished decrements the in-flight count and counts the outcome.
func (m *Metrics) JobFinished(ctx context.Context, status string) {
	m.jobActive.Add(ctx, -1)
	m.jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, d.Seconds(), attrs)
}
