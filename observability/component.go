package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/captiongen/component"
	"github.com/kbukum/captiongen/logger"
)

// Component owns the tracer and meter providers.
type Component struct {
	cfg     Config
	svc     ServiceInfo
	log     *logger.Logger
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	metrics *Metrics
}

// NewComponent creates the observability component.
func NewComponent(cfg Config, svc ServiceInfo, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Component{cfg: cfg, svc: svc, log: log.WithComponent("observability")}
}

var _ component.Component = (*Component)(nil)

// Name returns the component name.
func (c *Component) Name() string { return "observability" }

// Metrics returns the instruments. Before Start they are bound to the global
// provider, which is a no-op until a provider is installed.
func (c *Component) Metrics() *Metrics {
	if c.metrics == nil {
		m, err := NewMetrics(Meter())
		if err != nil {
			c.log.Warn("Metrics unavailable", map[string]interface{}{"error": err.Error()})
			return nil
		}
		c.metrics = m
	}
	return c.metrics
}

// Start installs exporters when enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Debug("Telemetry export disabled")
		return nil
	}
	tp, err := InitTracer(ctx, c.cfg, c.svc)
	if err != nil {
		return err
	}
	mp, err := InitMeter(ctx, c.cfg, c.svc)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	c.tp, c.mp = tp, mp
	// Rebind instruments to the installed provider.
	c.metrics = nil
	c.Metrics()

	c.log.Info("Telemetry export enabled", map[string]interface{}{
		"endpoint":    c.cfg.Endpoint,
		"sample_rate": c.cfg.SampleRate,
	})
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		if err := c.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if c.mp != nil {
		if err := c.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	c.tp, c.mp = nil, nil
	return errors.Join(errs...)
}

// Health is always healthy; export failures never fail the service.
func (c *Component) Health(_ context.Context) component.Health {
	msg := "export disabled"
	if c.tp != nil {
		msg = "exporting to " + c.cfg.Endpoint
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: msg}
}

// Describe reports the exporter in the startup summary.
func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp/http %s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Name: "Telemetry", Type: "otel", Details: details}
}
