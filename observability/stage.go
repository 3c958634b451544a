package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stage is one traced and timed step of a pipeline run.
type Stage struct {
	name    string
	start   time.Time
	span    trace.Span
	metrics *Metrics
}

// StartStage opens a span named "stage.<name>". metrics may be nil.
func StartStage(ctx context.Context, metrics *Metrics, name string, attrs ...attribute.KeyValue) (context.Context, *Stage) {
	ctx, span := StartSpan(ctx, "stage."+name, trace.WithAttributes(
		append([]attribute.KeyValue{attribute.String(AttrStage, name)}, attrs...)...,
	))
	return ctx, &Stage{name: name, start: time.Now(), span: span, metrics: metrics}
}

// Span returns the stage span.
func (s *Stage) Span() trace.Span { return s.span }

// End closes the span and records the duration with an ok or error status.
func (s *Stage) End(ctx context.Context, err error) time.Duration {
	d := time.Since(s.start)
	status := "ok"
	if err != nil {
		status = "error"
		SetSpanError(s.span, err)
	}
	s.span.End()
	if s.metrics != nil {
		s.metrics.RecordStage(ctx, s.name, status, d)
	}
	return d
}
