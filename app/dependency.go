package app

import (
	"context"
	"time"

	"github.com/kbukum/captiongen/component"
)

const probeTimeout = 3 * time.Second

// Dependency reports the health of an external collaborator the service
// does not own, such as the ffmpeg binary or a recognizer server. Start and
// Stop do nothing.
type Dependency struct {
	name    string
	details string
	probe   func(ctx context.Context) error
	// onFailure is the status reported when probe fails.
	onFailure component.HealthStatus
}

var (
	_ component.Component   = (*Dependency)(nil)
	_ component.Describable = (*Dependency)(nil)
)

// NewDependency creates a required dependency: a failed probe is unhealthy.
func NewDependency(name, details string, probe func(ctx context.Context) error) *Dependency {
	return &Dependency{name: name, details: details, probe: probe, onFailure: component.StatusUnhealthy}
}

// Optional makes a failed probe report degraded instead of unhealthy.
func (d *Dependency) Optional() *Dependency {
	d.onFailure = component.StatusDegraded
	return d
}

func (d *Dependency) Name() string                  { return d.name }
func (d *Dependency) Start(_ context.Context) error { return nil }
func (d *Dependency) Stop(_ context.Context) error  { return nil }

// Health runs the probe with a short deadline.
func (d *Dependency) Health(ctx context.Context) component.Health {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := d.probe(ctx); err != nil {
		return component.Health{Name: d.name, Status: d.onFailure, Message: err.Error()}
	}
	return component.Health{Name: d.name, Status: component.StatusHealthy}
}

// Describe reports the dependency in the startup summary.
func (d *Dependency) Describe() component.Description {
	return component.Description{Type: "dependency", Details: d.details}
}
