package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/kbukum/captiongen/component"
	"github.com/kbukum/captiongen/logger"
)

// LockFile is created in the base path while a process owns it.
const LockFile = ".captiongen.lock"

// Component owns the storage root for the lifetime of the service. Start
// takes an exclusive lock on the base path so two processes never share it.
type Component struct {
	cfg     Config
	log     *logger.Logger
	lock    *flock.Flock
	storage Storage
}

// NewComponent creates the storage component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Component{cfg: cfg, log: log.WithComponent("storage")}
}

var _ component.Component = (*Component)(nil)

// Name returns the component name.
func (c *Component) Name() string { return "storage" }

// Storage returns the backend, or nil before Start.
func (c *Component) Storage() Storage { return c.storage }

// Start creates the base path, locks it and opens the backend.
func (c *Component) Start(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.BasePath, 0o750); err != nil {
		return fmt.Errorf("storage: create base path: %w", err)
	}

	lock := flock.New(filepath.Join(c.cfg.BasePath, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("storage: lock %s: %w", c.cfg.BasePath, err)
	}
	if !locked {
		return fmt.Errorf("storage: %s is in use by another process", c.cfg.BasePath)
	}

	s, err := New(c.cfg, c.log)
	if err != nil {
		_ = lock.Unlock()
		return err
	}
	c.lock, c.storage = lock, s
	c.log.Info("Storage ready", map[string]interface{}{"provider": c.cfg.Provider, "base_path": c.cfg.BasePath})
	return nil
}

// Stop releases the lock.
func (c *Component) Stop(_ context.Context) error {
	c.storage = nil
	if c.lock == nil {
		return nil
	}
	err := c.lock.Unlock()
	c.lock = nil
	return err
}

// Health writes and removes a probe object.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.storage == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
		return h
	}
	const probe = ".health"
	if _, err := c.storage.Upload(ctx, probe, strings.NewReader("ok")); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, err.Error()
		return h
	}
	_ = c.storage.Delete(ctx, probe)
	return h
}

// Describe reports the backend in the startup summary.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Storage",
		Type:    c.cfg.Provider,
		Details: c.details(),
	}
}

func (c *Component) details() string {
	if c.cfg.Provider == ProviderS3 {
		return fmt.Sprintf("bucket=%s region=%s scratch=%s max=%s", c.cfg.S3.Bucket, c.cfg.S3.Region, c.cfg.BasePath, c.cfg.MaxFileSize)
	}
	return fmt.Sprintf("path=%s max=%s", c.cfg.BasePath, c.cfg.MaxFileSize)
}
