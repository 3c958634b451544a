package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/captiongen/component"
	"github.com/kbukum/captiongen/storage"
	_ "github.com/kbukum/captiongen/storage/local"
	"github.com/kbukum/captiongen/testutil"
)

func TestComponentLocksBasePath(t *testing.T) {
	dir := t.TempDir()
	first := storage.NewComponent(storage.Config{BasePath: dir}, nil)
	testutil.Start(t, first)

	if h := first.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("health = %+v", h)
	}

	second := storage.NewComponent(storage.Config{BasePath: dir}, nil)
	err := second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "in use") {
		t.Errorf("second start err = %v", err)
	}
}

func TestComponentUnstartedUnhealthy(t *testing.T) {
	c := storage.NewComponent(storage.Config{BasePath: t.TempDir()}, nil)
	if h := c.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("health = %+v", h)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := storage.Config{BasePath: "x", MaxFileSize: "lots"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected size parse error")
	}
}
