package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/captiongen/component"
	apperrors "github.com/kbukum/captiongen/errors"
	"github.com/kbukum/captiongen/logger"
)

type note struct {
	ID   uint   `gorm:"primaryKey"`
	Body string `gorm:"uniqueIndex"`
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Path != "./data/captiongen.db" || cfg.MaxOpenConns != 4 {
		t.Errorf("unexpected defaults %+v", cfg)
	}

	bad := cfg
	bad.MaxIdleConns = 10
	if err := bad.Validate(); err == nil {
		t.Error("expected idle > open to fail")
	}
	bad = cfg
	bad.BusyTimeout = "soon"
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "busy_timeout") {
		t.Errorf("expected busy_timeout error, got %v", err)
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Path: "/tmp/jobs.db"}
	cfg.ApplyDefaults()
	dsn := cfg.DSN()
	for _, want := range []string{"file:/tmp/jobs.db?", "_busy_timeout=5000", "_journal_mode=WAL", "_foreign_keys=on"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
	mem := Config{Path: ":memory:"}
	mem.ApplyDefaults()
	if dsn := mem.DSN(); !strings.HasPrefix(dsn, "file::memory:?") || strings.Contains(dsn, "WAL") {
		t.Errorf("memory dsn = %q", dsn)
	}
}

func TestComponentLifecycle(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "test.db"), AutoMigrate: true}
	c := NewComponent(cfg, nil).WithAutoMigrate(&note{})
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop(ctx) })

	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %+v", h)
	}
	if err := c.DB().WithContext(ctx).Create(&note{Body: "a"}).Error; err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}
	if d := c.Describe(); d.Type != "sqlite" || !strings.Contains(d.Details, "auto-migrate=on") {
		t.Errorf("describe = %+v", d)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.DB().Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
}

func TestWithTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.AutoMigrate(&note{}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&note{Body: "x"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var count int64
	db.WithContext(ctx).Model(&note{}).Count(&count)
	if count != 0 {
		t.Errorf("rolled back row persisted, count = %d", count)
	}

	if err := db.WithContext(ctx).Create(&note{Body: "dup"}).Error; err != nil {
		t.Fatal(err)
	}
	dupErr := db.WithContext(ctx).Create(&note{Body: "dup"}).Error
	if !IsDuplicateError(dupErr) {
		t.Errorf("expected translated duplicate error, got %v", dupErr)
	}
}

func TestFromDatabase(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
	}{
		{"not found", fmt.Errorf("get: %w", gorm.ErrRecordNotFound), apperrors.ErrCodeNotFound},
		{"duplicate", gorm.ErrDuplicatedKey, apperrors.ErrCodeConflict},
		{"busy", errors.New("database is locked"), apperrors.ErrCodeDatabaseError},
		{"other", errors.New("disk I/O error"), apperrors.ErrCodeDatabaseError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromDatabase(tc.err, "job"); got.Code != tc.code {
				t.Errorf("code = %s, want %s", got.Code, tc.code)
			}
		})
	}
	if FromDatabase(nil, "job") != nil {
		t.Error("nil error should map to nil")
	}
}

func TestSQLLoggerLevels(t *testing.T) {
	for in, want := range map[string]gormlogger.LogLevel{
		"silent": gormlogger.Silent,
		"ERROR":  gormlogger.Error,
		"info":   gormlogger.Info,
		"loud":   gormlogger.Warn,
	} {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: logger.FormatJSON}, "captiongen", &buf)
	sl := newSQLLogger(log, time.Second, gormlogger.Warn)
	ctx := logger.ContextWithRequestID(context.Background(), "req-7")
	stmt := func() (string, int64) { return "SELECT * FROM jobs", 0 }

	sl.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	sl.Trace(ctx, time.Now(), stmt, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found statements logged at warn: %s", buf.String())
	}

	sl.Trace(ctx, time.Now(), stmt, errors.New("disk I/O error"))
	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-7"`) || !strings.Contains(out, "disk I/O error") {
		t.Errorf("failed statement log = %s", out)
	}
}
