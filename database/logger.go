package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/captiongen/logger"
)

var logLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
}

// parseLogLevel maps database.log_level onto GORM levels; unknown values
// mean warn.
func parseLogLevel(level string) gormlogger.LogLevel {
	if l, ok := logLevels[strings.ToLower(level)]; ok {
		return l
	}
	return gormlogger.Warn
}

// sqlLogger routes GORM output through the service logger. Statements run
// inside a caption job carry its job id, and request-scoped ones the
// request id, via the context GORM passes in.
type sqlLogger struct {
	log   *logger.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newSQLLogger(log *logger.Logger, slow time.Duration, level gormlogger.LogLevel) gormlogger.Interface {
	return &sqlLogger{log: log.WithComponent("jobs-db"), level: level, slow: slow}
}

func (l *sqlLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *sqlLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.WithContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *sqlLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *sqlLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.WithContext(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs failed statements at error, slow ones at warn and, with log
// level info, every statement at debug. Missing rows are not failures: the
// job store turns them into ErrNotFound.
func (l *sqlLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slow > 0 && elapsed > l.slow
	if !failed && !slow && l.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := map[string]interface{}{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	}
	log := l.log.WithContext(ctx)
	switch {
	case failed && l.level >= gormlogger.Error:
		fields["error"] = err.Error()
		log.Error("Statement failed", fields)
	case slow && l.level >= gormlogger.Warn:
		fields["threshold_ms"] = l.slow.Milliseconds()
		log.Warn("Slow statement", fields)
	case l.level >= gormlogger.Info:
		log.Debug("Statement", fields)
	}
}
