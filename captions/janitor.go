package captions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/captiongen/component"
	"github.com/kbukum/captiongen/jobs"
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/storage"
)

// SweepReport summarizes one sweep.
type SweepReport struct {
	Jobs      int       `json:"jobs"`
	Outputs   int       `json:"outputs"`
	TempFiles int       `json:"temp_files"`
	At        time.Time `json:"at"`
}

// Janitor removes leftovers of interrupted runs at startup and expires old
// jobs and subtitles on an interval.
type Janitor struct {
	cfg   Config
	store storage.Storage
	jobs  *jobs.Store
	log   *logger.Logger
	now   func() time.Time

	mu     sync.Mutex
	last   SweepReport
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a Janitor. jobs may be nil.
func NewJanitor(cfg Config, store storage.Storage, js *jobs.Store, log *logger.Logger) *Janitor {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Janitor{cfg: cfg, store: store, jobs: js, log: log.WithComponent("janitor"), now: time.Now}
}

var _ component.Component = (*Janitor)(nil)

// Name returns the component name.
func (j *Janitor) Name() string { return "janitor" }

// Start fails jobs left unfinished by a previous process, clears the temp
// area and starts the periodic sweep.
func (j *Janitor) Start(ctx context.Context) error {
	if j.jobs != nil {
		if _, err := j.jobs.FailInterrupted(ctx); err != nil {
			return err
		}
	}
	n, err := j.deletePrefix(ctx, j.cfg.TempPrefix+"/", time.Time{})
	if err != nil {
		return fmt.Errorf("janitor: clear temp files: %w", err)
	}
	if n > 0 {
		j.log.Info("Removed leftover temp files", map[string]interface{}{"count": n})
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j.cancel, j.done = cancel, make(chan struct{})
	go j.loop(loopCtx)
	return nil
}

// Stop ends the sweep loop.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cancel == nil {
		return nil
	}
	j.cancel()
	select {
	case <-j.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	j.cancel = nil
	return nil
}

// Health reports the last sweep.
func (j *Janitor) Health(_ context.Context) component.Health {
	j.mu.Lock()
	last := j.last
	j.mu.Unlock()
	msg := "no sweep yet"
	if !last.At.IsZero() {
		msg = fmt.Sprintf("last sweep %s: %d jobs, %d outputs, %d temp files",
			last.At.Format(time.RFC3339), last.Jobs, last.Outputs, last.TempFiles)
	}
	return component.Health{Name: j.Name(), Status: component.StatusHealthy, Message: msg}
}

// Describe reports retention in the startup summary.
func (j *Janitor) Describe() component.Description {
	retention := "forever"
	if j.cfg.Retention > 0 {
		retention = j.cfg.Retention.String()
	}
	return component.Description{
		Name:    "Janitor",
		Type:    "worker",
		Details: fmt.Sprintf("retention=%s every=%s", retention, j.cfg.SweepInterval),
	}
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)
	ticker := time.NewTicker(j.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
				j.log.Warn("Sweep failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// Sweep expires jobs and subtitles older than the retention and removes
// temp files older than twice the run timeout.
func (j *Janitor) Sweep(ctx context.Context) (SweepReport, error) {
	now := j.now()
	report := SweepReport{At: now}

	stale := now.Add(-2 * j.cfg.Timeout)
	n, err := j.deletePrefix(ctx, j.cfg.TempPrefix+"/", stale)
	report.TempFiles = n
	if err != nil {
		return report, err
	}

	if j.cfg.Retention > 0 {
		cutoff := now.Add(-j.cfg.Retention)
		if j.jobs != nil {
			expired, err := j.jobs.DeleteBefore(ctx, cutoff)
			if err != nil {
				return report, err
			}
			report.Jobs = len(expired)
			for _, job := range expired {
				if job.OutputKey == "" {
					continue
				}
				if err := j.store.Delete(ctx, job.OutputKey); err != nil {
					return report, err
				}
				report.Outputs++
			}
		}
		// Subtitles written without a ledger entry, e.g. by the CLI.
		n, err := j.deletePrefix(ctx, j.cfg.OutputPrefix+"/", cutoff)
		report.Outputs += n
		if err != nil {
			return report, err
		}
	}

	j.mu.Lock()
	j.last = report
	j.mu.Unlock()
	if report.Jobs+report.Outputs+report.TempFiles > 0 {
		j.log.Info("Sweep finished", map[string]interface{}{
			"jobs":       report.Jobs,
			"outputs":    report.Outputs,
			"temp_files": report.TempFiles,
		})
	}
	return report, nil
}

// deletePrefix removes objects under prefix last modified before cutoff.
// A zero cutoff removes everything under prefix.
func (j *Janitor) deletePrefix(ctx context.Context, prefix string, cutoff time.Time) (int, error) {
	files, err := j.store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		if !strings.HasPrefix(f.Key, prefix) {
			continue
		}
		if !cutoff.IsZero() && !f.LastModified.Before(cutoff) {
			continue
		}
		if err := j.store.Delete(ctx, f.Key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
