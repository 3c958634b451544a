package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/captiongen/database"
	"github.com/kbukum/captiongen/logger"
)

// DefaultListLimit bounds ListRecent when no positive limit is given.
const DefaultListLimit = 50

// Store persists jobs.
type Store struct {
	db  *database.DB
	log *logger.Logger
	now func() time.Time
}

// NewStore creates a Store over an open database. The jobs table must
// exist; migrate Job with database.Component.WithAutoMigrate.
func NewStore(db *database.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{db: db, log: log.WithComponent("jobs"), now: func() time.Time { return time.Now().UTC() }}
}

// Create records a pending job for an uploaded file.
func (s *Store) Create(ctx context.Context, sourceFilename string, transliterate bool) (*Job, error) {
	job := &Job{
		ID:             uuid.NewString(),
		SourceFilename: sourceFilename,
		Status:         StatusPending,
		Transliterate:  transliterate,
		CreatedAt:      s.now(),
	}
	job.UpdatedAt = job.CreatedAt
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// MarkRunning moves a pending job to running.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	now := s.now()
	return s.transition(ctx, id, []Status{StatusPending}, map[string]interface{}{
		"status":     StatusRunning,
		"started_at": now,
		"updated_at": now,
	})
}

// Complete marks a running job as succeeded.
func (s *Store) Complete(ctx context.Context, id string, out Outcome) error {
	now := s.now()
	return s.transition(ctx, id, []Status{StatusRunning}, map[string]interface{}{
		"status":        StatusSucceeded,
		"provider":      out.Provider,
		"blocks":        out.Blocks,
		"audio_seconds": out.AudioDuration.Seconds(),
		"output_key":    out.OutputKey,
		"finished_at":   now,
		"updated_at":    now,
	})
}

// Fail marks a pending or running job as failed with cause's message.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	now := s.now()
	return s.transition(ctx, id, []Status{StatusPending, StatusRunning}, map[string]interface{}{
		"status":      StatusFailed,
		"error":       msg,
		"finished_at": now,
		"updated_at":  now,
	})
}

func (s *Store) transition(ctx context.Context, id string, from []Status, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update job %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s, want one of %v", ErrInvalidTransition, id, current.Status, from)
}

// Get returns one job.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// ListRecent returns up to limit jobs, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []Job
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("id").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}

// DeleteBefore removes finished jobs created before cutoff and returns them
// so their outputs can be removed as well. Unfinished jobs are kept.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) ([]Job, error) {
	var expired []Job
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		q := tx.Where("created_at < ? AND status IN ?", cutoff.UTC(), []Status{StatusSucceeded, StatusFailed})
		if err := q.Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]string, len(expired))
		for i, j := range expired {
			ids[i] = j.ID
		}
		return tx.Where("id IN ?", ids).Delete(&Job{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("delete jobs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if len(expired) > 0 {
		s.log.Info("Expired jobs deleted", map[string]interface{}{"count": len(expired)})
	}
	return expired, nil
}

// FailInterrupted fails every pending or running job. A job left in those
// states at startup belongs to a process that no longer exists.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("status IN ?", []Status{StatusPending, StatusRunning}).
		Updates(map[string]interface{}{
			"status":      StatusFailed,
			"error":       "interrupted by shutdown",
			"finished_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Warn("Interrupted jobs marked failed", map[string]interface{}{"count": res.RowsAffected})
	}
	return res.RowsAffected, nil
}
