// Package jobs records every caption generation run in a SQLite ledger so
// results can be listed, fetched again and expired.
package jobs

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

var (
	// ErrNotFound is returned for an unknown job id.
	ErrNotFound = errors.New("jobs: not found")
	// ErrInvalidTransition is returned when a job is not in a state that
	// allows the requested change.
	ErrInvalidTransition = errors.New("jobs: invalid status transition")
)

// Job is one caption generation run.
type Job struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	SourceFilename string     `gorm:"not null" json:"source_filename"`
	Status         Status     `gorm:"size:16;not null;index" json:"status"`
	Transliterate  bool       `json:"transliterate"`
	Provider       string     `json:"provider,omitempty"`
	Blocks         int        `json:"blocks"`
	AudioSeconds   float64    `json:"audio_seconds"`
	OutputKey      string     `json:"output_key,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// TableName pins the table name.
func (Job) TableName() string { return "jobs" }

// Elapsed is the run time, or zero while the job has not finished.
func (j *Job) Elapsed() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// Outcome describes a successful run.
type Outcome struct {
	Provider      string
	Blocks        int
	AudioDuration time.Duration
	OutputKey     string
}
