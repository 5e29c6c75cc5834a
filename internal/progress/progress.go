// Package progress keeps job records and fans job progress events out to live subscribers.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/claimcheck/models"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrTerminal is returned when publishing to a job that already completed or failed.
	ErrTerminal = errors.New("job already in a terminal status")
	// ErrInvalidTransition is returned for backward or unknown status transitions.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSubscriberLagged is returned by Stream when the subscriber was dropped for falling behind.
	ErrSubscriberLagged = errors.New("subscriber dropped: buffer full")
)

// Broadcaster creates jobs, applies their updates and fans events out to subscribers.
type Broadcaster interface {
	CreateJob(ctx context.Context, target string, req models.JobRequest) (models.Job, error)
	Job(ctx context.Context, jobID string) (models.Job, error)
	Publish(ctx context.Context, jobID string, u Update) (models.ProgressEvent, error)
	Subscribe(ctx context.Context, jobID string) (*Subscription, error)
}

// JobStore persists job records. Only one writer mutates a given job at a time.
type JobStore interface {
	Create(ctx context.Context, job models.Job) error
	Get(ctx context.Context, jobID string) (models.Job, bool, error)
	Save(ctx context.Context, job models.Job) error
}

// Transport carries events between broadcaster instances. Run delivers only events
// that originated on other instances.
type Transport interface {
	Publish(ctx context.Context, ev models.ProgressEvent) error
	Run(ctx context.Context, deliver func(models.ProgressEvent)) error
}

// Update is one state change applied to a job. Zero Status keeps the current status;
// nil counters keep the current counts.
type Update struct {
	Status              models.Status
	Step                string
	Progress            int
	Message             string
	Data                map[string]any
	Error               string
	MediaID             string
	StatementsTotal     *int
	StatementsCompleted *int
}

// Count returns a pointer to n for Update counters.
func Count(n int) *int { return &n }

// apply validates u against job and returns the mutated copy.
func apply(job models.Job, u Update, now time.Time) (models.Job, error) {
	if job.Status.Terminal() {
		return job, ErrTerminal
	}
	next := u.Status
	if next == "" {
		next = job.Status
	}
	if !next.Valid() || next.Rank() < job.Status.Rank() {
		return job, ErrInvalidTransition
	}
	job.Status = next
	if u.Step != "" {
		job.Step = u.Step
	}
	p := u.Progress
	if p > 100 {
		p = 100
	}
	if p > job.Progress {
		job.Progress = p
	}
	if u.MediaID != "" {
		job.MediaID = u.MediaID
	}
	if u.StatementsTotal != nil {
		job.StatementsTotal = *u.StatementsTotal
	}
	if u.StatementsCompleted != nil {
		job.StatementsCompleted = *u.StatementsCompleted
	}
	switch next {
	case models.StatusCompleted:
		job.Progress = 100
		job.CompletedAt = &now
	case models.StatusFailed:
		job.Error = u.Error
		job.CompletedAt = &now
	}
	job.UpdatedAt = now
	return job, nil
}

// eventFor builds the event describing u as applied to job.
func eventFor(job models.Job, u Update, now time.Time) models.ProgressEvent {
	return models.ProgressEvent{
		Type:      models.EventProgress,
		JobID:     job.ID,
		MediaID:   job.MediaID,
		Status:    job.Status,
		Step:      job.Step,
		Progress:  job.Progress,
		Message:   u.Message,
		Data:      u.Data,
		Timestamp: now,
		Error:     u.Error,
	}
}

// Snapshot renders the job's current state as a status event.
func Snapshot(job models.Job, now time.Time) models.ProgressEvent {
	return models.ProgressEvent{
		Type:      models.EventStatus,
		JobID:     job.ID,
		MediaID:   job.MediaID,
		Status:    job.Status,
		Step:      job.Step,
		Progress:  job.Progress,
		Message:   "Current status: " + string(job.Status),
		Timestamp: now,
		Error:     job.Error,
	}
}
