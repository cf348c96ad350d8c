package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// DefaultRetentionDays applies when a task carries no retention.
const DefaultRetentionDays = 30

// AuditEventCleaner provides the ability to delete old audit events.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// FinishedJobCleaner deletes finished jobs and their outputs.
type FinishedJobCleaner interface {
	DeleteFinishedBefore(cutoff time.Time) (int64, error)
}

// RetentionRecorder is notified after every cleanup run.
type RetentionRecorder interface {
	LogRetention(events, jobs int64, err error)
}

// RetentionCounter counts rows removed by cleanup.
type RetentionCounter interface {
	RetentionRan(events, jobs int64)
}

// CleanupRetentionTask removes audit events and finished jobs older than the retention period.
type CleanupRetentionTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for retention cleanup tasks.
func (t CleanupRetentionTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_retention",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupRetentionDeps are the collaborators of the cleanup_retention processor.
// Jobs, Recorder and Counter are optional.
type CleanupRetentionDeps struct {
	Events   AuditEventCleaner
	Jobs     FinishedJobCleaner
	Recorder RetentionRecorder
	Counter  RetentionCounter
	Logger   *zap.Logger
	Now      func() time.Time
}

// CleanupRetentionProcessor creates a processor function for CleanupRetentionTask.
func CleanupRetentionProcessor(deps CleanupRetentionDeps) backlite.QueueProcessor[CleanupRetentionTask] {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return func(ctx context.Context, task CleanupRetentionTask) error {
		if deps.Events == nil {
			return fmt.Errorf("audit event cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = DefaultRetentionDays
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		events, err := deps.Events.DeleteOldEvents(retention)
		if err != nil {
			err = fmt.Errorf("cleanup audit events: %w", err)
			record(deps, 0, 0, err)
			return err
		}

		var jobs int64
		if deps.Jobs != nil {
			jobs, err = deps.Jobs.DeleteFinishedBefore(now().Add(-retention))
			if err != nil {
				err = fmt.Errorf("cleanup finished jobs: %w", err)
				record(deps, events, 0, err)
				return err
			}
		}

		logger.Info("retention cleanup finished",
			zap.Int64("events_deleted", events),
			zap.Int64("jobs_deleted", jobs),
			zap.Int("retention_days", retentionDays),
		)
		record(deps, events, jobs, nil)
		return nil
	}
}

func record(deps CleanupRetentionDeps, events, jobs int64, err error) {
	if deps.Recorder != nil {
		deps.Recorder.LogRetention(events, jobs, err)
	}
	if deps.Counter != nil && err == nil {
		deps.Counter.RetentionRan(events, jobs)
	}
}

// NewCleanupRetentionQueue creates a backlite queue for retention cleanup tasks.
func NewCleanupRetentionQueue(deps CleanupRetentionDeps) backlite.Queue {
	return backlite.NewQueue(CleanupRetentionProcessor(deps))
}
