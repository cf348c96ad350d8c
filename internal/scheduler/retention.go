// Package scheduler runs periodic maintenance on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/tasks"
)

// DefaultSchedule runs retention cleanup daily at 03:00.
const DefaultSchedule = "0 3 * * *"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer adds tasks to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// RetentionScheduler periodically enqueues retention cleanup tasks.
type RetentionScheduler struct {
	queue         Enqueuer
	schedule      string
	retentionDays int
	logger        *zap.Logger

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
}

// NewRetentionScheduler creates a scheduler. An empty schedule uses DefaultSchedule.
func NewRetentionScheduler(queue Enqueuer, schedule string, retentionDays int, logger *zap.Logger) *RetentionScheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionScheduler{
		queue:         queue,
		schedule:      schedule,
		retentionDays: retentionDays,
		logger:        logger.Named("retention"),
		cron:          cron.New(cron.WithParser(parser)),
	}
}

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Start registers the cleanup job and starts the cron runner.
// The scheduler stops when ctx is cancelled.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.enqueue(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention cleanup: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	s.logger.Info("retention scheduler started",
		zap.String("schedule", s.schedule),
		zap.Int("retention_days", s.retentionDays),
		zap.Time("next_run", s.cron.Entry(entryID).Next),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job and stops the scheduler.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.isRunning = false

	s.logger.Info("retention scheduler stopped")
}

// RunNow enqueues a cleanup task immediately.
func (s *RetentionScheduler) RunNow(ctx context.Context) (string, error) {
	return s.queue.Enqueue(ctx, tasks.CleanupRetentionTask{RetentionDays: s.retentionDays})
}

// IsRunning returns whether the scheduler is active.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next cleanup will be enqueued.
func (s *RetentionScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

func (s *RetentionScheduler) enqueue(ctx context.Context) {
	id, err := s.RunNow(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Error("failed to enqueue retention cleanup", zap.Error(err))
		return
	}
	s.logger.Info("retention cleanup enqueued", zap.String("task_id", id))
}
