package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/database/audit"
	"github.com/mrlokans/mimeroute/internal/entities"
	"github.com/mrlokans/mimeroute/internal/utils"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo   *audit.Repository
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(event); err != nil {
			s.logger.Error("failed to log audit event", zap.String("action", event.Action), zap.Error(err))
		}
	}()
}

// Flush waits for pending asynchronous writes.
func (s *Service) Flush() {
	s.wg.Wait()
}

// OnEvent records terminal item outcomes and cleanup warnings of a batch.
// Start events are not persisted.
func (s *Service) OnEvent(_ context.Context, e batch.Event) {
	event := &entities.AuditEvent{
		BatchID:    e.BatchID,
		EventType:  entities.AuditEventConversion,
		Action:     "convert_item",
		SourceID:   e.SourceID,
		SourceType: e.SourceType,
		TargetType: e.TargetType,
		Hops:       e.Hops,
		CreatedAt:  e.At,
	}

	switch e.Type {
	case batch.EventSucceeded:
		event.Status = entities.AuditStatusSuccess
		event.Description = "Converted " + e.SourceType + " to " + e.TargetType
	case batch.EventSkipped:
		event.Status = entities.AuditStatusSkipped
		event.Description = "Item already had type " + e.TargetType
	case batch.EventUnsupported:
		event.Status = entities.AuditStatusUnsupported
		event.Description = "No route from " + e.SourceType + " to " + e.TargetType
	case batch.EventFailed:
		event.Status = entities.AuditStatusFailed
		event.Description = "Conversion to " + e.TargetType + " failed"
	case batch.EventCleanupWarning:
		event.EventType = entities.AuditEventCleanup
		event.Action = "delete_transient"
		event.Status = entities.AuditStatusWarning
		event.Description = "Transient file " + e.FileID + " was left behind"
		event.Metadata = marshalMetadata(map[string]any{"file_id": e.FileID})
	default:
		return
	}

	if e.Duration > 0 && event.Metadata == "" {
		event.Metadata = marshalMetadata(map[string]any{"duration_ms": e.Duration.Milliseconds(), "index": e.Index})
	}
	if e.Err != nil {
		event.ErrorMsg = utils.Truncate(e.Err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogJob records the outcome of a queued conversion job.
func (s *Service) LogJob(jobID, targetType string, items int, err error) {
	event := &entities.AuditEvent{
		BatchID:     jobID,
		EventType:   entities.AuditEventJob,
		Action:      "convert_job",
		Description: "Processed queued job",
		TargetType:  targetType,
		Metadata:    marshalMetadata(map[string]any{"items": items}),
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = utils.Truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogRetention records a retention cleanup run.
func (s *Service) LogRetention(events, jobs int64, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventRetention,
		Action:      "cleanup_retention",
		Description: "Removed expired audit events and jobs",
		Metadata:    marshalMetadata(map[string]any{"events_deleted": events, "jobs_deleted": jobs}),
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = utils.Truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(f audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(f, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func marshalMetadata(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}


var _ batch.Observer = (*Service)(nil)
