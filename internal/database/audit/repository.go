package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/mimeroute/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// Filter narrows GetEvents. Zero fields match everything.
type Filter struct {
	BatchID   string
	EventType entities.AuditEventType
	Status    entities.AuditStatus
}

// GetEvents retrieves paginated audit events, ordered by most recent first.
func (r *Repository) GetEvents(f Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.db.Model(&entities.AuditEvent{})
	if f.BatchID != "" {
		query = query.Where("batch_id = ?", f.BatchID)
	}
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// CountByStatus returns how many events of eventType were recorded per status since the given time.
func (r *Repository) CountByStatus(eventType entities.AuditEventType, since time.Time) (map[entities.AuditStatus]int64, error) {
	var rows []struct {
		Status entities.AuditStatus
		Count  int64
	}
	err := r.db.Model(&entities.AuditEvent{}).
		Select("status, COUNT(*) AS count").
		Where("event_type = ? AND created_at >= ?", eventType, since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[entities.AuditStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DeleteOldEvents removes audit events older than the specified time.
// Returns the number of deleted events.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", olderThan).Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}

// GetEventByID retrieves a single audit event by ID.
func (r *Repository) GetEventByID(id uint) (*entities.AuditEvent, error) {
	var event entities.AuditEvent
	err := r.db.First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}
