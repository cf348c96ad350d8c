package entities

import "time"

type AuditEventType string

const (
	AuditEventConversion AuditEventType = "conversion"
	AuditEventCleanup    AuditEventType = "cleanup"
	AuditEventRetention  AuditEventType = "retention"
	AuditEventJob        AuditEventType = "job"
)

type AuditStatus string

const (
	AuditStatusSuccess     AuditStatus = "success"
	AuditStatusSkipped     AuditStatus = "skipped"
	AuditStatusUnsupported AuditStatus = "unsupported"
	AuditStatusFailed      AuditStatus = "failed"
	AuditStatusWarning     AuditStatus = "warning"
)

type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	BatchID     string         `gorm:"index;size:36" json:"batch_id,omitempty"`
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"`      // e.g., "convert_item", "delete_transient"
	Description string         `gorm:"size:500" json:"description"` // Human-readable summary
	SourceID    string         `gorm:"index;size:200" json:"source_id,omitempty"`
	SourceType  string         `gorm:"size:255" json:"source_type,omitempty"`
	TargetType  string         `gorm:"size:255" json:"target_type,omitempty"`
	Hops        int            `json:"hops"`
	Metadata    string         `gorm:"type:text" json:"metadata,omitempty"` // JSON for extra data
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
