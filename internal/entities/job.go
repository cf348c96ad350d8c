package entities

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ConversionJob is a batch conversion queued for background execution.
type ConversionJob struct {
	ID         string      `gorm:"primaryKey;size:36" json:"id"`
	Status     JobStatus   `gorm:"index;size:20" json:"status"`
	TargetType string      `gorm:"size:255" json:"target_type"`
	FolderID   string      `gorm:"size:200" json:"folder_id,omitempty"`
	Strict     bool        `json:"strict"`
	Items      string      `gorm:"type:text" json:"-"` // JSON encoded job items
	ItemCount  int         `json:"item_count"`
	ErrorMsg   string      `gorm:"size:500" json:"error_msg,omitempty"`
	Outputs    []JobOutput `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"outputs,omitempty"`
	CreatedAt  time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

func (ConversionJob) TableName() string {
	return "conversion_jobs"
}

// IsFinished reports whether the job reached a terminal status.
func (j *ConversionJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

type OutputKind string

const (
	OutputKindFile OutputKind = "file"
	OutputKindBlob OutputKind = "blob"
	OutputKindNone OutputKind = "none"
)

// JobOutput is the result for one item of a ConversionJob.
type JobOutput struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	JobID       string     `gorm:"index;size:36" json:"job_id"`
	ItemIndex   int        `gorm:"index" json:"index"`
	Kind        OutputKind `gorm:"size:10" json:"kind"`
	FileID      string     `gorm:"size:200" json:"file_id,omitempty"`
	Name        string     `gorm:"size:500" json:"name,omitempty"`
	ContentType string     `gorm:"size:255" json:"content_type,omitempty"`
	Data        []byte     `json:"-"`
	Size        int        `json:"size"`
	Route       string     `gorm:"size:1000" json:"route,omitempty"` // types joined with " -> "
	ErrorMsg    string     `gorm:"size:500" json:"error_msg,omitempty"`
}

func (JobOutput) TableName() string {
	return "job_outputs"
}
