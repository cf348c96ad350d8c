package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/mimeroute/internal/entities"
	"github.com/mrlokans/mimeroute/internal/utils"
)

// ErrNotFound is returned when a job or output does not exist.
var ErrNotFound = errors.New("job not found")

type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create stores a new pending job.
func (r *Repository) Create(job *entities.ConversionJob) error {
	if job.Status == "" {
		job.Status = entities.JobStatusPending
	}
	return r.db.Create(job).Error
}

// Get loads a job with its outputs ordered by item index.
func (r *Repository) Get(id string) (*entities.ConversionJob, error) {
	var job entities.ConversionJob
	err := r.db.Preload("Outputs", func(db *gorm.DB) *gorm.DB {
		return db.Order("item_index ASC")
	}).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkRunning moves a job to the running status.
func (r *Repository) MarkRunning(id string) error {
	return r.updateStatus(id, map[string]any{"status": entities.JobStatusRunning})
}

// Complete replaces the outputs of a job and marks it completed.
func (r *Repository) Complete(id string, outputs []entities.JobOutput) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&entities.JobOutput{}).Error; err != nil {
			return err
		}
		for i := range outputs {
			outputs[i].JobID = id
			outputs[i].Size = len(outputs[i].Data)
		}
		if len(outputs) > 0 {
			if err := tx.Create(&outputs).Error; err != nil {
				return err
			}
		}
		now := r.now()
		return updateStatus(tx, id, map[string]any{
			"status":      entities.JobStatusCompleted,
			"error_msg":   "",
			"finished_at": &now,
		})
	})
}

// Fail marks a job as failed with the given message.
func (r *Repository) Fail(id, msg string) error {
	now := r.now()
	return r.updateStatus(id, map[string]any{
		"status":      entities.JobStatusFailed,
		"error_msg":   utils.Truncate(msg, 500),
		"finished_at": &now,
	})
}

// GetOutput returns the output for item index of a job.
func (r *Repository) GetOutput(jobID string, index int) (*entities.JobOutput, error) {
	var out entities.JobOutput
	err := r.db.Where("job_id = ? AND item_index = ?", jobID, index).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteFinishedBefore removes finished jobs and their outputs.
// Returns the number of deleted jobs.
func (r *Repository) DeleteFinishedBefore(cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		finished := tx.Model(&entities.ConversionJob{}).
			Select("id").
			Where("finished_at IS NOT NULL AND finished_at < ?", cutoff)

		if err := tx.Where("job_id IN (?)", finished).Delete(&entities.JobOutput{}).Error; err != nil {
			return err
		}
		result := tx.Where("finished_at IS NOT NULL AND finished_at < ?", cutoff).Delete(&entities.ConversionJob{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

func (r *Repository) updateStatus(id string, fields map[string]any) error {
	return updateStatus(r.db, id, fields)
}

func updateStatus(db *gorm.DB, id string, fields map[string]any) error {
	result := db.Model(&entities.ConversionJob{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
