package repository

import (
	"time"

	"chainpay/gateway/internal/domain"

	"gorm.io/gorm"
)

type JobsRepo struct {
}

func InitJobsRepo() *JobsRepo {
	return &JobsRepo{}
}

// fails with a unique violation if the job id is already taken
func (r *JobsRepo) Create(tx *gorm.DB, job *domain.Jobs) error {
	return tx.Create(job).Error
}

func (r *JobsRepo) FindByID(tx *gorm.DB, id string) (*domain.Jobs, error) {
	var job domain.Jobs
	return &job, tx.Where("id = ?", id).First(&job).Error
}

func (r *JobsRepo) Start(tx *gorm.DB, id string, now time.Time) (bool, error) {
	res := tx.Model(&domain.Jobs{}).
		Where("id = ? AND status = ?", id, int(domain.JOB_STATUS_QUEUED)).
		Updates(map[string]any{
			"status":     int(domain.JOB_STATUS_RUNNING),
			"started_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *JobsRepo) Finish(tx *gorm.DB, id string, status domain.JobStatus, result string, errMsg string, now time.Time) error {
	return tx.Model(&domain.Jobs{}).Where("id = ?", id).Updates(map[string]any{
		"status":      int(status),
		"result":      result,
		"error":       errMsg,
		"finished_at": now,
	}).Error
}

func (r *JobsRepo) DeleteOlderThan(tx *gorm.DB, before time.Time) (int64, error) {
	res := tx.Where("created_at < ?", before).Delete(&domain.Jobs{})
	return res.RowsAffected, res.Error
}
