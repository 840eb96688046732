package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.VectorizeJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.VectorizeJob, error) {
	var job model.VectorizeJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.VectorizeJob{}).Where("id = ?", id).Updates(fields).Error
}

// ClaimQueued 将排队中的任务置为处理中,已被其他进程认领时返回 ErrConditionFailed
func (r *JobRepository) ClaimQueued(id int64) error {
	result := r.db.Model(&model.VectorizeJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusQueued).
		Update("status", model.JobStatusProcessing)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (r *JobRepository) ListByDocument(documentID int64) ([]model.VectorizeJob, error) {
	var jobs []model.VectorizeJob
	err := r.db.Where("document_id = ?", documentID).Order("id DESC").Find(&jobs).Error
	return jobs, err
}
