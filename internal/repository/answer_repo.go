package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/internal/model"
)

type AnswerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) Create(answer *model.Answer) error {
	return r.db.Create(answer).Error
}

func (r *AnswerRepository) GetByID(id int64) (*model.Answer, error) {
	var answer model.Answer
	err := r.db.Where("id = ?", id).First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AnswerRepository) Update(answer *model.Answer) error {
	return r.db.Save(answer).Error
}

func (r *AnswerRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Answer{}).Where("id = ?", id).Updates(fields).Error
}

func (r *AnswerRepository) ListByUser(userID int64, page, pageSize int) ([]model.Answer, int64, error) {
	var answers []model.Answer
	var total int64

	query := r.db.Model(&model.Answer{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&answers).Error
	if err != nil {
		return nil, 0, err
	}
	return answers, total, nil
}

// CountDone 统计用户已完成的回答数(用户统计用)
func (r *AnswerRepository) CountDone(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Answer{}).
		Where("user_id = ? AND status = ?", userID, model.AnswerStatusDone).
		Count(&count).Error
	return count, err
}

// SumTokens 汇总用户已完成回答消耗的输入输出 token 数
func (r *AnswerRepository) SumTokens(userID int64) (int64, error) {
	var sum int64
	err := r.db.Model(&model.Answer{}).
		Where("user_id = ? AND status = ?", userID, model.AnswerStatusDone).
		Select("COALESCE(SUM(tokens_in + tokens_out), 0)").Scan(&sum).Error
	return sum, err
}
