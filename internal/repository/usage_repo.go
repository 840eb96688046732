package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Get 返回用户某问题类型当天的计数,不存在时返回 0
func (r *UsageRepository) Get(userID int64, typeID, day string) (int, error) {
	var counter model.UsageCounter
	err := r.db.Where("user_id = ? AND question_type_id = ? AND day = ?", userID, typeID, day).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Count, nil
}

// Consume 原子消耗一次免费额度:仅当当天计数小于 limit 时加一。
// 计数行不存在时先创建;额度已满时返回 ErrConditionFailed。
func (r *UsageRepository) Consume(userID int64, typeID, day string, limit int) error {
	result := r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND question_type_id = ? AND day = ? AND count < ?", userID, typeID, day, limit).
		UpdateColumn("count", gorm.Expr("count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 没有命中:要么行不存在,要么额度已满
	if limit < 1 {
		return ErrConditionFailed
	}

	counter := model.UsageCounter{
		UserID:         userID,
		QuestionTypeID: typeID,
		Day:            day,
		Count:          1,
	}
	createErr := r.db.Create(&counter).Error
	if createErr == nil {
		return nil
	}

	// 创建失败:并发下另一条请求可能刚插好了行(唯一索引冲突),
	// 重试一次条件更新,让还有余量的请求照常通过
	result = r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND question_type_id = ? AND day = ? AND count < ?", userID, typeID, day, limit).
		UpdateColumn("count", gorm.Expr("count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 行存在但没更新到,才是真的额度已满;行不存在说明创建失败另有原因
	var existing int64
	if err := r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND question_type_id = ? AND day = ?", userID, typeID, day).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return ErrConditionFailed
	}
	return createErr
}

// Refund 归还一次免费额度(回答失败时调用)
func (r *UsageRepository) Refund(userID int64, typeID, day string) error {
	return r.db.Model(&model.UsageCounter{}).
		Where("user_id = ? AND question_type_id = ? AND day = ? AND count > 0", userID, typeID, day).
		UpdateColumn("count", gorm.Expr("count - ?", 1)).Error
}

// DeleteBefore 删除指定日期之前的计数行(定时清理用)
func (r *UsageRepository) DeleteBefore(day string) (int64, error) {
	result := r.db.Where("day < ?", day).Delete(&model.UsageCounter{})
	return result.RowsAffected, result.Error
}

// TodayUsage 返回用户当天全部类型的计数
func (r *UsageRepository) TodayUsage(userID int64) (map[string]int, error) {
	var counters []model.UsageCounter
	day := model.UsageDay(time.Now())
	err := r.db.Where("user_id = ? AND day = ?", userID, day).Find(&counters).Error
	if err != nil {
		return nil, err
	}
	usage := make(map[string]int, len(counters))
	for _, c := range counters {
		usage[c.QuestionTypeID] = c.Count
	}
	return usage, nil
}
