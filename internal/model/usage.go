package model

import (
	"time"
)

// UsageCounter 免费额度计数器，按（用户，问题类型，日）唯一。
// 计数通过条件更新递增，永远不会超过该类型的每日上限。
type UsageCounter struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	UserID         int64     `gorm:"not null;uniqueIndex:idx_usage_user_type_day" json:"user_id"`
	QuestionTypeID string    `gorm:"size:50;not null;uniqueIndex:idx_usage_user_type_day" json:"question_type_id"`
	Day            string    `gorm:"size:10;not null;uniqueIndex:idx_usage_user_type_day" json:"day"` // 2006-01-02
	Count          int       `gorm:"not null;default:0" json:"count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UsageCounter) TableName() string {
	return "usage_counters"
}

// UsageDay 服务器本地日历日，计数器的分区键
func UsageDay(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
