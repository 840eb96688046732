package model

import (
	"time"
)

// 回答状态（编排器状态机）
const (
	AnswerStatusClassifying = "classifying"
	AnswerStatusAuthorizing = "authorizing"
	AnswerStatusRetrieving  = "retrieving"
	AnswerStatusGenerating  = "generating"
	AnswerStatusSettling    = "settling"
	AnswerStatusDone        = "done"
	AnswerStatusFailed      = "failed"
)

// Answer 一次问答请求的历史记录
type Answer struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	UserID         int64      `gorm:"not null;index" json:"user_id"`
	Question       string     `gorm:"type:text;not null" json:"question"`
	AnswerText     string     `gorm:"type:text" json:"answer_text"`
	QuestionTypeID string     `gorm:"size:50;index" json:"question_type_id"`
	ModelName      string     `gorm:"size:100" json:"model_name"`
	EmbeddingModel string     `gorm:"size:100" json:"embedding_model"`
	TokensIn       int        `json:"tokens_in"`
	TokensOut      int        `json:"tokens_out"`
	Cost           float64    `gorm:"type:decimal(12,2)" json:"cost"`
	TransactionID  *int64     `gorm:"index" json:"transaction_id,omitempty"`
	Status         string     `gorm:"size:20;index" json:"status"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	ElapsedMs      int64      `json:"elapsed_ms"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (Answer) TableName() string {
	return "answers"
}
