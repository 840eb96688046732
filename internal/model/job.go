package model

import (
	"time"
)

// 向量化任务状态
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// VectorizeJob 文档向量化任务，由 worker 从 redis 队列消费
type VectorizeJob struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	DocumentID     int64      `gorm:"not null;index" json:"document_id"`
	UserID         int64      `gorm:"not null;index" json:"user_id"`
	EmbeddingModel string     `gorm:"size:100;not null" json:"embedding_model"`
	Status         string     `gorm:"size:20;default:queued;index" json:"status"` // queued, processing, completed, failed
	CurrentStep    string     `gorm:"size:50" json:"current_step"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	ChunksBuilt    int        `json:"chunks_built"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (VectorizeJob) TableName() string {
	return "vectorize_jobs"
}
