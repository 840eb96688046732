package model

import (
	"time"
)

// 文档状态
const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusVectorizing = "vectorizing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Document 已入库的规范文档（源文件存 OSS，切片存 chunks 表）
type Document struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:300;not null" json:"title"`
	SourceKey   string    `gorm:"size:500" json:"source_key"` // OSS object key
	Status      string    `gorm:"size:20;default:uploaded;index" json:"status"`
	ChunkCount  int       `gorm:"default:0" json:"chunk_count"`
	UploadedBy  int64     `gorm:"index" json:"uploaded_by"`
	ErrorMessage string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

// Chunk 文档切片及其向量。向量按小端 float32 序列化，
// 每个 embedding 模型一份独立记录。
type Chunk struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	DocumentID     int64     `gorm:"not null;index" json:"document_id"`
	EmbeddingModel string    `gorm:"size:100;not null;index" json:"embedding_model"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Article        string    `gorm:"size:200" json:"article"` // 条款号/章节
	Page           int       `json:"page"`
	Embedding      []byte    `gorm:"type:blob" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Chunk) TableName() string {
	return "chunks"
}
