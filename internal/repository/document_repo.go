package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

func (r *DocumentRepository) GetByID(id int64) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) List() ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Order("id ASC").Find(&docs).Error
	return docs, err
}

func (r *DocumentRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Update("status", status).Error
}

func (r *DocumentRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).Updates(fields).Error
}

// ReplaceChunks 在单个事务内替换文档在某个向量模型下的全部分块
func (r *DocumentRepository) ReplaceChunks(documentID int64, embeddingModel string, chunks []model.Chunk) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("document_id = ? AND embedding_model = ?", documentID, embeddingModel).
			Delete(&model.Chunk{}).Error
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error
	})
}

// ChunksByModel 返回某向量模型下的全部分块(加载内存索引用)
func (r *DocumentRepository) ChunksByModel(embeddingModel string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.Where("embedding_model = ?", embeddingModel).
		Order("id ASC").Find(&chunks).Error
	return chunks, err
}

func (r *DocumentRepository) CountChunks(documentID int64, embeddingModel string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Chunk{}).
		Where("document_id = ? AND embedding_model = ?", documentID, embeddingModel).
		Count(&count).Error
	return count, err
}
