package service

import (
	"context"
	"errors"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/oss"
	"github.com/qs3c/normqa_go_server/internal/pkg/queue"
	"github.com/qs3c/normqa_go_server/internal/repository"
)

var (
	ErrDocumentNotFound = errors.New("文档不存在")
	ErrJobNotFound      = errors.New("任务不存在")
	ErrEmptyDocument    = errors.New("文档内容为空")
)

// DocumentService 文档入库：源文件上传 OSS，向量化任务投递 redis 队列，
// worker 异步切片并生成向量。
type DocumentService struct {
	docRepo   *repository.DocumentRepository
	jobRepo   *repository.JobRepository
	ossClient *oss.Client
	jobQueue  *queue.Queue
	cfg       *config.Config
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	jobRepo *repository.JobRepository,
	ossClient *oss.Client,
	jobQueue *queue.Queue,
	cfg *config.Config,
) *DocumentService {
	return &DocumentService{
		docRepo:   docRepo,
		jobRepo:   jobRepo,
		ossClient: ossClient,
		jobQueue:  jobQueue,
		cfg:       cfg,
	}
}

// Upload 接收文档、存 OSS 并为默认向量模型排一个向量化任务
func (s *DocumentService) Upload(ctx context.Context, userID int64, title, filename string, file io.Reader) (*dto.UploadDocumentResponse, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	if title == "" {
		title = filename
	}

	doc := &model.Document{
		Title:      title,
		Status:     model.DocumentStatusUploaded,
		UploadedBy: userID,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	sourceKey, err := s.ossClient.UploadDocument(doc.ID, filename, data)
	if err != nil {
		s.docRepo.UpdateFields(doc.ID, map[string]interface{}{
			"status":        model.DocumentStatusFailed,
			"error_message": err.Error(),
		})
		return nil, err
	}
	if err := s.docRepo.UpdateFields(doc.ID, map[string]interface{}{"source_key": sourceKey}); err != nil {
		return nil, err
	}

	job, err := s.enqueue(ctx, doc, userID, s.cfg.Embedding.DefaultModel, sourceKey)
	if err != nil {
		return nil, err
	}

	return &dto.UploadDocumentResponse{
		DocumentID: doc.ID,
		JobID:      job.ID,
	}, nil
}

// Revectorize 为已入库文档重新排一个向量化任务（切换向量模型用）
func (s *DocumentService) Revectorize(ctx context.Context, documentID, userID int64, embeddingModel string) (*dto.UploadDocumentResponse, error) {
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if embeddingModel == "" {
		embeddingModel = s.cfg.Embedding.DefaultModel
	}

	job, err := s.enqueue(ctx, doc, userID, embeddingModel, doc.SourceKey)
	if err != nil {
		return nil, err
	}
	return &dto.UploadDocumentResponse{
		DocumentID: doc.ID,
		JobID:      job.ID,
	}, nil
}

// List 返回全部文档
func (s *DocumentService) List() ([]dto.DocumentInfo, error) {
	docs, err := s.docRepo.List()
	if err != nil {
		return nil, err
	}
	infos := make([]dto.DocumentInfo, 0, len(docs))
	for _, d := range docs {
		infos = append(infos, dto.DocumentInfo{
			ID:         d.ID,
			Title:      d.Title,
			Status:     d.Status,
			ChunkCount: d.ChunkCount,
			CreatedAt:  d.CreatedAt.Format(time.RFC3339),
		})
	}
	return infos, nil
}

// JobStatus 查询向量化任务状态
func (s *DocumentService) JobStatus(jobID int64) (*dto.JobStatusResponse, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &dto.JobStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		CurrentStep:  job.CurrentStep,
		ChunksBuilt:  job.ChunksBuilt,
		ErrorMessage: job.ErrorMessage,
	}, nil
}

func (s *DocumentService) enqueue(ctx context.Context, doc *model.Document, userID int64, embeddingModel, sourceKey string) (*model.VectorizeJob, error) {
	job := &model.VectorizeJob{
		DocumentID:     doc.ID,
		UserID:         userID,
		EmbeddingModel: embeddingModel,
		Status:         model.JobStatusQueued,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	err := s.jobQueue.Push(ctx, &queue.JobMessage{
		JobID:          job.ID,
		DocumentID:     doc.ID,
		UserID:         userID,
		EmbeddingModel: embeddingModel,
		SourceKey:      sourceKey,
	})
	if err != nil {
		s.jobRepo.UpdateFields(job.ID, map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": "任务入队失败: " + err.Error(),
		})
		return nil, err
	}
	return job, nil
}
