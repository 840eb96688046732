package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/oss"
	"github.com/qs3c/normqa_go_server/internal/pkg/pubsub"
	"github.com/qs3c/normqa_go_server/internal/pkg/queue"
	"github.com/qs3c/normqa_go_server/internal/pkg/vecindex"
	"github.com/qs3c/normqa_go_server/internal/repository"
	"github.com/qs3c/normqa_go_server/internal/service"
)

// Processor 向量化任务处理器：下载源文件、切片、逐片生成向量、
// 落库并重建内存索引。
type Processor struct {
	jobRepo   *repository.JobRepository
	docRepo   *repository.DocumentRepository
	ossClient *oss.Client
	registry  *llm.Registry
	searchSvc *service.SearchService
	publisher *pubsub.Publisher
	cfg       *config.Config
}

func NewProcessor(
	jobRepo *repository.JobRepository,
	docRepo *repository.DocumentRepository,
	ossClient *oss.Client,
	registry *llm.Registry,
	searchSvc *service.SearchService,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		jobRepo:   jobRepo,
		docRepo:   docRepo,
		ossClient: ossClient,
		registry:  registry,
		searchSvc: searchSvc,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Process 处理一个向量化任务
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	// 认领任务，重复投递或并发 worker 下只有一个能拿到
	if err := p.jobRepo.ClaimQueued(msg.JobID); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			log.Printf("任务 %d 已被其他 worker 认领，跳过", msg.JobID)
			return nil
		}
		return fmt.Errorf("认领任务失败: %w", err)
	}

	started := time.Now()
	p.jobRepo.UpdateFields(msg.JobID, map[string]interface{}{"started_at": &started})
	p.docRepo.UpdateStatus(msg.DocumentID, model.DocumentStatusVectorizing)

	publishProgress := func(step, status, errMsg string) {
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			Type:   "vectorize_progress",
			UserID: msg.UserID,
			JobID:  msg.JobID,
			Status: status,
			Step:   step,
			Error:  errMsg,
		})
	}

	handleError := func(step string, cause error) error {
		completed := time.Now()
		p.jobRepo.UpdateFields(msg.JobID, map[string]interface{}{
			"status":          model.JobStatusFailed,
			"current_step":    step,
			"error_message":   cause.Error(),
			"completed_at":    &completed,
			"elapsed_seconds": int(completed.Sub(started).Seconds()),
		})
		p.docRepo.UpdateFields(msg.DocumentID, map[string]interface{}{
			"status":        model.DocumentStatusFailed,
			"error_message": cause.Error(),
		})
		publishProgress(step, "failed", cause.Error())
		return cause
	}

	step := func(name string) {
		p.jobRepo.UpdateFields(msg.JobID, map[string]interface{}{
			"current_step": pubsub.StepMessages[name],
		})
		publishProgress(name, "processing", "")
	}

	// 1. 下载源文件
	step(pubsub.StepDownloading)
	data, err := p.ossClient.DownloadDocument(msg.SourceKey)
	if err != nil {
		return handleError(pubsub.StepDownloading, fmt.Errorf("下载文档失败: %w", err))
	}

	// 2. 切片
	step(pubsub.StepChunking)
	textChunks := SplitDocument(string(data))
	if len(textChunks) == 0 {
		return handleError(pubsub.StepChunking, fmt.Errorf("文档切片为空"))
	}
	log.Printf("任务 %d: 文档 %d 切出 %d 个片段", msg.JobID, msg.DocumentID, len(textChunks))

	// 3. 逐片生成向量
	step(pubsub.StepEmbedding)
	embedder, err := p.registry.Embedder(msg.EmbeddingModel)
	if err != nil {
		return handleError(pubsub.StepEmbedding, fmt.Errorf("向量模型不可用: %w", err))
	}

	chunks := make([]model.Chunk, 0, len(textChunks))
	for i, tc := range textChunks {
		vec, err := embedder.Embed(ctx, tc.Content)
		if err != nil {
			return handleError(pubsub.StepEmbedding, fmt.Errorf("第 %d 个片段向量化失败: %w", i+1, err))
		}
		chunks = append(chunks, model.Chunk{
			DocumentID:     msg.DocumentID,
			EmbeddingModel: msg.EmbeddingModel,
			Content:        tc.Content,
			Article:        tc.Article,
			Page:           tc.Page,
		})
		chunks[len(chunks)-1].Embedding = vecindex.EncodeVector(vec)

		p.jobRepo.UpdateFields(msg.JobID, map[string]interface{}{"chunks_built": i + 1})
	}

	// 4. 落库并重建索引
	step(pubsub.StepIndexing)
	if err := p.docRepo.ReplaceChunks(msg.DocumentID, msg.EmbeddingModel, chunks); err != nil {
		return handleError(pubsub.StepIndexing, fmt.Errorf("保存切片失败: %w", err))
	}
	if err := p.searchSvc.ReloadIndex(msg.EmbeddingModel); err != nil {
		return handleError(pubsub.StepIndexing, fmt.Errorf("重建索引失败: %w", err))
	}

	completed := time.Now()
	p.jobRepo.UpdateFields(msg.JobID, map[string]interface{}{
		"status":          model.JobStatusCompleted,
		"current_step":    "完成",
		"chunks_built":    len(chunks),
		"completed_at":    &completed,
		"elapsed_seconds": int(completed.Sub(started).Seconds()),
	})
	p.docRepo.UpdateFields(msg.DocumentID, map[string]interface{}{
		"status":      model.DocumentStatusReady,
		"chunk_count": len(chunks),
	})
	publishProgress(pubsub.StepDone, "completed", "")

	log.Printf("任务 %d 完成，耗时 %.1fs", msg.JobID, completed.Sub(started).Seconds())
	return nil
}

// Run 持续消费队列直到 ctx 取消
func (p *Processor) Run(ctx context.Context, jobQueue *queue.Queue) {
	log.Printf("worker 已启动，监听队列")
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker 退出")
			return
		default:
		}

		msg, err := jobQueue.Pop(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("取任务失败: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		if err := p.Process(ctx, msg); err != nil {
			log.Printf("任务 %d 处理失败: %v", msg.JobID, err)
		}
	}
}
