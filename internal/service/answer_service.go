package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/classifier"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/pricing"
	"github.com/qs3c/normqa_go_server/internal/pkg/pubsub"
	"github.com/qs3c/normqa_go_server/internal/pkg/vecindex"
	"github.com/qs3c/normqa_go_server/internal/repository"
)

// 回答的系统提示词。要求引用条文出处，找不到依据时明说。
const answerSystem = "你是建筑规范问答助手。只依据提供的规范条文回答问题，回答中注明引用的条文编号。如果条文中没有足够依据，直接说明无法回答，不要编造。"

// AnswerService 问答编排：分类 → 授权 → 检索 → 生成 → 结算。
// 授权先于任何外部调用，失败路径保证额度和预扣全部退回。
type AnswerService struct {
	answerRepo *repository.AnswerRepository
	classifier *classifier.Classifier
	pricing    *pricing.Table
	ledger     *LedgerService
	usage      *UsageService
	search     *SearchService
	registry   *llm.Registry
	publisher  *pubsub.Publisher
	llmSvc     *LLMService
	cfg        *config.Config
}

func NewAnswerService(
	answerRepo *repository.AnswerRepository,
	c *classifier.Classifier,
	p *pricing.Table,
	ledger *LedgerService,
	usage *UsageService,
	search *SearchService,
	registry *llm.Registry,
	publisher *pubsub.Publisher,
	llmSvc *LLMService,
	cfg *config.Config,
) *AnswerService {
	return &AnswerService{
		answerRepo: answerRepo,
		classifier: c,
		pricing:    p,
		ledger:     ledger,
		usage:      usage,
		search:     search,
		registry:   registry,
		publisher:  publisher,
		llmSvc:     llmSvc,
		cfg:        cfg,
	}
}

// Ask 执行一次完整的问答流程
func (s *AnswerService) Ask(ctx context.Context, userID int64, req *dto.AskRequest) (*dto.AskResponse, error) {
	started := time.Now()

	modelName := req.Model
	if modelName == "" {
		modelName = s.cfg.LLM.DefaultModel
	}
	embModel := req.EmbeddingModel
	if embModel == "" {
		embModel = s.cfg.Embedding.DefaultModel
	}
	if !s.pricing.HasModel(modelName) {
		return nil, llm.ErrModelNotFound
	}

	answer := &model.Answer{
		UserID:         userID,
		Question:       req.Query,
		ModelName:      modelName,
		EmbeddingModel: embModel,
		Status:         model.AnswerStatusClassifying,
	}
	if err := s.answerRepo.Create(answer); err != nil {
		return nil, err
	}

	// 1. 分类
	s.progress(ctx, userID, answer.ID, pubsub.StepClassifying)
	result := s.classifier.Classify(req.Query)
	typ := result.Type
	s.answerRepo.UpdateFields(answer.ID, map[string]interface{}{
		"question_type_id": typ.ID,
		"status":           model.AnswerStatusAuthorizing,
	})

	// 2. 授权：免费类型占当日名额，付费类型预扣最大估算费用
	s.progress(ctx, userID, answer.ID, pubsub.StepAuthorizing)
	var reservation *model.Transaction
	if typ.Free {
		if err := s.usage.ConsumeFree(userID, typ); err != nil {
			s.fail(answer.ID, err)
			return nil, err
		}
	} else {
		est, err := s.pricing.Estimate(typ, modelName)
		if err != nil {
			s.fail(answer.ID, err)
			return nil, err
		}
		desc := fmt.Sprintf("问答：%s（%s）", typ.DisplayName, modelName)
		reservation, err = s.ledger.Reserve(userID, est.MaxCost, desc)
		if err != nil {
			s.fail(answer.ID, err)
			return nil, err
		}
		s.answerRepo.UpdateFields(answer.ID, map[string]interface{}{
			"transaction_id": reservation.ID,
		})
	}

	// 授权之后的所有失败都要把名额或预扣退回去
	resp, err := s.run(ctx, userID, answer, typ, modelName, embModel, result)
	if err != nil {
		s.rollback(userID, typ, reservation)
		s.fail(answer.ID, err)
		s.progressError(ctx, userID, answer.ID, err)
		return nil, err
	}

	// 5. 结算
	s.progress(ctx, userID, answer.ID, pubsub.StepSettling)
	actualCost := 0.0
	if reservation != nil {
		cost, cerr := s.pricing.ActualCost(modelName, resp.TokensIn, resp.TokensOut)
		if cerr != nil {
			s.rollback(userID, typ, reservation)
			s.fail(answer.ID, cerr)
			return nil, cerr
		}
		// 实际费用不超过预扣额，用户永远不会被多扣
		if max := -reservation.Amount; cost > max {
			cost = max
		}
		if serr := s.ledger.Settle(reservation.ID, cost); serr != nil {
			s.fail(answer.ID, serr)
			return nil, serr
		}
		actualCost = pricing.Round(cost)
	}

	elapsed := time.Since(started).Milliseconds()
	now := time.Now()
	s.answerRepo.UpdateFields(answer.ID, map[string]interface{}{
		"answer_text":  resp.Answer,
		"tokens_in":    resp.TokensIn,
		"tokens_out":   resp.TokensOut,
		"cost":         actualCost,
		"status":       model.AnswerStatusDone,
		"elapsed_ms":   elapsed,
		"completed_at": &now,
	})
	s.progress(ctx, userID, answer.ID, pubsub.StepDone)

	resp.AnswerID = answer.ID
	resp.Cost = actualCost
	resp.ElapsedMs = elapsed
	resp.Classification = s.llmSvc.BuildClassificationInfo(result)
	if actualCost > 0 {
		resp.Formatted = pricing.Format(actualCost, s.cfg.Billing.CurrencySymbol)
	}
	if typ.Free {
		remaining, rerr := s.usage.Remaining(userID, typ)
		if rerr == nil {
			resp.RemainingFree = &remaining
		}
	}
	return resp, nil
}

// run 检索与生成，返回未定价的部分响应
func (s *AnswerService) run(ctx context.Context, userID int64, answer *model.Answer, typ classifier.TypeInfo, modelName, embModel string, result classifier.Result) (*dto.AskResponse, error) {
	// 3. 检索
	s.progress(ctx, userID, answer.ID, pubsub.StepRetrieving)
	s.answerRepo.UpdateFields(answer.ID, map[string]interface{}{"status": model.AnswerStatusRetrieving})

	topK := s.cfg.Retrieval.TopK
	chunks, err := s.search.Retrieve(ctx, answer.Question, embModel, topK)
	if err != nil && !errors.Is(err, vecindex.ErrModelNotFound) {
		return nil, err
	}

	// 4. 生成（带超时）
	s.progress(ctx, userID, answer.ID, pubsub.StepGenerating)
	s.answerRepo.UpdateFields(answer.ID, map[string]interface{}{"status": model.AnswerStatusGenerating})

	provider, err := s.registry.Provider(modelName)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(s.cfg.LLM.TimeoutSeconds) * time.Second
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := s.buildPrompt(answer.Question, chunks)
	gen, err := provider.Generate(genCtx, answerSystem, prompt)
	if err != nil {
		return nil, err
	}

	sources := make([]dto.SourceInfo, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, dto.SourceInfo{
			ChunkID:    c.ChunkID,
			Document:   c.Document,
			Article:    c.Article,
			Similarity: c.Similarity,
			Excerpt:    truncate(c.Content, 200),
		})
	}

	return &dto.AskResponse{
		Answer:    gen.Text,
		Sources:   sources,
		TokensIn:  gen.TokensIn,
		TokensOut: gen.TokensOut,
	}, nil
}

// buildPrompt 把检索到的条文拼进提示词
func (s *AnswerService) buildPrompt(question string, chunks []vecindex.Result) string {
	if len(chunks) == 0 {
		return fmt.Sprintf("问题：%s\n\n（未检索到相关条文）", question)
	}

	maxSnippet := s.cfg.Retrieval.MaxSnippet
	var b strings.Builder
	b.WriteString("以下是检索到的规范条文：\n\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "【%d】%s", i+1, c.Document)
		if c.Article != "" {
			fmt.Fprintf(&b, " %s", c.Article)
		}
		b.WriteString("\n")
		b.WriteString(truncate(c.Content, maxSnippet))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "问题：%s", question)
	return b.String()
}

// rollback 失败时退回名额或预扣
func (s *AnswerService) rollback(userID int64, typ classifier.TypeInfo, reservation *model.Transaction) {
	if reservation != nil {
		if err := s.ledger.Release(reservation.ID); err != nil && !errors.Is(err, repository.ErrConditionFailed) {
			// 定时任务会兜底释放过期预扣
			log.Printf("释放预扣失败 txn=%d: %v", reservation.ID, err)
		}
		return
	}
	if typ.Free {
		s.usage.RefundFree(userID, typ.ID)
	}
}

func (s *AnswerService) fail(answerID int64, cause error) {
	now := time.Now()
	s.answerRepo.UpdateFields(answerID, map[string]interface{}{
		"status":        model.AnswerStatusFailed,
		"error_message": cause.Error(),
		"completed_at":  &now,
	})
}

func (s *AnswerService) progress(ctx context.Context, userID, answerID int64, step string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:   userID,
		AnswerID: answerID,
		Status:   step,
		Step:     step,
	})
}

func (s *AnswerService) progressError(ctx context.Context, userID, answerID int64, cause error) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:   userID,
		AnswerID: answerID,
		Status:   model.AnswerStatusFailed,
		Step:     model.AnswerStatusFailed,
		Message:  "回答失败",
		Error:    cause.Error(),
	})
}

// History 分页返回用户的问答历史
func (s *AnswerService) History(userID int64, page, pageSize int) ([]model.Answer, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.answerRepo.ListByUser(userID, page, pageSize)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
