package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/classifier"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/pricing"
	"github.com/qs3c/normqa_go_server/internal/pkg/vecindex"
	"github.com/qs3c/normqa_go_server/internal/repository"
	"github.com/qs3c/normqa_go_server/internal/testutil"
)

// fakeProvider 可编程的生成实现
type fakeProvider struct {
	text      string
	tokensIn  int
	tokensOut int
	err       error
	calls     int64
}

func (f *fakeProvider) Generate(ctx context.Context, system, prompt string) (*llm.GenerateResult, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResult{Text: f.text, TokensIn: f.tokensIn, TokensOut: f.tokensOut}, nil
}

type fakeEmbedder struct {
	vector []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

func (f *fakeEmbedder) Dimensions() int {
	return len(f.vector)
}

type answerFixture struct {
	service  *AnswerService
	ledger   *LedgerService
	usage    *UsageService
	provider *fakeProvider
	db       *gorm.DB
}

func answerQuestionTypes() []config.QuestionTypeConfig {
	return []config.QuestionTypeConfig{
		{
			ID:             "simple_reference",
			DisplayName:    "条文引用",
			Complexity:     "low",
			Free:           true,
			FreeDailyLimit: 3,
			InputTokens:    800,
			OutputTokens:   250,
			Keywords:       []string{"是什么", "多少"},
		},
		{
			ID:           "deep_analysis",
			DisplayName:  "深度分析",
			Complexity:   "high",
			InputTokens:  6000,
			OutputTokens: 2500,
			Keywords:     []string{"对比", "分析", "风险"},
		},
	}
}

func setupAnswerService(t *testing.T) (*answerFixture, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	cfg := billingConfig()
	cfg.LLM = config.LLMConfig{
		DefaultModel:   "yandexgpt-lite",
		TimeoutSeconds: 5,
		Models: []config.LLMModelConfig{
			{
				Name:             "yandexgpt-lite",
				DisplayName:      "YandexGPT Lite",
				Provider:         "yandex",
				InputPricePer1M:  0.20,
				OutputPricePer1M: 0.40,
			},
		},
	}
	cfg.Embedding = config.EmbeddingConfig{DefaultModel: "test-embed"}
	cfg.Retrieval = config.RetrievalConfig{TopK: 5, MaxSnippet: 300}
	cfg.QuestionTypes = answerQuestionTypes()

	c := classifier.New(cfg.QuestionTypes)
	table := pricing.NewTable(cfg.LLM, cfg.Billing)

	provider := &fakeProvider{text: "按 5.1.1 条，耐火极限为 REI 150。", tokensIn: 900, tokensOut: 300}
	registry, err := llm.NewRegistry(config.LLMConfig{}, config.EmbeddingConfig{})
	require.NoError(t, err)
	registry.RegisterProvider("yandexgpt-lite", provider)
	registry.RegisterEmbedder("test-embed", &fakeEmbedder{vector: []float32{1, 0, 0}})

	index := vecindex.New()
	index.Load("test-embed", []vecindex.Entry{
		{
			ChunkID:    1,
			DocumentID: 1,
			Document:   "СП 2.13130",
			Article:    "5.1.1",
			Content:    "Пределы огнестойкости противопожарных стен принимаются REI 150.",
			Vector:     []float32{1, 0, 0},
		},
	})

	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	docRepo := repository.NewDocumentRepository(db)

	ledger := NewLedgerService(userRepo, txnRepo, cfg)
	usage := NewUsageService(usageRepo, c)
	search := NewSearchService(docRepo, index, registry, cfg)
	llmSvc := NewLLMService(c, table, cfg)

	service := NewAnswerService(answerRepo, c, table, ledger, usage, search, registry, nil, llmSvc, cfg)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return &answerFixture{
		service:  service,
		ledger:   ledger,
		usage:    usage,
		provider: provider,
		db:       db,
	}, cleanup
}

func TestAnswerService_Ask_FreeFlow(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)

	resp, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
		Query: "防火墙的耐火极限是多少？",
	})
	require.NoError(t, err)

	assert.NotZero(t, resp.AnswerID)
	assert.Contains(t, resp.Answer, "REI 150")
	assert.Equal(t, 0.0, resp.Cost)
	require.NotNil(t, resp.Classification)
	assert.Equal(t, "simple_reference", resp.Classification.TypeID)
	assert.True(t, resp.Classification.Free)
	require.NotNil(t, resp.RemainingFree)
	assert.Equal(t, 2, *resp.RemainingFree)

	// 引用来源来自向量索引
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "СП 2.13130", resp.Sources[0].Document)
	assert.Equal(t, "5.1.1", resp.Sources[0].Article)

	var answer model.Answer
	require.NoError(t, f.db.First(&answer, resp.AnswerID).Error)
	assert.Equal(t, model.AnswerStatusDone, answer.Status)
	assert.Equal(t, "simple_reference", answer.QuestionTypeID)
	assert.Equal(t, 900, answer.TokensIn)
	assert.Nil(t, answer.TransactionID)
	assert.NotNil(t, answer.CompletedAt)

	// 免费流程不产生任何交易
	var count int64
	f.db.Model(&model.Transaction{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestAnswerService_Ask_PaidFlow(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db, testutil.WithBalance(100))
	// 深度分析:预扣上限 0.33,实测 5000/2000 tokens 结算 0.18
	f.provider.tokensIn = 5000
	f.provider.tokensOut = 2000

	resp, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
		Query: "不同版本防火规范的要求对比分析",
	})
	require.NoError(t, err)

	assert.Equal(t, "deep_analysis", resp.Classification.TypeID)
	assert.Equal(t, 0.18, resp.Cost)
	assert.Equal(t, "0.18 ₽", resp.Formatted)
	assert.Nil(t, resp.RemainingFree)

	var answer model.Answer
	require.NoError(t, f.db.First(&answer, resp.AnswerID).Error)
	assert.Equal(t, model.AnswerStatusDone, answer.Status)
	assert.Equal(t, 0.18, answer.Cost)
	require.NotNil(t, answer.TransactionID)

	// 预扣结清为实际费用,差额退回
	var txn model.Transaction
	require.NoError(t, f.db.First(&txn, *answer.TransactionID).Error)
	assert.Equal(t, model.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, -0.18, txn.Amount)

	var fresh model.User
	require.NoError(t, f.db.First(&fresh, user.ID).Error)
	assert.InDelta(t, 99.82, fresh.Balance, 0.001)

	assert.NoError(t, f.ledger.Audit(user.ID))
}

func TestAnswerService_Ask_CostNeverExceedsReservation(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db, testutil.WithBalance(100))
	// 实测用量远超估算区间,结算额被封顶在预扣额 0.33
	f.provider.tokensIn = 50000
	f.provider.tokensOut = 20000

	resp, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
		Query: "不同版本防火规范的要求对比分析",
	})
	require.NoError(t, err)

	assert.Equal(t, 0.33, resp.Cost)

	var fresh model.User
	require.NoError(t, f.db.First(&fresh, user.ID).Error)
	assert.InDelta(t, 99.67, fresh.Balance, 0.001)

	assert.NoError(t, f.ledger.Audit(user.ID))
}

func TestAnswerService_Ask_ProviderFailure_ReleasesReservation(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db, testutil.WithBalance(100))
	f.provider.err = llm.ErrProviderFailed

	_, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
		Query: "不同版本防火规范的要求对比分析",
	})
	assert.ErrorIs(t, err, llm.ErrProviderFailed)

	// 预扣全额退回
	var fresh model.User
	require.NoError(t, f.db.First(&fresh, user.ID).Error)
	assert.InDelta(t, 100.00, fresh.Balance, 0.001)

	var answer model.Answer
	require.NoError(t, f.db.Where("user_id = ?", user.ID).First(&answer).Error)
	assert.Equal(t, model.AnswerStatusFailed, answer.Status)
	assert.NotEmpty(t, answer.ErrorMessage)

	assert.NoError(t, f.ledger.Audit(user.ID))
}

func TestAnswerService_Ask_ProviderFailure_RefundsFreeSlot(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)
	f.provider.err = llm.ErrProviderTimeout

	_, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
		Query: "防火墙的耐火极限是多少？",
	})
	assert.ErrorIs(t, err, llm.ErrProviderTimeout)

	// 免费名额退回
	typ, ok := f.service.classifier.TypeByID("simple_reference")
	require.True(t, ok)
	remaining, err := f.usage.Remaining(user.ID, typ)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestAnswerService_Ask_FreeLimitReached(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)

	for i := 0; i < 3; i++ {
		_, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
			Query: "防火墙的耐火极限是多少？",
		})
		require.NoError(t, err)
	}

	_, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
		Query: "防火墙的耐火极限是多少？",
	})
	assert.ErrorIs(t, err, ErrFreeLimitReached)

	// 额度拒绝发生在授权阶段,不会烧模型调用
	assert.Equal(t, int64(3), atomic.LoadInt64(&f.provider.calls))
}

func TestAnswerService_Ask_InsufficientBalance(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db, testutil.WithBalance(0.10))

	_, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
		Query: "不同版本防火规范的要求对比分析",
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(0), atomic.LoadInt64(&f.provider.calls))

	var answer model.Answer
	require.NoError(t, f.db.Where("user_id = ?", user.ID).First(&answer).Error)
	assert.Equal(t, model.AnswerStatusFailed, answer.Status)
}

func TestAnswerService_Ask_UnknownModel(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)

	_, err := f.service.Ask(context.Background(), user.ID, &dto.AskRequest{
		Query: "防火墙的耐火极限是多少？",
		Model: "gpt-99",
	})
	assert.ErrorIs(t, err, llm.ErrModelNotFound)
}

func TestAnswerService_History(t *testing.T) {
	f, cleanup := setupAnswerService(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)
	for i := 0; i < 5; i++ {
		testutil.TestAnswer(t, f.db, user.ID)
	}

	answers, total, err := f.service.History(user.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, answers, 3)

	answers, _, err = f.service.History(user.ID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, answers, 2)
}
