package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/classifier"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/pricing"
	"github.com/qs3c/normqa_go_server/internal/pkg/vecindex"
	"github.com/qs3c/normqa_go_server/internal/repository"
	"github.com/qs3c/normqa_go_server/internal/service"
	"github.com/qs3c/normqa_go_server/internal/testutil"
)

// fakeProvider 可编程的生成实现
type fakeProvider struct {
	text      string
	tokensIn  int
	tokensOut int
	err       error
}

func (f *fakeProvider) Generate(ctx context.Context, system, prompt string) (*llm.GenerateResult, error) {
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

func llmHandlerConfig() *config.Config {
	cfg := userHandlerConfig()
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
	cfg.QuestionTypes = []config.QuestionTypeConfig{
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
	return cfg
}

type llmFixture struct {
	handler  *LLMHandler
	provider *fakeProvider
	db       *gorm.DB
}

func setupLLMHandler(t *testing.T) (*llmFixture, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	cfg := llmHandlerConfig()
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

	ledger := service.NewLedgerService(userRepo, txnRepo, cfg)
	usage := service.NewUsageService(usageRepo, c)
	search := service.NewSearchService(docRepo, index, registry, cfg)
	llmSvc := service.NewLLMService(c, table, cfg)
	answerSvc := service.NewAnswerService(answerRepo, c, table, ledger, usage, search, registry, nil, llmSvc, cfg)

	handler := NewLLMHandler(llmSvc, answerSvc)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return &llmFixture{handler: handler, provider: provider, db: db}, cleanup
}

func TestLLMHandler_CostGuide(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	router := gin.New()
	router.GET("/cost/guide", f.handler.CostGuide)

	req := httptest.NewRequest("GET", "/cost/guide", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "RUB", data["currency"])
	types := data["question_types"].([]interface{})
	assert.Len(t, types, 2)
	models := data["models"].([]interface{})
	assert.Len(t, models, 1)
}

func TestLLMHandler_CostPreview_Paid(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/cost/preview", f.handler.CostPreview)

	w := performRequest(router, "POST", "/cost/preview", dto.PreviewRequest{
		Query: "不同版本防火规范的要求对比分析",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)

	data := resp.Data.(map[string]interface{})
	classification := data["classification"].(map[string]interface{})
	assert.Equal(t, "deep_analysis", classification["type_id"])

	estimate := data["estimate"].(map[string]interface{})
	assert.Equal(t, "yandexgpt-lite", estimate["model"])
	assert.Equal(t, 0.15, estimate["min_cost"])
	assert.Equal(t, 0.33, estimate["max_cost"])
}

func TestLLMHandler_CostPreview_UnknownModel(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/cost/preview", f.handler.CostPreview)

	w := performRequest(router, "POST", "/cost/preview", dto.PreviewRequest{
		Query: "不同版本防火规范的要求对比分析",
		Model: "gpt-99",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
}

func TestLLMHandler_CostPreview_QueryTooShort(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/cost/preview", f.handler.CostPreview)

	w := performRequest(router, "POST", "/cost/preview", dto.PreviewRequest{Query: "a"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLLMHandler_Ask_Success(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.POST("/ask", f.handler.Ask)

	w := performRequest(router, "POST", "/ask", dto.AskRequest{
		Query: "防火墙的耐火极限是多少？",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Contains(t, data["answer"], "REI 150")
	sources := data["sources"].([]interface{})
	assert.Len(t, sources, 1)
	assert.Equal(t, float64(2), data["remaining_free"])
}

func TestLLMHandler_Ask_FreeLimitReached(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.POST("/ask", f.handler.Ask)

	for i := 0; i < 3; i++ {
		w := performRequest(router, "POST", "/ask", dto.AskRequest{Query: "防火墙的耐火极限是多少？"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := performRequest(router, "POST", "/ask", dto.AskRequest{Query: "防火墙的耐火极限是多少？"})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, resp.Success)
}

func TestLLMHandler_Ask_InsufficientBalance(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db, testutil.WithBalance(0.10))

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.POST("/ask", f.handler.Ask)

	w := performRequest(router, "POST", "/ask", dto.AskRequest{
		Query: "不同版本防火规范的要求对比分析",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.False(t, resp.Success)
}

func TestLLMHandler_Ask_ProviderFailed(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)
	f.provider.err = llm.ErrProviderFailed

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.POST("/ask", f.handler.Ask)

	w := performRequest(router, "POST", "/ask", dto.AskRequest{Query: "防火墙的耐火极限是多少？"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestLLMHandler_Ask_ProviderTimeout(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)
	f.provider.err = llm.ErrProviderTimeout

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.POST("/ask", f.handler.Ask)

	w := performRequest(router, "POST", "/ask", dto.AskRequest{Query: "防火墙的耐火极限是多少？"})

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestLLMHandler_Ask_UnknownModel(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.POST("/ask", f.handler.Ask)

	w := performRequest(router, "POST", "/ask", dto.AskRequest{
		Query: "防火墙的耐火极限是多少？",
		Model: "gpt-99",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLLMHandler_Ask_Unauthorized(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	router := gin.New()
	router.POST("/ask", f.handler.Ask)

	w := performRequest(router, "POST", "/ask", dto.AskRequest{Query: "防火墙的耐火极限是多少？"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLLMHandler_History(t *testing.T) {
	f, cleanup := setupLLMHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, f.db)
	for i := 0; i < 5; i++ {
		testutil.TestAnswer(t, f.db, user.ID)
	}

	router := gin.New()
	router.Use(mockAuth(user.ID))
	router.GET("/history", f.handler.History)

	req := httptest.NewRequest("GET", "/history?page=1&page_size=3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(5), data["total"])
	items := data["items"].([]interface{})
	assert.Len(t, items, 3)
}
