package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/classifier"
	"github.com/qs3c/normqa_go_server/internal/pkg/pricing"
)

func setupLLMService(t *testing.T) *LLMService {
	t.Helper()

	cfg := billingConfig()
	cfg.LLM = config.LLMConfig{
		DefaultModel: "yandexgpt-lite",
		Models: []config.LLMModelConfig{
			{
				Name:             "yandexgpt-lite",
				DisplayName:      "YandexGPT Lite",
				Provider:         "yandex",
				InputPricePer1M:  0.20,
				OutputPricePer1M: 0.40,
			},
			{
				Name:             "gpt-4o-mini",
				DisplayName:      "GPT-4o mini",
				Provider:         "openai",
				InputPricePer1M:  0.15,
				OutputPricePer1M: 0.60,
			},
		},
	}
	cfg.QuestionTypes = answerQuestionTypes()

	c := classifier.New(cfg.QuestionTypes)
	return NewLLMService(c, pricing.NewTable(cfg.LLM, cfg.Billing), cfg)
}

func TestLLMService_Preview_FreeType(t *testing.T) {
	service := setupLLMService(t)

	resp, err := service.Preview(&dto.PreviewRequest{Query: "防火墙的耐火极限是多少？"})
	require.NoError(t, err)

	require.NotNil(t, resp.Classification)
	assert.Equal(t, "simple_reference", resp.Classification.TypeID)
	assert.True(t, resp.Classification.Free)
	assert.Empty(t, resp.Classification.Recommendation)

	require.NotNil(t, resp.Estimate)
	assert.Equal(t, 0.0, resp.Estimate.MinCost)
	assert.Equal(t, 0.0, resp.Estimate.MaxCost)
}

func TestLLMService_Preview_PaidType(t *testing.T) {
	service := setupLLMService(t)

	resp, err := service.Preview(&dto.PreviewRequest{Query: "不同版本防火规范的要求对比分析"})
	require.NoError(t, err)

	assert.Equal(t, "deep_analysis", resp.Classification.TypeID)
	assert.False(t, resp.Classification.Free)

	est := resp.Estimate
	assert.Equal(t, "yandexgpt-lite", est.Model)
	assert.Equal(t, 5950, est.MinTokens)
	assert.Equal(t, 12750, est.MaxTokens)
	assert.Equal(t, 0.15, est.MinCost)
	assert.Equal(t, 0.33, est.MaxCost)
	assert.Equal(t, "RUB", est.Currency)
	assert.Equal(t, "0.15 ₽ ~ 0.33 ₽", est.Formatted)
}

func TestLLMService_Preview_ExplicitModel(t *testing.T) {
	service := setupLLMService(t)

	resp, err := service.Preview(&dto.PreviewRequest{
		Query: "不同版本防火规范的要求对比分析",
		Model: "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", resp.Estimate.Model)
}

func TestLLMService_Preview_UnknownModel(t *testing.T) {
	service := setupLLMService(t)

	_, err := service.Preview(&dto.PreviewRequest{
		Query: "不同版本防火规范的要求对比分析",
		Model: "gpt-99",
	})
	assert.ErrorIs(t, err, pricing.ErrModelNotFound)
}

func TestLLMService_Preview_LowConfidencePaidRecommendation(t *testing.T) {
	service := setupLLMService(t)

	// 无关键词命中落到兜底免费类型,免费类型不出推荐文案
	resp, err := service.Preview(&dto.PreviewRequest{Query: "这个数值如何确定"})
	require.NoError(t, err)
	assert.True(t, resp.Classification.Confidence < lowConfidenceThreshold)
	assert.True(t, resp.Classification.Free)
	assert.Empty(t, resp.Classification.Recommendation)
}

func TestLLMService_CostGuide(t *testing.T) {
	service := setupLLMService(t)

	guide := service.CostGuide()
	assert.Equal(t, "RUB", guide.Currency)

	require.Len(t, guide.QuestionTypes, 2)
	// 目录按复杂度从低到高
	assert.Equal(t, "simple_reference", guide.QuestionTypes[0].ID)
	assert.Equal(t, "deep_analysis", guide.QuestionTypes[1].ID)
	assert.Equal(t, 8500, guide.QuestionTypes[1].BlendedTokens)

	require.Len(t, guide.Models, 2)
	assert.Equal(t, "yandexgpt-lite", guide.Models[0].Name)
	assert.Equal(t, 0.20, guide.Models[0].InputPricePer1M)
}
