package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/pkg/classifier"
)

var ErrModelNotFound = errors.New("模型不存在")

// token 实际用量相对类型均值的波动区间
const (
	varianceLow  = 0.7
	varianceHigh = 1.5
)

// Estimate 费用估算区间。Min <= Max 恒成立，
// 免费类型对任何模型都是零区间。
type Estimate struct {
	Model     string
	MinTokens int
	MaxTokens int
	MinCost   float64
	MaxCost   float64
	Currency  string
}

// Table 模型价格表：美元报价 × 汇率折算为本币
type Table struct {
	models       map[string]config.LLMModelConfig
	exchangeRate float64
	currency     string
}

// NewTable 构建价格表
func NewTable(llm config.LLMConfig, billing config.BillingConfig) *Table {
	models := make(map[string]config.LLMModelConfig, len(llm.Models))
	for _, m := range llm.Models {
		models[m.Name] = m
	}
	return &Table{
		models:       models,
		exchangeRate: billing.ExchangeRate,
		currency:     billing.Currency,
	}
}

// Estimate 按问题类型的平均 token 量和模型价格计算费用区间
func (t *Table) Estimate(typ classifier.TypeInfo, modelName string) (Estimate, error) {
	m, ok := t.models[modelName]
	if !ok {
		return Estimate{}, ErrModelNotFound
	}

	blended := typ.InputTokens + typ.OutputTokens
	est := Estimate{
		Model:     modelName,
		MinTokens: int(float64(blended) * varianceLow),
		MaxTokens: int(float64(blended) * varianceHigh),
		Currency:  t.currency,
	}

	// 免费类型不计费
	if typ.Free {
		return est, nil
	}

	minCost := t.cost(m, float64(typ.InputTokens)*varianceLow, float64(typ.OutputTokens)*varianceLow)
	maxCost := t.cost(m, float64(typ.InputTokens)*varianceHigh, float64(typ.OutputTokens)*varianceHigh)

	est.MinCost = Round(minCost)
	est.MaxCost = Round(maxCost)
	return est, nil
}

// ActualCost 按实测 token 用量结算实际费用
func (t *Table) ActualCost(modelName string, tokensIn, tokensOut int) (float64, error) {
	m, ok := t.models[modelName]
	if !ok {
		return 0, ErrModelNotFound
	}
	return Round(t.cost(m, float64(tokensIn), float64(tokensOut))), nil
}

// HasModel 检查模型是否在价格表中
func (t *Table) HasModel(modelName string) bool {
	_, ok := t.models[modelName]
	return ok
}

// Currency 返回结算货币代码
func (t *Table) Currency() string {
	return t.currency
}

func (t *Table) cost(m config.LLMModelConfig, tokensIn, tokensOut float64) float64 {
	inputUSD := tokensIn / 1_000_000 * m.InputPricePer1M
	outputUSD := tokensOut / 1_000_000 * m.OutputPricePer1M
	return (inputUSD + outputUSD) * t.exchangeRate
}

// Round 金额四舍五入到分
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Format 金额格式化，如 "12.50 ₽"
func Format(v float64, symbol string) string {
	return strings.TrimSpace(fmt.Sprintf("%.2f %s", v, symbol))
}

// EstimateTokens 粗略估算文本的 token 数（词数与字符数的混合）
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	chars := len(text)
	return (words + chars/4) / 2
}
