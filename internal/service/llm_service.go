package service

import (
	"fmt"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/classifier"
	"github.com/qs3c/normqa_go_server/internal/pkg/pricing"
)

// 推荐文案的置信度阈值。低置信度不阻断请求，只提示用户先预估费用。
const lowConfidenceThreshold = 0.5

// LLMService 费用说明与预估。预估只做分类和查价，
// 不调用任何外部模型，也不动余额和额度。
type LLMService struct {
	classifier *classifier.Classifier
	pricing    *pricing.Table
	cfg        *config.Config
}

func NewLLMService(c *classifier.Classifier, p *pricing.Table, cfg *config.Config) *LLMService {
	return &LLMService{
		classifier: c,
		pricing:    p,
		cfg:        cfg,
	}
}

// CostGuide 静态费用说明：全部问题类型和模型价格
func (s *LLMService) CostGuide() *dto.CostGuideResponse {
	types := s.classifier.Types()
	typeDocs := make([]dto.QuestionTypeDoc, 0, len(types))
	for _, t := range types {
		typeDocs = append(typeDocs, dto.QuestionTypeDoc{
			ID:             t.ID,
			DisplayName:    t.DisplayName,
			Complexity:     t.Complexity,
			Free:           t.Free,
			FreeDailyLimit: t.FreeDailyLimit,
			BlendedTokens:  t.InputTokens + t.OutputTokens,
			Description:    t.Description,
		})
	}

	modelDocs := make([]dto.ModelDoc, 0, len(s.cfg.LLM.Models))
	for _, m := range s.cfg.LLM.Models {
		modelDocs = append(modelDocs, dto.ModelDoc{
			Name:             m.Name,
			DisplayName:      m.DisplayName,
			Provider:         m.Provider,
			InputPricePer1M:  m.InputPricePer1M,
			OutputPricePer1M: m.OutputPricePer1M,
			Description:      m.Description,
		})
	}

	return &dto.CostGuideResponse{
		Currency:      s.cfg.Billing.Currency,
		QuestionTypes: typeDocs,
		Models:        modelDocs,
	}
}

// Preview 对查询分类并给出费用区间,不执行回答
func (s *LLMService) Preview(req *dto.PreviewRequest) (*dto.PreviewResponse, error) {
	result := s.classifier.Classify(req.Query)

	modelName := req.Model
	if modelName == "" {
		modelName = s.cfg.LLM.DefaultModel
	}

	est, err := s.pricing.Estimate(result.Type, modelName)
	if err != nil {
		return nil, err
	}

	return &dto.PreviewResponse{
		Classification: s.BuildClassificationInfo(result),
		Estimate:       s.BuildEstimateInfo(est),
	}, nil
}

// BuildClassificationInfo 组装分类结果,低置信度附带推荐文案
func (s *LLMService) BuildClassificationInfo(result classifier.Result) *dto.ClassificationInfo {
	info := &dto.ClassificationInfo{
		TypeID:         result.Type.ID,
		DisplayName:    result.Type.DisplayName,
		Complexity:     result.Type.Complexity,
		Confidence:     result.Confidence,
		Free:           result.Type.Free,
		FreeDailyLimit: result.Type.FreeDailyLimit,
	}
	if result.Confidence < lowConfidenceThreshold && !result.Type.Free {
		info.Recommendation = "分类置信度较低，建议先通过费用预估确认问题类型后再提问"
	}
	return info
}

// BuildEstimateInfo 组装费用区间展示
func (s *LLMService) BuildEstimateInfo(est pricing.Estimate) *dto.EstimateInfo {
	sym := s.cfg.Billing.CurrencySymbol
	formatted := pricing.Format(est.MaxCost, sym)
	if est.MinCost != est.MaxCost {
		formatted = fmt.Sprintf("%s ~ %s", pricing.Format(est.MinCost, sym), pricing.Format(est.MaxCost, sym))
	}
	return &dto.EstimateInfo{
		Model:     est.Model,
		MinTokens: est.MinTokens,
		MaxTokens: est.MaxTokens,
		MinCost:   est.MinCost,
		MaxCost:   est.MaxCost,
		Currency:  est.Currency,
		Formatted: formatted,
	}
}
