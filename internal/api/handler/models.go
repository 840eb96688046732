package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/pkg/response"
)

type ModelsHandler struct {
	cfg *config.Config
}

func NewModelsHandler(cfg *config.Config) *ModelsHandler {
	return &ModelsHandler{cfg: cfg}
}

// List 获取可用的生成模型与向量模型列表
// GET /api/models
func (h *ModelsHandler) List(c *gin.Context) {
	llmModels := make([]map[string]interface{}, len(h.cfg.LLM.Models))
	for i, m := range h.cfg.LLM.Models {
		llmModels[i] = map[string]interface{}{
			"name":         m.Name,
			"display_name": m.DisplayName,
			"provider":     m.Provider,
			"description":  m.Description,
			"available":    m.APIKey != "",
		}
	}

	embModels := make([]map[string]interface{}, len(h.cfg.Embedding.Models))
	for i, m := range h.cfg.Embedding.Models {
		embModels[i] = map[string]interface{}{
			"name":       m.Name,
			"provider":   m.Provider,
			"dimensions": m.Dimensions,
			"available":  m.APIKey != "",
		}
	}

	response.Success(c, gin.H{
		"llm_models":       llmModels,
		"embedding_models": embModels,
		"default_model":    h.cfg.LLM.DefaultModel,
	})
}
