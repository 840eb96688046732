package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/response"
	"github.com/qs3c/normqa_go_server/internal/pkg/vecindex"
	"github.com/qs3c/normqa_go_server/internal/service"
)

type SearchHandler struct {
	searchService *service.SearchService
}

func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 向量检索
// POST /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.searchService.Search(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, vecindex.ErrModelNotFound), errors.Is(err, llm.ErrModelNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, llm.ErrProviderTimeout):
			response.ProviderTimeoutError(c, err.Error())
		case errors.Is(err, llm.ErrProviderFailed):
			response.ProviderError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// Stats 语料库统计
// GET /api/search/stats
func (h *SearchHandler) Stats(c *gin.Context) {
	stats, err := h.searchService.Stats()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, stats)
}
