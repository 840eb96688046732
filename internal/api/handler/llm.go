package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/normqa_go_server/internal/api/middleware"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/pricing"
	"github.com/qs3c/normqa_go_server/internal/pkg/response"
	"github.com/qs3c/normqa_go_server/internal/service"
)

type LLMHandler struct {
	llmService    *service.LLMService
	answerService *service.AnswerService
}

func NewLLMHandler(llmService *service.LLMService, answerService *service.AnswerService) *LLMHandler {
	return &LLMHandler{
		llmService:    llmService,
		answerService: answerService,
	}
}

// CostGuide 静态费用说明
// GET /api/llm/cost/guide
func (h *LLMHandler) CostGuide(c *gin.Context) {
	response.Success(c, h.llmService.CostGuide())
}

// CostPreview 费用预估（分类 + 区间估价，不执行回答）
// POST /api/llm/cost/preview
func (h *LLMHandler) CostPreview(c *gin.Context) {
	var req dto.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.llmService.Preview(&req)
	if err != nil {
		if errors.Is(err, pricing.ErrModelNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, resp)
}

// Ask 问答
// POST /api/llm/ask
func (h *LLMHandler) Ask(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.answerService.Ask(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFreeLimitReached):
			response.QuotaError(c, err.Error())
		case errors.Is(err, service.ErrInsufficientBalance):
			response.BalanceError(c, err.Error())
		case errors.Is(err, llm.ErrProviderTimeout):
			response.ProviderTimeoutError(c, err.Error())
		case errors.Is(err, llm.ErrProviderFailed):
			response.ProviderError(c, err.Error())
		case errors.Is(err, llm.ErrModelNotFound), errors.Is(err, pricing.ErrModelNotFound):
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// History 问答历史（分页）
// GET /api/llm/history
func (h *LLMHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)

	answers, total, err := h.answerService.History(userID, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, answers)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}
