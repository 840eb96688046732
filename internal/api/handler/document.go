package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/normqa_go_server/internal/api/middleware"
	"github.com/qs3c/normqa_go_server/internal/pkg/response"
	"github.com/qs3c/normqa_go_server/internal/service"
)

// 文档最大 20MB，规范文本远小于这个值
const maxDocumentSize = 20 * 1024 * 1024

type DocumentHandler struct {
	documentService *service.DocumentService
}

func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload 上传规范文档并排向量化任务
// POST /api/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.ParamError(c, "请选择文件")
		return
	}
	if file.Size > maxDocumentSize {
		response.ParamError(c, "文件大小不能超过20MB")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.ServerError(c, "文件读取失败")
		return
	}
	defer f.Close()

	title := c.PostForm("title")
	resp, err := h.documentService.Upload(c.Request.Context(), userID, title, file.Filename, f)
	if err != nil {
		if errors.Is(err, service.ErrEmptyDocument) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "上传失败")
		return
	}

	response.SuccessWithMessage(c, "文档已入队向量化", resp)
}

// List 文档列表
// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documentService.List()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

// Revectorize 为文档重新生成向量
// POST /api/documents/:id/vectorize
func (h *DocumentHandler) Revectorize(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	documentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的文档 ID")
		return
	}

	embeddingModel := c.Query("embedding_model")
	resp, err := h.documentService.Revectorize(c.Request.Context(), documentID, userID, embeddingModel)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "文档已入队向量化", resp)
}

// JobStatus 查询向量化任务状态
// GET /api/documents/jobs/:id
func (h *DocumentHandler) JobStatus(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的任务 ID")
		return
	}

	resp, err := h.documentService.JobStatus(jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, resp)
}
