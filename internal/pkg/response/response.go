package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 默认错误消息
var defaultMessages = map[int]string{
	http.StatusBadRequest:          "参数错误",
	http.StatusUnauthorized:        "认证失败",
	http.StatusPaymentRequired:     "余额不足",
	http.StatusForbidden:           "权限不足",
	http.StatusNotFound:            "资源不存在",
	http.StatusTooManyRequests:     "今日免费额度已用完",
	http.StatusBadGateway:          "上游模型调用失败",
	http.StatusGatewayTimeout:      "上游模型响应超时",
	http.StatusInternalServerError: "服务器内部错误",
}

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "success",
		Data: PageData{
			Total:    total,
			Page:     page,
			PageSize: pageSize,
			Items:    items,
		},
	})
}

// Error 错误响应
func Error(c *gin.Context, status int, message string) {
	if message == "" {
		message = defaultMessages[status]
	}
	c.JSON(status, Response{
		Success: false,
		Message: message,
	})
}

// ParamError 参数错误 (400)
func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// AuthError 认证失败 (401)
func AuthError(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// BalanceError 余额不足 (402)
func BalanceError(c *gin.Context, message string) {
	Error(c, http.StatusPaymentRequired, message)
}

// PermissionError 权限不足 (403)
func PermissionError(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// NotFoundError 资源不存在 (404)
func NotFoundError(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// QuotaError 免费额度用完 (429)
func QuotaError(c *gin.Context, message string) {
	Error(c, http.StatusTooManyRequests, message)
}

// ProviderError 上游模型失败 (502)
func ProviderError(c *gin.Context, message string) {
	Error(c, http.StatusBadGateway, message)
}

// ProviderTimeoutError 上游模型超时 (504)
func ProviderTimeoutError(c *gin.Context, message string) {
	Error(c, http.StatusGatewayTimeout, message)
}

// ServerError 服务器错误 (500)
func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
