package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/api/handler"
	"github.com/qs3c/normqa_go_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	userHandler      *handler.UserHandler
	llmHandler       *handler.LLMHandler
	searchHandler    *handler.SearchHandler
	documentHandler  *handler.DocumentHandler
	modelsHandler    *handler.ModelsHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	llmHandler *handler.LLMHandler,
	searchHandler *handler.SearchHandler,
	documentHandler *handler.DocumentHandler,
	modelsHandler *handler.ModelsHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		userHandler:      userHandler,
		llmHandler:       llmHandler,
		searchHandler:    searchHandler,
		documentHandler:  documentHandler,
		modelsHandler:    modelsHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/verify-email", r.authHandler.VerifyEmail)
			auth.GET("/github", r.authHandler.GithubAuth)
			auth.GET("/github/callback", r.authHandler.GithubCallback)
		}

		// 公开接口 - 模型与费用说明
		api.GET("/models", r.modelsHandler.List)

		llm := api.Group("/llm")
		{
			llm.GET("/cost/guide", r.llmHandler.CostGuide)

			llmAuth := llm.Group("")
			llmAuth.Use(middleware.Auth(r.cfg.JWT.Secret))
			{
				llmAuth.POST("/cost/preview", r.llmHandler.CostPreview)
				llmAuth.POST("/ask", r.llmHandler.Ask)
				llmAuth.GET("/history", r.llmHandler.History)
			}
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户与账本
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.PUT("/profile", r.userHandler.UpdateProfile)
				user.POST("/avatar", r.userHandler.UploadAvatar)
				user.GET("/balance", r.userHandler.GetBalance)
				user.POST("/balance/add", r.userHandler.AddBalance)
				user.GET("/payment-methods", r.userHandler.GetPaymentMethods)
				user.GET("/transactions", r.userHandler.GetTransactions)
				user.GET("/stats", r.userHandler.GetStats)
			}

			// 向量检索
			authenticated.POST("/search", r.searchHandler.Search)
			authenticated.GET("/search/stats", r.searchHandler.Stats)

			// 文档管理
			documents := authenticated.Group("/documents")
			{
				documents.POST("", r.documentHandler.Upload)
				documents.GET("", r.documentHandler.List)
				documents.POST("/:id/vectorize", r.documentHandler.Revectorize)
				documents.GET("/jobs/:id", r.documentHandler.JobStatus)
			}
		}
	}

	return engine
}
