package main

import (
	"context"
	"fmt"
	"log"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/api"
	"github.com/qs3c/normqa_go_server/internal/api/handler"
	"github.com/qs3c/normqa_go_server/internal/database"
	"github.com/qs3c/normqa_go_server/internal/pkg/classifier"
	"github.com/qs3c/normqa_go_server/internal/pkg/cron"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/oauth"
	"github.com/qs3c/normqa_go_server/internal/pkg/oss"
	"github.com/qs3c/normqa_go_server/internal/pkg/pricing"
	"github.com/qs3c/normqa_go_server/internal/pkg/pubsub"
	"github.com/qs3c/normqa_go_server/internal/pkg/queue"
	"github.com/qs3c/normqa_go_server/internal/pkg/vecindex"
	"github.com/qs3c/normqa_go_server/internal/pkg/ws"
	"github.com/qs3c/normqa_go_server/internal/repository"
	"github.com/qs3c/normqa_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化队列与进度推送
	jobQueue := queue.NewQueue(rdb, cfg.Queue.VectorizeQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)

	// 初始化 WebSocket Hub，并把 redis 进度消息转发给在线用户
	wsHub := ws.NewHub()
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			wsHub.SendToUser(msg.UserID, &ws.Message{Type: msg.Type, Data: msg})
		})
		if err != nil {
			log.Printf("进度订阅退出: %v", err)
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化领域组件
	qc := classifier.New(cfg.QuestionTypes)
	priceTable := pricing.NewTable(cfg.LLM, cfg.Billing)
	registry, err := llm.NewRegistry(cfg.LLM, cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to init llm registry: %v", err)
	}
	index := vecindex.New()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	jobRepo := repository.NewJobRepository(db)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, cfg)
	ledgerService := service.NewLedgerService(userRepo, txnRepo, cfg)
	usageService := service.NewUsageService(usageRepo, qc)
	userService := service.NewUserService(userRepo, txnRepo, answerRepo, usageService, ossClient, cfg)
	llmService := service.NewLLMService(qc, priceTable, cfg)
	searchService := service.NewSearchService(docRepo, index, registry, cfg)
	answerService := service.NewAnswerService(
		answerRepo, qc, priceTable, ledgerService, usageService,
		searchService, registry, publisher, llmService, cfg,
	)
	documentService := service.NewDocumentService(docRepo, jobRepo, ossClient, jobQueue, cfg)

	// 启动时装载向量索引
	if err := searchService.LoadIndexes(); err != nil {
		log.Printf("Warning: Failed to load vector indexes: %v", err)
	}

	// 定时任务：预扣过期释放 + 额度计数清理
	cronService := cron.NewService(ledgerService, usageService)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	stateStore := oauth.NewStateStore(rdb)
	authHandler := handler.NewAuthHandler(authService, stateStore)
	userHandler := handler.NewUserHandler(userService, ledgerService)
	llmHandler := handler.NewLLMHandler(llmService, answerService)
	searchHandler := handler.NewSearchHandler(searchService)
	documentHandler := handler.NewDocumentHandler(documentService)
	modelsHandler := handler.NewModelsHandler(cfg)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		userHandler,
		llmHandler,
		searchHandler,
		documentHandler,
		modelsHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
