package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/database"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/oss"
	"github.com/qs3c/normqa_go_server/internal/pkg/pubsub"
	"github.com/qs3c/normqa_go_server/internal/pkg/queue"
	"github.com/qs3c/normqa_go_server/internal/pkg/vecindex"
	"github.com/qs3c/normqa_go_server/internal/repository"
	"github.com/qs3c/normqa_go_server/internal/service"
	"github.com/qs3c/normqa_go_server/internal/worker"
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

	// OSS 是 worker 的硬依赖，没有它拿不到源文件
	ossClient, err := oss.NewClient(&cfg.OSS)
	if err != nil {
		log.Fatalf("Failed to init OSS client: %v", err)
	}

	registry, err := llm.NewRegistry(cfg.LLM, cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to init llm registry: %v", err)
	}

	jobQueue := queue.NewQueue(rdb, cfg.Queue.VectorizeQueue)
	publisher := pubsub.NewPublisher(rdb)

	docRepo := repository.NewDocumentRepository(db)
	jobRepo := repository.NewJobRepository(db)
	searchService := service.NewSearchService(docRepo, vecindex.New(), registry, cfg)

	processor := worker.NewProcessor(jobRepo, docRepo, ossClient, registry, searchService, publisher, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	workers := cfg.Queue.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	log.Printf("Worker started, max workers: %d", workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.Run(ctx, jobQueue)
		}()
	}

	wg.Wait()
	log.Println("Worker shutdown complete")
}
