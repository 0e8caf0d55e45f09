package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/caserag/ragengine/internal/api/handlers"
	"github.com/caserag/ragengine/internal/cache"
	cacheredis "github.com/caserag/ragengine/internal/cache/redis"
	"github.com/caserag/ragengine/internal/classifier"
	"github.com/caserag/ragengine/internal/embedding"
	embeddingopenai "github.com/caserag/ragengine/internal/embedding/openai"
	"github.com/caserag/ragengine/internal/generation"
	generationopenai "github.com/caserag/ragengine/internal/generation/openai"
	"github.com/caserag/ragengine/internal/ingestion"
	"github.com/caserag/ragengine/internal/metrics"
	"github.com/caserag/ragengine/internal/middleware/ratelimit"
	"github.com/caserag/ragengine/internal/middleware/security"
	"github.com/caserag/ragengine/internal/middleware/validation"
	"github.com/caserag/ragengine/internal/pipeline"
	"github.com/caserag/ragengine/internal/retrieval"
	"github.com/caserag/ragengine/internal/storage/sqlite"
	"github.com/caserag/ragengine/internal/vector/milvus"
	"github.com/caserag/ragengine/pkg/config"
	appLogger "github.com/caserag/ragengine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ragengine API server")
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var l2 cache.Store
	if cfg.Redis.Enabled {
		redisClient, err := cacheredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		l2 = redisClient
	} else {
		appLogger.Warn("Redis disabled, running with L1 cache only")
	}

	cacheManager, err := cache.NewManager(cfg.Cache.L1MaxSize, l2)
	if err != nil {
		appLogger.Fatal("Failed to create cache manager", zap.Error(err))
	}
	defer cacheManager.Close()

	milvusClient, err := milvus.NewClient(cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Embedding.Dimension)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	provider := embeddingopenai.NewProvider(embeddingopenai.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		QueryModel: cfg.Embedding.QueryModel,
		Dimension:  cfg.Embedding.Dimension,
		TimeoutSec: cfg.Embedding.TimeoutSec,
	})
	cachedProvider := embedding.NewCachedProvider(provider, cacheManager,
		cfg.Cache.EmbeddingTTL(), cfg.Cache.QueryEmbedTTL())
	fallback := embedding.NewFallback(cfg.Embedding.Dimension)

	runner := pipeline.NewRunner(sqliteClient, sqliteClient, cachedProvider, fallback, milvusClient,
		pipeline.RunnerConfig{
			SubBatchSize: cfg.Pipeline.SubBatchSize,
			MaxAttempts:  cfg.Pipeline.MaxAttempts,
			BaseDelay:    time.Duration(cfg.Pipeline.BaseDelayMS) * time.Millisecond,
		})
	scheduler, err := pipeline.NewScheduler(runner, cfg.Pipeline.Workers)
	if err != nil {
		appLogger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	processor := ingestion.NewProcessor(
		sqliteClient, sqliteClient, milvusClient, cacheManager,
		classifier.New(cfg.Classifier.SmallThreshold, cfg.Classifier.MediumThreshold),
		scheduler,
		ingestion.Config{
			ChunkTargetSize: cfg.Chunker.TargetSize,
			ChunkOverlap:    cfg.Chunker.Overlap,
		},
	)

	engine := retrieval.NewEngine(sqliteClient, milvusClient, cachedProvider, cacheManager,
		retrieval.Config{
			DefaultLimit:      cfg.Retrieval.DefaultLimit,
			DefaultThreshold:  cfg.Retrieval.SimilarityThreshold,
			ContextCharBudget: cfg.Retrieval.ContextCharBudget,
			SearchTTL:         cfg.Cache.SearchTTL(),
		})

	generator := generationopenai.NewGenerator(generationopenai.Config{
		APIKey:      cfg.Embedding.APIKey,
		BaseURL:     cfg.Embedding.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	})
	answers := generation.NewService(engine, generator, sqliteClient, generation.Config{
		ContextCharBudget: cfg.Retrieval.ContextCharBudget,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.Server.MaxRequestsPerMinute,
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.Headers(security.HeadersConfig{}))
	app.Use(limiter.Middleware())

	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient, sqliteClient)
	searchHandler := handlers.NewSearchHandler(engine, answers)
	cacheHandler := handlers.NewCacheHandler(cacheManager)
	wsHandler := handlers.NewWebSocketHandler(sqliteClient)

	api := app.Group("/api/v1")
	api.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
	}))

	api.Post("/documents", documentHandler.Upload)
	api.Get("/documents", documentHandler.List)
	api.Get("/documents/:id", documentHandler.Get)
	api.Delete("/documents/:id", documentHandler.Delete)
	api.Post("/documents/:id/reprocess", documentHandler.Reprocess)

	api.Post("/search", searchHandler.HandleSearch)
	api.Post("/answer", searchHandler.HandleAnswer)

	api.Get("/cache/stats", cacheHandler.GetStats)
	api.Post("/cache/invalidate", cacheHandler.Invalidate)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/documents/:id", websocket.New(wsHandler.HandleDocumentStatus))

	app.Get("/metrics", metrics.MetricsHandler())
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()

	// Let in-flight embedding tasks finish before the stores close.
	scheduler.Close()
	appLogger.Info("Server stopped")
}
