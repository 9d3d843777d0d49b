package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/api/handlers"
	"github.com/research-agent/backend/internal/cache/redis"
	"github.com/research-agent/backend/internal/confidence"
	"github.com/research-agent/backend/internal/evaluation"
	"github.com/research-agent/backend/internal/gateway"
	"github.com/research-agent/backend/internal/llm"
	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/internal/middleware/ratelimit"
	"github.com/research-agent/backend/internal/middleware/security"
	"github.com/research-agent/backend/internal/middleware/validation"
	"github.com/research-agent/backend/internal/session"
	"github.com/research-agent/backend/internal/storage/sqlite"
	"github.com/research-agent/backend/pkg/config"
	appLogger "github.com/research-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(appLogger.Config{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPath:       cfg.Logging.OutputPath,
		Service:          cfg.Logging.Service,
		SampleInitial:    cfg.Logging.SampleInitial,
		SampleThereafter: cfg.Logging.SampleThereafter,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting research evaluation API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	healthDeps := map[string]handlers.Pinger{"sqlite": sqliteClient}

	var redisClient *redis.Client
	var remoteCache llm.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, using local embedding cache only", zap.Error(err))
		} else {
			defer redisClient.Close()
			remoteCache = redisClient
			healthDeps["redis"] = redisClient
		}
	}

	llmClient := llm.NewClient(llm.ClientConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		EmbeddingRPS:   cfg.LLM.EmbeddingRPS,
		EmbeddingBurst: cfg.LLM.EmbeddingBurst,
	})

	embedder, err := llm.NewCachedEmbedder(
		llmClient,
		llmClient.EmbeddingModel(),
		cfg.LLM.EmbeddingCacheSize,
		remoteCache,
		time.Duration(cfg.Redis.EmbeddingTTLMinutes)*time.Minute,
	)
	if err != nil {
		appLogger.Fatal("Failed to create embedding cache", zap.Error(err))
	}

	evalCfg := evaluationConfig(cfg)
	panel := evaluation.NewPanel(llmClient, evalCfg)
	escalator := evaluation.NewEscalator(llmClient, evalCfg)

	gw := gateway.New(gatewayConfig(cfg), gateway.Evaluators{
		Plan:       evaluation.NewPlanEvaluator(panel, escalator, evalCfg),
		Retrieval:  evaluation.NewRetrievalEvaluator(panel, evalCfg),
		Answer:     evaluation.NewAnswerEvaluator(panel, evalCfg),
		Confidence: confidence.NewScorer(llmClient, embedder, confidenceConfig(cfg)),
	}, sqliteClient)
	runner := session.NewRunner(gw)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	allowOrigins := "*"
	if len(cfg.Server.AllowedOrigins) > 0 {
		allowOrigins = strings.Join(cfg.Server.AllowedOrigins, ", ")
	}

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.MaxRequestsPerMinute,
		Logger:               appLogger.Named("ratelimit"),
	})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(security.HeadersMiddleware(security.HeadersConfig{IsDevelopment: cfg.Server.Development}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	evaluationHandler := handlers.NewEvaluationHandler(gw, runner)
	recordsHandler := handlers.NewRecordsHandler(gw)
	healthHandler := handlers.NewHealthHandler(healthDeps)

	api := app.Group("/api/v1")

	api.Get("/health", healthHandler.Health)
	api.Get("/metrics", metrics.MetricsHandler())

	evaluate := api.Group("", rateLimiter.Middleware(), validation.Middleware(validation.Config{
		Logger: appLogger.Named("validation"),
	}))

	evaluate.Post("/evaluate/plan", evaluationHandler.EvaluatePlan)
	evaluate.Post("/evaluate/retrieval", evaluationHandler.EvaluateRetrieval)
	evaluate.Post("/evaluate/answer", evaluationHandler.EvaluateAnswer)
	evaluate.Post("/evaluate/confidence", evaluationHandler.ScoreConfidence)
	evaluate.Post("/sessions", evaluationHandler.RunSession)

	evaluate.Get("/evaluations", recordsHandler.ListRecords)
	evaluate.Get("/evaluations/stats", recordsHandler.GetStats)
	evaluate.Get("/evaluations/:id", recordsHandler.GetRecord)

	if redisClient != nil {
		cacheHandler := handlers.NewCacheHandler(redisClient)
		evaluate.Delete("/cache/embeddings", cacheHandler.InvalidateEmbeddings)
	}

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
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Warn("Server shutdown incomplete", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func evaluationConfig(cfg *config.Config) evaluation.Config {
	return evaluation.Config{
		PanelModel:             cfg.LLM.Model,
		EscalationModel:        cfg.LLM.EscalationModel,
		Temperature:            cfg.LLM.Temperature,
		MaxTokens:              cfg.LLM.MaxTokens,
		PassThreshold:          cfg.Evaluation.PassThreshold,
		SevereFailureThreshold: cfg.Evaluation.SevereFailureThreshold,
		MaxAttempts:            cfg.Evaluation.MaxAttempts,
		ConfidenceThreshold:    cfg.Evaluation.ConfidenceThreshold,
		DisagreementThreshold:  cfg.Evaluation.DisagreementThreshold,
		BorderlineMargin:       cfg.Evaluation.BorderlineMargin,
		MaxConcurrentJudges:    cfg.Evaluation.MaxConcurrentJudges,
		DimensionThresholds:    cfg.Evaluation.DimensionThresholds,
	}
}

func confidenceConfig(cfg *config.Config) confidence.Config {
	c := confidence.DefaultConfig()
	c.Model = cfg.LLM.Model
	c.Temperature = cfg.LLM.Temperature
	c.MaxTokens = cfg.LLM.MaxTokens
	c.EntailmentWeight = cfg.Confidence.EntailmentWeight
	c.SUScoreWeight = cfg.Confidence.SUScoreWeight
	c.SourceCountWeight = cfg.Confidence.SourceCountWeight
	c.SimilarityThreshold = cfg.Confidence.SimilarityThreshold
	c.MaxChunkChars = cfg.Confidence.MaxChunkChars
	c.MinChunkChars = cfg.Confidence.MinChunkChars
	c.EmbeddingConcurrency = cfg.Confidence.EmbeddingConcurrency
	c.FallbackClaimChars = cfg.Confidence.FallbackClaimChars
	return c
}

func gatewayConfig(cfg *config.Config) gateway.Config {
	return gateway.Config{
		PlanTimeout:       time.Duration(cfg.Gateway.PlanTimeoutSec) * time.Second,
		RetrievalTimeout:  time.Duration(cfg.Gateway.RetrievalTimeoutSec) * time.Second,
		AnswerTimeout:     time.Duration(cfg.Gateway.AnswerTimeoutSec) * time.Second,
		ConfidenceTimeout: time.Duration(cfg.Gateway.ConfidenceTimeoutSec) * time.Second,
	}
}
