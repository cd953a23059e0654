package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/api"
	"github.com/wzyjerry/llm-arena/internal/api/evaluate"
	"github.com/wzyjerry/llm-arena/internal/api/proxy"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/config"
	"github.com/wzyjerry/llm-arena/internal/pkg/logger"
	"github.com/wzyjerry/llm-arena/internal/pkg/redis"
	"github.com/wzyjerry/llm-arena/internal/provider"
	"github.com/wzyjerry/llm-arena/internal/repository"
	"github.com/wzyjerry/llm-arena/internal/scoring"
	"github.com/wzyjerry/llm-arena/internal/service"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting LLM Arena Web API")
	ctx := context.Background()

	// Initialize database
	if err := repository.InitDB(cfg.DatabaseService.DatabaseURL); err != nil {
		zap.L().Fatal("Failed to initialize database",
			zap.Error(err))
	}
	defer repository.Close()

	if err := repository.SeedCatalog(catalogModels(cfg)); err != nil {
		zap.L().Fatal("Failed to seed model catalog",
			zap.Error(err))
	}

	registry, err := provider.NewRegistryFromConfig(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to create model backends",
			zap.Error(err))
	}

	// Initialize Redis (optional)
	var slots proxy.SlotCounter
	rdb, err := redis.New(ctx, cfg)
	if err != nil {
		logger.Warn("Redis initialization failed, concurrency slots will be disabled",
			zap.Error(err))
	} else {
		defer rdb.Close()
		slots = rdb
		if cfg.Evaluation.UseSlots {
			registry.UseSlots(rdb, cfg.RedisService.MaxConcurrency, cfg.SlotWait())
		}
	}

	evaluator := service.NewEvaluator(registry, newScorer(cfg, registry), cfg.ModelTimeout())

	var rateLimit *service.RateLimit
	if n := cfg.Evaluation.RateLimitPerMinute; n > 0 {
		rateLimit = service.NewRateLimit(time.Minute, n)
		go sweep(rateLimit)
	}

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	// Setup routes
	api.SetupRouter(r, api.Handlers{
		Evaluate:  evaluate.NewHandler(evaluator),
		Proxy:     proxy.NewHandler(registry, slots, cfg.RedisService.MaxConcurrency),
		RateLimit: rateLimit,
	})

	// Print startup info
	fmt.Println(strings.Repeat("=", 61))
	fmt.Println("🌐 Starting Web API Service")
	fmt.Println(strings.Repeat("=", 61))
	fmt.Printf("📊 Service: LLM Arena Web API\n")
	fmt.Printf("🌐 URL: http://%s\n", cfg.GetWebServiceAddr())
	fmt.Printf("💾 Database: %s\n", cfg.DatabaseService.DatabaseURL)
	fmt.Printf("🤖 Backends: %v\n", registry.Families())
	fmt.Println(strings.Repeat("=", 61))

	// Start server
	if err := r.Run(cfg.GetWebServiceAddr()); err != nil {
		zap.L().Fatal("Failed to start server",
			zap.Error(err))
	}
}

func catalogModels(cfg *config.Config) []model.CatalogModel {
	out := make([]model.CatalogModel, 0, len(cfg.Catalog))
	for _, e := range cfg.Catalog {
		out = append(out, model.CatalogModel{Value: e.Value, Label: e.Label, Category: e.Category})
	}
	return out
}

// newScorer wires the metrics that have a backend. Missing ones fail per
// request with a scoring error instead of stopping the service.
func newScorer(cfg *config.Config, registry *provider.Registry) *scoring.Scorer {
	var embedder scoring.Embedder
	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		embedder = scoring.NewOpenAIEmbedder(key, cfg.Providers.OpenAI.BaseURL, cfg.Scoring.EmbeddingModel)
	} else {
		zap.L().Warn("No OpenAI key, COSINE_SIMILARITY is unavailable")
	}

	var judge *scoring.Judge
	if adapter, err := registry.Adapter(cfg.Scoring.JudgeModel); err != nil {
		zap.L().Warn("Judge model unavailable, LLM_JUDGE is unavailable",
			zap.String("judge_model", cfg.Scoring.JudgeModel),
			zap.Error(err))
	} else {
		judge = scoring.NewJudge(adapter)
	}

	return scoring.NewScorer(embedder, judge)
}

func sweep(rl *service.RateLimit) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.Sweep()
	}
}
