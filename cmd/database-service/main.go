package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/api"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/config"
	"github.com/wzyjerry/llm-arena/internal/pkg/logger"
	"github.com/wzyjerry/llm-arena/internal/repository"
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

	logger.Info("Starting LLM Arena Database Service")

	// Initialize database
	if err := repository.InitDB(cfg.DatabaseService.DatabaseURL); err != nil {
		zap.L().Fatal("Failed to initialize database",
			zap.Error(err))
	}
	defer repository.Close()

	catalog := make([]model.CatalogModel, 0, len(cfg.Catalog))
	for _, e := range cfg.Catalog {
		catalog = append(catalog, model.CatalogModel{Value: e.Value, Label: e.Label, Category: e.Category})
	}
	if err := repository.SeedCatalog(catalog); err != nil {
		zap.L().Fatal("Failed to seed model catalog",
			zap.Error(err))
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	// Setup database API routes
	api.SetupDatabaseRoutes(r)

	// Print startup info
	fmt.Println(strings.Repeat("=", 61))
	fmt.Println("🚀 Starting Database Service")
	fmt.Println(strings.Repeat("=", 61))
	fmt.Printf("📊 Service: LLM Arena Database API\n")
	fmt.Printf("🌐 URL: http://%s\n", cfg.GetDatabaseServiceAddr())
	fmt.Printf("💾 Database: %s\n", cfg.DatabaseService.DatabaseURL)
	fmt.Println(strings.Repeat("=", 61))

	// Start HTTP server
	if err := r.Run(cfg.GetDatabaseServiceAddr()); err != nil {
		zap.L().Fatal("Failed to start server",
			zap.Error(err))
	}
}
