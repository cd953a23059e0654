package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	databaseapi "github.com/wzyjerry/llm-arena/internal/api/database"
	"github.com/wzyjerry/llm-arena/internal/api/evaluate"
	"github.com/wzyjerry/llm-arena/internal/api/proxy"
	"github.com/wzyjerry/llm-arena/internal/service"
	"go.uber.org/zap"
)

// Handlers holds the stateful handlers of the web API.
type Handlers struct {
	Evaluate *evaluate.Handler
	Proxy    *proxy.Handler
	// RateLimit guards /api/evaluate when set.
	RateLimit *service.RateLimit
}

// SetupDatabaseRoutes configures database service routes
func SetupDatabaseRoutes(r *gin.Engine) {
	r.Use(CORSMiddleware())
	setupHealth(r, "database-service", "LLM Arena Database Service is running")
	databaseapi.SetupDatabaseRoutes(r)
}

// SetupRouter configures all routes
func SetupRouter(r *gin.Engine, h Handlers) {
	// CORS middleware
	r.Use(CORSMiddleware())

	setupHealth(r, "web-api", "LLM Arena Web API is running")

	databaseapi.SetupDatabaseRoutes(r)

	api := r.Group("/api")
	{
		evaluateHandlers := []gin.HandlerFunc{h.Evaluate.Evaluate}
		if h.RateLimit != nil {
			evaluateHandlers = append([]gin.HandlerFunc{RateLimitMiddleware(h.RateLimit)}, evaluateHandlers...)
		}
		api.POST("/evaluate", evaluateHandlers...)

		// Model call proxy
		api.POST("/model-call", h.Proxy.ModelCall)
		api.GET("/model-call/status/:model_name", h.Proxy.GetModelConcurrencyStatus)
	}
}

func setupHealth(r *gin.Engine, name, message string) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": message,
			"version": "1.0.0",
		})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   name,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}

// CORSMiddleware provides CORS support
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware rejects clients that exceed rl with 429.
func RateLimitMiddleware(rl *service.RateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			zap.L().Warn("Rate limit exceeded", zap.String("client_ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": "Too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
