package proxy

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/redis"
	"github.com/wzyjerry/llm-arena/internal/provider"
	"github.com/wzyjerry/llm-arena/internal/service"
	"go.uber.org/zap"
)

// SlotCounter reports how many concurrency slots a model is using.
type SlotCounter interface {
	GetCurrentConcurrency(ctx context.Context, key string) (int, error)
}

// Handler serves single model calls and their slot status.
type Handler struct {
	resolver       service.Resolver
	slots          SlotCounter
	maxConcurrency int
}

// NewHandler creates a handler. slots may be nil when redis is not
// available; status requests then report the failure.
func NewHandler(resolver service.Resolver, slots SlotCounter, maxConcurrency int) *Handler {
	return &Handler{
		resolver:       resolver,
		slots:          slots,
		maxConcurrency: maxConcurrency,
	}
}

// ModelCall performs one non-streaming completion. Model failures are
// reported in the body with success=false.
func (h *Handler) ModelCall(c *gin.Context) {
	var req model.ModelCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zap.L().Error("Failed to bind model call request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	zap.L().Info("Model call request received",
		zap.String("model", req.Model),
		zap.Int("user_message_len", len(req.UserMessage)))

	adapter, err := h.resolver.Adapter(req.Model)
	if err != nil {
		c.JSON(http.StatusOK, model.ModelCallResponse{Success: false, Error: err.Error()})
		return
	}

	completion, err := adapter.Complete(c.Request.Context(), provider.Prompt{
		System: req.SystemPrompt,
		User:   req.UserMessage,
	})
	if err != nil {
		zap.L().Error("Model call failed",
			zap.String("model", req.Model),
			zap.Error(err))
		c.JSON(http.StatusOK, model.ModelCallResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.ModelCallResponse{
		Success: true,
		Content: completion.Text,
		Metrics: &completion.Timing,
	})
}

// GetModelConcurrencyStatus returns model concurrency status
func (h *Handler) GetModelConcurrencyStatus(c *gin.Context) {
	modelName := c.Param("model_name")
	status := model.ConcurrencyStatus{
		Model:          modelName,
		MaxConcurrency: h.maxConcurrency,
	}

	if h.slots == nil {
		status.Error = "Redis not configured"
		c.JSON(http.StatusOK, status)
		return
	}

	current, err := h.slots.GetCurrentConcurrency(c.Request.Context(), redis.SlotKey(modelName))
	if err != nil {
		zap.L().Warn("Failed to read concurrency",
			zap.String("model", modelName),
			zap.Error(err))
		status.Error = "Redis connection failed"
		c.JSON(http.StatusOK, status)
		return
	}

	status.CurrentConcurrency = current
	status.AvailableSlots = max(0, h.maxConcurrency-current)
	c.JSON(http.StatusOK, status)
}
