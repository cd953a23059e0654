package evaluate

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/logger"
	"github.com/wzyjerry/llm-arena/internal/service"
	"github.com/wzyjerry/llm-arena/internal/stream"
	"go.uber.org/zap"
)

// Runner runs one evaluation onto a publisher.
type Runner interface {
	Run(ctx context.Context, req model.EvaluationRequest, pub service.Publisher) error
}

// Handler serves POST /api/evaluate.
type Handler struct {
	runner Runner
	log    *zap.Logger
}

func NewHandler(runner Runner) *Handler {
	return &Handler{
		runner: runner,
		log:    logger.Named("evaluate"),
	}
}

// Evaluate validates the request and streams every model's progress as
// server-sent events. The stream stops early if the client disconnects.
func (h *Handler) Evaluate(c *gin.Context) {
	var req model.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if err := req.Normalize(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	h.log.Info("Evaluation request received",
		zap.Strings("models", req.SelectedModels),
		zap.Any("metrics", req.SelectedMetrics),
		zap.String("client_ip", c.ClientIP()))

	stream.SetHeaders(c.Writer.Header())
	c.Status(http.StatusOK)
	c.Writer.Flush()

	w := stream.NewWriter(c.Writer)
	if err := h.runner.Run(c.Request.Context(), req, w); err != nil {
		h.log.Error("Evaluation stream ended with error", zap.Error(err))
	}
}
