package model

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/api/httperr"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/repository"
)

var metricDescriptions = map[model.MetricKind]string{
	model.MetricExactMatch:       "1 when the trimmed response equals the expected output, else 0",
	model.MetricCosineSimilarity: "Cosine similarity of response and expected output embeddings",
	model.MetricLLMJudge:         "Semantic match score from a judge model, 0 to 1",
}

// GetModels returns the model catalog
func GetModels(c *gin.Context) {
	models, err := repository.GetAllModels()
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, models)
}

// GetMetrics returns the scoring metrics a request may select
func GetMetrics(c *gin.Context) {
	type metricInfo struct {
		Name        model.MetricKind `json:"name"`
		Description string           `json:"description"`
	}

	metrics := make([]metricInfo, 0, len(model.AllMetrics))
	for _, m := range model.AllMetrics {
		metrics = append(metrics, metricInfo{Name: m, Description: metricDescriptions[m]})
	}

	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}
