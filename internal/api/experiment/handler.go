package experiment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/api/httperr"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/repository"
	"go.uber.org/zap"
)

// CreateExperiment creates an experiment with its models
func CreateExperiment(c *gin.Context) {
	var req model.ExperimentCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	exp, err := repository.CreateExperiment(&req)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	zap.L().Info("Experiment created",
		zap.String("experiment_id", exp.ID),
		zap.Int("models", len(exp.Models)))
	c.JSON(http.StatusCreated, exp)
}

// GetExperiments returns all experiments
func GetExperiments(c *gin.Context) {
	experiments, err := repository.GetAllExperiments()
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, experiments)
}

// GetExperiment returns one experiment with its models
func GetExperiment(c *gin.Context) {
	exp, err := repository.GetExperimentByID(c.Param("id"))
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	if exp == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Experiment not found"})
		return
	}

	c.JSON(http.StatusOK, exp)
}

// DeleteExperiment deletes an experiment and its results
func DeleteExperiment(c *gin.Context) {
	success, err := repository.DeleteExperiment(c.Param("id"))
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	if !success {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Experiment not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Experiment deleted successfully"})
}

// GetSummary returns per-model aggregates of an experiment's results
func GetSummary(c *gin.Context) {
	id := c.Param("id")
	exists, err := repository.ExperimentExists(id)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Experiment not found"})
		return
	}

	summary, err := repository.GetExperimentSummary(id)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
