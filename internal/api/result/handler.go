package result

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/api/httperr"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/repository"
)

// CreateResult stores one model's result for a test case
func CreateResult(c *gin.Context) {
	var req model.ExperimentResultCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	result, err := repository.CreateExperimentResult(&req)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetResults returns results by ?experimentId= and optional ?testCaseId=
func GetResults(c *gin.Context) {
	experimentID := c.Query("experimentId")
	if experimentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "experimentId is required"})
		return
	}

	results, err := repository.GetExperimentResults(experimentID, c.Query("testCaseId"))
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}
