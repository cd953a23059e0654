package testcase

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/api/httperr"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/repository"
	"go.uber.org/zap"
)

// CreateTestCase creates a standalone test case
func CreateTestCase(c *gin.Context) {
	var req model.TestCaseCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	tc, err := repository.CreateTestCase(&req)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, tc)
}

// GetTestCases returns one test case by ?id= or an experiment's test
// cases by ?experimentId=
func GetTestCases(c *gin.Context) {
	if id := c.Query("id"); id != "" {
		tc, err := repository.GetTestCaseByID(id)
		if err != nil {
			httperr.Abort(c, err)
			return
		}
		if tc == nil {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Test case not found"})
			return
		}
		c.JSON(http.StatusOK, tc)
		return
	}

	experimentID := c.Query("experimentId")
	if experimentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "id or experimentId is required"})
		return
	}
	listForExperiment(c, experimentID)
}

// GetExperimentTestCases returns the test cases linked to an experiment
func GetExperimentTestCases(c *gin.Context) {
	listForExperiment(c, c.Param("id"))
}

func listForExperiment(c *gin.Context, experimentID string) {
	exists, err := repository.ExperimentExists(experimentID)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Experiment not found"})
		return
	}

	cases, err := repository.GetTestCasesByExperiment(experimentID)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, cases)
}

// LinkTestCase attaches an existing test case to an experiment
func LinkTestCase(c *gin.Context) {
	var req model.LinkTestCase
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if err := repository.LinkTestCase(c.Param("id"), req.TestCaseID); err != nil {
		httperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test case linked successfully"})
}

// BulkCreateTestCases creates test cases and links them to an experiment
func BulkCreateTestCases(c *gin.Context) {
	var req model.BulkTestCaseCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	created, err := repository.CreateTestCases(c.Param("id"), req.TestCases)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	zap.L().Info("Test cases created",
		zap.String("experiment_id", c.Param("id")),
		zap.Int("count", len(created)))
	c.JSON(http.StatusCreated, created)
}

// ImportCSV creates test cases from an uploaded CSV file and links them
// to an experiment. Invalid rows are skipped and reported.
func ImportCSV(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "File is required"})
		return
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only .csv files are supported"})
		return
	}

	// Open file
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	defer src.Close()

	cases, validation, err := parseCSV(src)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	if len(cases) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail":     "CSV file contains no valid rows",
			"validation": validation,
		})
		return
	}

	created, err := repository.CreateTestCases(c.Param("id"), cases)
	if err != nil {
		httperr.Abort(c, err)
		return
	}

	zap.L().Info("Test cases imported from CSV",
		zap.String("experiment_id", c.Param("id")),
		zap.String("filename", file.Filename),
		zap.Int("valid_rows", validation.ValidRows),
		zap.Int("invalid_rows", len(validation.InvalidRows)))

	c.JSON(http.StatusCreated, gin.H{
		"message":    "CSV file imported successfully",
		"testCases":  created,
		"validation": validation,
	})
}
