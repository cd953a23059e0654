package database

import (
	"github.com/gin-gonic/gin"
	"github.com/wzyjerry/llm-arena/internal/api/experiment"
	modelapi "github.com/wzyjerry/llm-arena/internal/api/model"
	"github.com/wzyjerry/llm-arena/internal/api/result"
	"github.com/wzyjerry/llm-arena/internal/api/testcase"
)

// SetupDatabaseRoutes configures the persistence routes shared by both
// services
func SetupDatabaseRoutes(r gin.IRouter) {
	v1 := r.Group("/api")
	{
		// Model catalog
		v1.GET("/models", modelapi.GetModels)
		v1.GET("/metrics", modelapi.GetMetrics)

		// Experiments
		v1.POST("/experiments", experiment.CreateExperiment)
		v1.GET("/experiments", experiment.GetExperiments)
		v1.GET("/experiments/:id", experiment.GetExperiment)
		v1.DELETE("/experiments/:id", experiment.DeleteExperiment)
		v1.GET("/experiments/:id/summary", experiment.GetSummary)

		// Test cases
		v1.GET("/experiments/:id/test-cases", testcase.GetExperimentTestCases)
		v1.POST("/experiments/:id/test-cases", testcase.LinkTestCase)
		v1.POST("/experiments/:id/test-cases/bulk", testcase.BulkCreateTestCases)
		v1.POST("/experiments/:id/test-cases/csv", testcase.ImportCSV)
		v1.POST("/test-cases", testcase.CreateTestCase)
		v1.GET("/test-cases", testcase.GetTestCases)

		// Results
		v1.POST("/experiment-results", result.CreateResult)
		v1.GET("/experiment-results", result.GetResults)
	}
}
