package model

// CatalogModel is a model offered for selection.
type CatalogModel struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

// Experiment groups a system prompt, models and test cases.
type Experiment struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	SystemPrompt  string         `json:"systemPrompt"`
	Models        []CatalogModel `json:"models"`
	TestCaseCount int            `json:"testCaseCount"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
}

// ExperimentCreate represents create experiment request
type ExperimentCreate struct {
	Name         string   `json:"name" binding:"required"`
	SystemPrompt string   `json:"systemPrompt" binding:"required"`
	ModelIDs     []string `json:"modelIds" binding:"required,min=1"`
	TestCaseIDs  []string `json:"testCaseIds"`
}

// TestCase is a user message with the output it should produce.
type TestCase struct {
	ID             string       `json:"id"`
	UserMessage    string       `json:"userMessage"`
	ExpectedOutput string       `json:"expectedOutput"`
	Metrics        []MetricKind `json:"metrics"`
	CreatedAt      string       `json:"createdAt"`
	UpdatedAt      string       `json:"updatedAt"`
}

// TestCaseCreate represents create test case request
type TestCaseCreate struct {
	UserMessage    string       `json:"userMessage" binding:"required"`
	ExpectedOutput string       `json:"expectedOutput" binding:"required"`
	Metrics        []MetricKind `json:"metrics"`
}

// DefaultTestCaseMetrics applies when a test case names no metrics.
var DefaultTestCaseMetrics = []MetricKind{MetricExactMatch}

// BulkTestCaseCreate is the body of the bulk test case import.
type BulkTestCaseCreate struct {
	TestCases []TestCaseCreate `json:"testCases" binding:"required,min=1,dive"`
}

// LinkTestCase links an existing test case to an experiment.
type LinkTestCase struct {
	TestCaseID string `json:"testCaseId" binding:"required"`
}

// CSVRowError describes a CSV row that could not be imported.
type CSVRowError struct {
	Row   int      `json:"row"`
	Data  []string `json:"data"`
	Error string   `json:"error"`
}

// CSVValidationInfo reports how a CSV import went row by row.
type CSVValidationInfo struct {
	TotalRows   int           `json:"totalRows"`
	ValidRows   int           `json:"validRows"`
	EmptyRows   int           `json:"emptyRows"`
	Headers     []string      `json:"headers"`
	InvalidRows []CSVRowError `json:"invalidRows"`
}
