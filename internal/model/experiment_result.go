package model

// ExperimentResult is one model's answer to one test case.
type ExperimentResult struct {
	ID                    string      `json:"id"`
	ExperimentID          string      `json:"experimentId"`
	TestCaseID            string      `json:"testCaseId"`
	ModelID               string      `json:"modelId"`
	Response              string      `json:"response"`
	ExactMatchScore       *float64    `json:"exactMatchScore,omitempty"`
	LLMMatchScore         *float64    `json:"llmMatchScore,omitempty"`
	CosineSimilarityScore *float64    `json:"cosineSimilarityScore,omitempty"`
	Metrics               Scores      `json:"metrics,omitempty"`
	Timing                *TimingInfo `json:"timing,omitempty"`
	Error                 string      `json:"error,omitempty"`
	CreatedAt             string      `json:"createdAt"`
}

// ExperimentResultCreate represents create experiment result request
type ExperimentResultCreate struct {
	ExperimentID          string      `json:"experimentId" binding:"required"`
	TestCaseID            string      `json:"testCaseId" binding:"required"`
	ModelID               string      `json:"modelId" binding:"required"`
	Response              string      `json:"response"`
	ExactMatchScore       *float64    `json:"exactMatchScore"`
	LLMMatchScore         *float64    `json:"llmMatchScore"`
	CosineSimilarityScore *float64    `json:"cosineSimilarityScore"`
	Metrics               Scores      `json:"metrics"`
	Timing                *TimingInfo `json:"timing"`
	Error                 string      `json:"error"`
}

// FillMetrics gives every known metric a value, defaulting to 0. A nil
// map stays nil.
func (r *ExperimentResultCreate) FillMetrics() {
	if r.Metrics == nil {
		return
	}
	filled := make(Scores, len(AllMetrics))
	for _, m := range AllMetrics {
		filled[m] = r.Metrics[m]
	}
	r.Metrics = filled
}

// ResultFromResponse converts a finished model response into a result
// record, copying scores onto the per-metric columns.
func ResultFromResponse(experimentID, testCaseID, modelID string, resp ModelResponse) ExperimentResultCreate {
	out := ExperimentResultCreate{
		ExperimentID: experimentID,
		TestCaseID:   testCaseID,
		ModelID:      modelID,
		Response:     resp.Response,
		Error:        resp.Error,
	}
	if resp.Metrics == nil {
		return out
	}
	timing := resp.Metrics.TimingInfo
	out.Timing = &timing
	if resp.Metrics.Evaluation == nil {
		return out
	}
	out.Metrics = resp.Metrics.Evaluation
	if v, ok := out.Metrics[MetricExactMatch]; ok {
		out.ExactMatchScore = &v
	}
	if v, ok := out.Metrics[MetricLLMJudge]; ok {
		out.LLMMatchScore = &v
	}
	if v, ok := out.Metrics[MetricCosineSimilarity]; ok {
		out.CosineSimilarityScore = &v
	}
	return out
}

// ModelSummary aggregates an experiment's results for one model.
type ModelSummary struct {
	ModelID         string `json:"modelId"`
	Model           string `json:"model"`
	TotalTests      int    `json:"totalTests"`
	SuccessfulTests int    `json:"successfulTests"`
	Averages        Scores `json:"averages"`
}
