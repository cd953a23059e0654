package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest marks evaluation requests rejected before streaming starts.
var ErrInvalidRequest = errors.New("invalid evaluation request")

// MetricKind names a scoring metric.
type MetricKind string

const (
	MetricExactMatch       MetricKind = "EXACT_MATCH"
	MetricCosineSimilarity MetricKind = "COSINE_SIMILARITY"
	MetricLLMJudge         MetricKind = "LLM_JUDGE"
)

// AllMetrics lists every known metric in display order.
var AllMetrics = []MetricKind{MetricExactMatch, MetricCosineSimilarity, MetricLLMJudge}

// Valid reports whether m is a known metric.
func (m MetricKind) Valid() bool {
	switch m {
	case MetricExactMatch, MetricCosineSimilarity, MetricLLMJudge:
		return true
	}
	return false
}

// Scores maps each evaluated metric to its score.
type Scores map[MetricKind]float64

// EvaluationRequest is the body of POST /api/evaluate.
type EvaluationRequest struct {
	SystemPrompt    string       `json:"systemPrompt"`
	UserMessage     string       `json:"userMessage"`
	ExpectedOutput  string       `json:"expectedOutput"`
	SelectedModels  []string     `json:"selectedModels"`
	SelectedMetrics []MetricKind `json:"selectedMetrics"`
}

// Normalize validates the request and drops duplicate models and metrics,
// keeping the first occurrence.
func (r *EvaluationRequest) Normalize() error {
	models := make([]string, 0, len(r.SelectedModels))
	seen := make(map[string]bool, len(r.SelectedModels))
	for _, m := range r.SelectedModels {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	if len(models) == 0 {
		return fmt.Errorf("%w: selectedModels must not be empty", ErrInvalidRequest)
	}
	r.SelectedModels = models

	metrics := make([]MetricKind, 0, len(r.SelectedMetrics))
	seenMetric := make(map[MetricKind]bool, len(r.SelectedMetrics))
	for _, m := range r.SelectedMetrics {
		if !m.Valid() {
			return fmt.Errorf("%w: unknown metric %q", ErrInvalidRequest, m)
		}
		if seenMetric[m] {
			continue
		}
		seenMetric[m] = true
		metrics = append(metrics, m)
	}
	r.SelectedMetrics = metrics
	return nil
}

// StreamingMetrics describes throughput of a streamed response.
type StreamingMetrics struct {
	TimeToFirstToken  int64   `json:"timeToFirstToken"`
	TokensPerSecond   float64 `json:"tokensPerSecond"`
	TotalResponseTime int64   `json:"totalResponseTime"`
	TotalTokens       int     `json:"totalTokens"`
}

// TimingInfo times one model call. Times are Unix epoch milliseconds and
// durations are milliseconds.
type TimingInfo struct {
	StartTime int64             `json:"startTime"`
	EndTime   int64             `json:"endTime"`
	Duration  int64             `json:"duration"`
	Streaming *StreamingMetrics `json:"streaming,omitempty"`
}

// EventMetrics is the metrics object attached to stream events.
type EventMetrics struct {
	TimingInfo
	Evaluation Scores `json:"evaluation,omitempty"`
}

// StreamEvent is one SSE frame of an evaluation stream.
type StreamEvent struct {
	Model    string        `json:"model"`
	Response string        `json:"response"`
	Delta    *string       `json:"delta,omitempty"`
	Error    string        `json:"error,omitempty"`
	Metrics  *EventMetrics `json:"metrics,omitempty"`
}

// IsTerminal reports whether the event ends its model's stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Error != "" || (e.Delta == nil && e.Metrics != nil)
}

// ModelResponse is the client-side view of one model's result.
type ModelResponse struct {
	Model    string        `json:"model"`
	Response string        `json:"response"`
	Error    string        `json:"error,omitempty"`
	Metrics  *EventMetrics `json:"metrics,omitempty"`
	Done     bool          `json:"done"`
}

// SystemModel is the model name used for failures not tied to one model.
const SystemModel = "system"

// DoneSentinel is the payload of the final SSE frame.
const DoneSentinel = "[DONE]"

// ModelCallRequest is the body of a single non-streaming completion.
type ModelCallRequest struct {
	Model        string `json:"model" binding:"required"`
	SystemPrompt string `json:"systemPrompt"`
	UserMessage  string `json:"userMessage" binding:"required"`
}

// ModelCallResponse represents model call response
type ModelCallResponse struct {
	Success bool        `json:"success"`
	Content string      `json:"content"`
	Metrics *TimingInfo `json:"metrics,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ConcurrencyStatus represents model concurrency status
type ConcurrencyStatus struct {
	Model              string `json:"model"`
	CurrentConcurrency int    `json:"current_concurrency"`
	MaxConcurrency     int    `json:"max_concurrency"`
	AvailableSlots     int    `json:"available_slots"`
	Error              string `json:"error,omitempty"`
}
