package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	req := EvaluationRequest{
		SelectedModels:  []string{"gpt-4o", " gemini-1.5-flash ", "gpt-4o", ""},
		SelectedMetrics: []MetricKind{MetricExactMatch, MetricExactMatch, MetricLLMJudge},
	}
	require.NoError(t, req.Normalize())
	assert.Equal(t, []string{"gpt-4o", "gemini-1.5-flash"}, req.SelectedModels)
	assert.Equal(t, []MetricKind{MetricExactMatch, MetricLLMJudge}, req.SelectedMetrics)
}

func TestNormalizeRejects(t *testing.T) {
	empty := EvaluationRequest{SelectedModels: []string{" "}}
	assert.ErrorIs(t, empty.Normalize(), ErrInvalidRequest)

	badMetric := EvaluationRequest{
		SelectedModels:  []string{"gpt-4o"},
		SelectedMetrics: []MetricKind{"BLEU"},
	}
	assert.ErrorIs(t, badMetric.Normalize(), ErrInvalidRequest)
}

func TestStreamEventWireShape(t *testing.T) {
	delta := "Hel"
	b, err := json.Marshal(StreamEvent{Model: "m", Response: "Hel", Delta: &delta})
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"m","response":"Hel","delta":"Hel"}`, string(b))

	final := StreamEvent{
		Model:    "m",
		Response: "Hello",
		Metrics: &EventMetrics{
			TimingInfo: TimingInfo{
				StartTime: 1, EndTime: 11, Duration: 10,
				Streaming: &StreamingMetrics{TimeToFirstToken: 3, TokensPerSecond: 100, TotalResponseTime: 10, TotalTokens: 1},
			},
			Evaluation: Scores{MetricExactMatch: 1},
		},
	}
	b, err = json.Marshal(final)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"m","response":"Hello","metrics":{"startTime":1,"endTime":11,"duration":10,
		"streaming":{"timeToFirstToken":3,"tokensPerSecond":100,"totalResponseTime":10,"totalTokens":1},
		"evaluation":{"EXACT_MATCH":1}}}`, string(b))
	assert.True(t, final.IsTerminal())
}

func TestIsTerminal(t *testing.T) {
	empty := ""
	assert.False(t, StreamEvent{Model: "m", Delta: &empty}.IsTerminal())
	assert.True(t, StreamEvent{Model: "m", Error: "boom"}.IsTerminal())
}

func TestResultFromResponse(t *testing.T) {
	resp := ModelResponse{
		Model:    "gpt-4o",
		Response: "4",
		Metrics: &EventMetrics{
			TimingInfo: TimingInfo{Duration: 5},
			Evaluation: Scores{MetricExactMatch: 1, MetricLLMJudge: 0.9},
		},
	}
	r := ResultFromResponse("e", "t", "m", resp)
	require.NotNil(t, r.ExactMatchScore)
	assert.Equal(t, 1.0, *r.ExactMatchScore)
	require.NotNil(t, r.LLMMatchScore)
	assert.Equal(t, 0.9, *r.LLMMatchScore)
	assert.Nil(t, r.CosineSimilarityScore)
	assert.Equal(t, int64(5), r.Timing.Duration)

	r.FillMetrics()
	assert.Equal(t, 0.0, r.Metrics[MetricCosineSimilarity])
	assert.Len(t, r.Metrics, 3)
}
