package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/provider"
)

type stubEmbedder struct {
	vecs [][]float64
	err  error
}

func (s stubEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	return s.vecs, s.err
}

type stubCompleter struct {
	text string
	err  error
	got  provider.Prompt
}

func (s *stubCompleter) Complete(_ context.Context, p provider.Prompt) (*provider.Completion, error) {
	s.got = p
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Completion{Text: s.text}, nil
}

func TestExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, ExactMatch("  4\n", "4"))
	assert.Equal(t, 0.0, ExactMatch("four", "4"))
	assert.Equal(t, 1.0, ExactMatch("", " "))

	for _, s := range []string{"", "x", " padded ", "multi\nline"} {
		assert.Equal(t, 1.0, ExactMatch(s, s), "identical strings always match")
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}), "length mismatch")
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}), "zero magnitude")
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))

	vecs := [][]float64{{0.3, -0.7, 0.1}, {-5, 2, 9}, {1e-3, 1e3, 0}, {1, 1, 1}}
	for _, a := range vecs {
		for _, b := range vecs {
			sim := CosineSimilarity(a, b)
			assert.GreaterOrEqual(t, sim, -1.0)
			assert.LessOrEqual(t, sim, 1.0)
		}
	}
}

func TestParseJudgeScore(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`{"score": 85}`, 0.85},
		{`{"score": "70"}`, 0.7},
		{"```json\n{\"score\": 100}\n```", 1},
		{`{"score": 140}`, 1},
		{`{"score": -3}`, 0},
		{`{"score": 0}`, 0},
	}
	for _, tt := range tests {
		got, err := ParseJudgeScore(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}

	for _, bad := range []string{`not json`, `{"grade": 5}`, `{"score": "high"}`, `{"score": null}`} {
		_, err := ParseJudgeScore(bad)
		assert.Error(t, err, bad)
	}
}

func TestJudgeScore(t *testing.T) {
	c := &stubCompleter{text: `{"score": 90}`}
	got, err := NewJudge(c).Score(context.Background(), "Paris", "The capital is Paris")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got, 1e-9)

	assert.True(t, c.got.JSONMode)
	assert.Equal(t, "You are an expert evaluator.", c.got.System)
	assert.Contains(t, c.got.User, "Expected Output:\nThe capital is Paris")
	assert.Contains(t, c.got.User, "Actual Response:\nParis")
}

func TestScorerEvaluate(t *testing.T) {
	s := NewScorer(
		stubEmbedder{vecs: [][]float64{{1, 0}, {1, 0}}},
		NewJudge(&stubCompleter{text: `{"score": 50}`}),
	)

	scores, err := s.Evaluate(context.Background(), "4", "4", []model.MetricKind{
		model.MetricExactMatch, model.MetricCosineSimilarity, model.MetricLLMJudge,
	})
	require.NoError(t, err)
	assert.Equal(t, model.Scores{
		model.MetricExactMatch:       1,
		model.MetricCosineSimilarity: 1,
		model.MetricLLMJudge:         0.5,
	}, scores)

	scores, err = s.Evaluate(context.Background(), "4", "4", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestScorerEvaluateFailures(t *testing.T) {
	boom := errors.New("embedding quota")
	s := NewScorer(stubEmbedder{err: boom}, nil)

	_, err := s.Evaluate(context.Background(), "a", "b", []model.MetricKind{model.MetricExactMatch, model.MetricCosineSimilarity})
	assert.ErrorIs(t, err, boom, "one failing metric fails the whole call")

	_, err = s.Evaluate(context.Background(), "a", "b", []model.MetricKind{model.MetricLLMJudge})
	assert.ErrorIs(t, err, ErrMetricUnavailable)

	_, err = s.Evaluate(context.Background(), "a", "b", []model.MetricKind{"BLEU"})
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])
		assert.Len(t, req["input"], 2)

		w.Header().Set("Content-Type", "application/json")
		// out of order on purpose
		fmt.Fprint(w, `{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL+"/", "text-embedding-3-small", option.WithMaxRetries(0))
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
}
