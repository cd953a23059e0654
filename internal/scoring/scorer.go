// Package scoring compares model responses with expected outputs.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/wzyjerry/llm-arena/internal/model"
)

var (
	ErrUnknownMetric     = errors.New("unknown metric")
	ErrMetricUnavailable = errors.New("metric unavailable")
)

// Scorer evaluates the metrics of one finished response.
type Scorer struct {
	embedder Embedder
	judge    *Judge
}

// NewScorer creates a scorer. A nil embedder or judge makes the
// corresponding metric fail with ErrMetricUnavailable.
func NewScorer(embedder Embedder, judge *Judge) *Scorer {
	return &Scorer{embedder: embedder, judge: judge}
}

// Evaluate runs metrics in order. Any failing metric fails the call.
func (s *Scorer) Evaluate(ctx context.Context, response, expected string, metrics []model.MetricKind) (model.Scores, error) {
	scores := make(model.Scores, len(metrics))
	for _, m := range metrics {
		v, err := s.evaluateOne(ctx, m, response, expected)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		scores[m] = v
	}
	return scores, nil
}

func (s *Scorer) evaluateOne(ctx context.Context, m model.MetricKind, response, expected string) (float64, error) {
	switch m {
	case model.MetricExactMatch:
		return ExactMatch(response, expected), nil
	case model.MetricCosineSimilarity:
		if s.embedder == nil {
			return 0, ErrMetricUnavailable
		}
		vecs, err := s.embedder.Embed(ctx, []string{response, expected})
		if err != nil {
			return 0, err
		}
		if len(vecs) != 2 {
			return 0, fmt.Errorf("expected 2 embeddings, got %d", len(vecs))
		}
		return CosineSimilarity(vecs[0], vecs[1]), nil
	case model.MetricLLMJudge:
		if s.judge == nil {
			return 0, ErrMetricUnavailable
		}
		return s.judge.Score(ctx, response, expected)
	}
	return 0, ErrUnknownMetric
}
