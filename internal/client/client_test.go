package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/stream"
)

func strPtr(s string) *string { return &s }

func finalEvent(modelID, response string, scores model.Scores) model.StreamEvent {
	return model.StreamEvent{
		Model:    modelID,
		Response: response,
		Metrics: &model.EventMetrics{
			TimingInfo: model.TimingInfo{Duration: 7, Streaming: &model.StreamingMetrics{TotalTokens: 1}},
			Evaluation: scores,
		},
	}
}

func TestAssembler(t *testing.T) {
	a := NewAssembler([]string{"gpt-4o", "bad-model"})

	a.Apply(model.StreamEvent{Model: "gpt-4o", Response: "", Delta: strPtr("")})
	a.Apply(model.StreamEvent{Model: "gpt-4o", Response: "Hel", Delta: strPtr("Hel")})
	snap := a.Snapshot()

	a.Apply(model.StreamEvent{Model: "gpt-4o", Response: "Hello", Delta: strPtr("lo")})
	a.Apply(finalEvent("gpt-4o", "Hello", model.Scores{model.MetricExactMatch: 1}))
	a.Apply(model.StreamEvent{Model: "bad-model", Error: "unsupported model: bad-model"})

	assert.Equal(t, "Hel", snap[0].Response, "snapshots are not affected by later events")
	assert.False(t, snap[0].Done)

	final := a.Snapshot()
	require.Len(t, final, 2)
	assert.Equal(t, "gpt-4o", final[0].Model)
	assert.Equal(t, "Hello", final[0].Response)
	assert.True(t, final[0].Done)
	assert.Equal(t, 1.0, final[0].Metrics.Evaluation[model.MetricExactMatch])

	assert.Equal(t, "bad-model", final[1].Model)
	assert.Equal(t, "unsupported model: bad-model", final[1].Error)
	assert.True(t, final[1].Done)

	final[0].Metrics.Evaluation[model.MetricExactMatch] = 0
	assert.Equal(t, 1.0, a.Snapshot()[0].Metrics.Evaluation[model.MetricExactMatch], "snapshot maps are copies")
}

func TestAssemblerProviderErrorAfterDeltas(t *testing.T) {
	a := NewAssembler([]string{"llama-3.1-8b"})
	a.Apply(model.StreamEvent{Model: "llama-3.1-8b", Response: "", Delta: strPtr("")})
	a.Apply(model.StreamEvent{Model: "llama-3.1-8b", Response: "par", Delta: strPtr("par")})
	a.Apply(model.StreamEvent{Model: "llama-3.1-8b", Response: "", Error: "429 rate limited"})

	got := a.Snapshot()[0]
	assert.Equal(t, "", got.Response)
	assert.Equal(t, "429 rate limited", got.Error)
	assert.Nil(t, got.Metrics)
	assert.True(t, got.Done)
}

func TestAssemblerScoringFailure(t *testing.T) {
	a := NewAssembler([]string{"m"})
	e := finalEvent("m", "answer", nil)
	e.Error = "scoring failed: judge down"
	a.Apply(e)

	got := a.Snapshot()[0]
	assert.Equal(t, "answer", got.Response)
	assert.Equal(t, "scoring failed: judge down", got.Error)
	assert.NotNil(t, got.Metrics)
}

func sseServer(t *testing.T, frames func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/evaluate", r.URL.Path)
		var req model.EvaluationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.SelectedModels) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"detail":"selectedModels must not be empty"}`)
			return
		}
		stream.SetHeaders(w.Header())
		frames(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientEvaluate(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter) {
		sw := stream.NewWriter(w)
		sw.Publish(model.StreamEvent{Model: "gpt-4o", Response: "", Delta: strPtr("")})
		fmt.Fprint(w, "data: {broken\n\n")
		sw.Publish(model.StreamEvent{Model: "gpt-4o", Response: "4", Delta: strPtr("4")})
		sw.Publish(finalEvent("gpt-4o", "4", model.Scores{model.MetricExactMatch: 1}))
		sw.Done()
	})

	var updates int
	got, err := New(srv.URL, nil).Evaluate(context.Background(), model.EvaluationRequest{
		SelectedModels: []string{"gpt-4o"},
	}, func([]model.ModelResponse) { updates++ })
	require.NoError(t, err)

	assert.Equal(t, 3, updates, "malformed frame is skipped")
	require.Len(t, got, 1)
	assert.Equal(t, "4", got[0].Response)
	assert.True(t, got[0].Done)
}

func TestClientEvaluateSystemFailure(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter) {
		sw := stream.NewWriter(w)
		sw.Publish(model.StreamEvent{Model: "gpt-4o", Response: "", Delta: strPtr("")})
		sw.Publish(model.StreamEvent{Model: model.SystemModel, Error: "broken pipe"})
		sw.Close()
	})

	c := New(srv.URL, nil)
	responses, err := c.Evaluate(context.Background(), model.EvaluationRequest{
		UserMessage:     "2+2?",
		ExpectedOutput:  "4",
		SelectedModels:  []string{"gpt-4o"},
		SelectedMetrics: []model.MetricKind{model.MetricExactMatch},
	}, nil)
	require.ErrorIs(t, err, ErrStreamFailed)
	assert.Contains(t, err.Error(), "broken pipe")
	require.Len(t, responses, 1)
	assert.Equal(t, "gpt-4o", responses[0].Model)
	assert.False(t, responses[0].Done)
}

func TestClientEvaluateRejected(t *testing.T) {
	srv := sseServer(t, func(http.ResponseWriter) {})

	_, err := New(srv.URL, nil).Evaluate(context.Background(), model.EvaluationRequest{}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "selectedModels must not be empty", apiErr.Detail)
}

// fakeAPI serves the endpoints the bulk runner needs.
type fakeAPI struct {
	mu      sync.Mutex
	results []model.ExperimentResultCreate
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/experiments/exp-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.Experiment{
			ID:           "exp-1",
			SystemPrompt: "Answer with a number.",
			Models: []model.CatalogModel{
				{ID: "id-gpt", Value: "gpt-4o"},
				{ID: "id-llama", Value: "llama-3.1-8b-instant"},
			},
		})
	})
	mux.HandleFunc("GET /api/experiments/exp-1/test-cases", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.TestCase{
			{ID: "tc-1", UserMessage: "2+2", ExpectedOutput: "4"},
			{ID: "tc-2", UserMessage: "3+3", ExpectedOutput: "6", Metrics: []model.MetricKind{model.MetricExactMatch}},
		})
	})
	mux.HandleFunc("POST /api/evaluate", func(w http.ResponseWriter, r *http.Request) {
		var req model.EvaluationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Answer with a number.", req.SystemPrompt)
		assert.Equal(t, []model.MetricKind{model.MetricExactMatch}, req.SelectedMetrics)

		stream.SetHeaders(w.Header())
		sw := stream.NewWriter(w)
		sw.Publish(finalEvent("gpt-4o", req.ExpectedOutput, model.Scores{model.MetricExactMatch: 1}))
		sw.Publish(model.StreamEvent{Model: "llama-3.1-8b-instant", Error: "429 rate limited"})
		sw.Done()
	})
	mux.HandleFunc("POST /api/experiment-results", func(w http.ResponseWriter, r *http.Request) {
		var in model.ExperimentResultCreate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		f.mu.Lock()
		f.results = append(f.results, in)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(model.ExperimentResult{ID: "r", ModelID: in.ModelID})
	})
	return mux
}

func TestBulkRunner(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	var progress []int
	var mu sync.Mutex
	report, err := NewBulkRunner(New(srv.URL, nil), 2).Run(context.Background(), "exp-1", func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 2, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	assert.Equal(t, &BulkReport{TestCases: 2, Persisted: 4, ModelErrors: 2}, report)
	assert.ElementsMatch(t, []int{1, 2}, progress)

	require.Len(t, api.results, 4)
	byModel := map[string]int{}
	for _, r := range api.results {
		byModel[r.ModelID]++
		switch r.ModelID {
		case "id-gpt":
			require.NotNil(t, r.ExactMatchScore)
			assert.Equal(t, 1.0, *r.ExactMatchScore)
			assert.Empty(t, r.Error)
		case "id-llama":
			assert.Equal(t, "429 rate limited", r.Error)
			assert.Nil(t, r.Metrics)
		}
	}
	assert.Equal(t, map[string]int{"id-gpt": 2, "id-llama": 2}, byModel)
}

func TestBulkRunnerUnknownExperiment(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewBulkRunner(New(srv.URL, nil), 1).Run(context.Background(), "missing", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
