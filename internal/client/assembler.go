package client

import (
	"maps"
	"sync"

	"github.com/wzyjerry/llm-arena/internal/model"
)

// Assembler folds stream events into one response per model.
type Assembler struct {
	mu      sync.Mutex
	order   []string
	byModel map[string]*model.ModelResponse
}

// NewAssembler starts with an empty response for every selected model, in
// selection order.
func NewAssembler(models []string) *Assembler {
	a := &Assembler{byModel: make(map[string]*model.ModelResponse, len(models))}
	for _, m := range models {
		a.entry(m)
	}
	return a
}

func (a *Assembler) entry(id string) *model.ModelResponse {
	r, ok := a.byModel[id]
	if !ok {
		r = &model.ModelResponse{Model: id}
		a.byModel[id] = r
		a.order = append(a.order, id)
	}
	return r
}

// Apply records one event.
func (a *Assembler) Apply(e model.StreamEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.entry(e.Model)
	// every event carries the full accumulated response; a provider
	// error replaces any partial text with its empty one
	r.Response = e.Response
	r.Error = e.Error
	if e.Metrics != nil {
		r.Metrics = e.Metrics
	}
	if e.IsTerminal() {
		r.Done = true
	}
}

// Snapshot returns copies of the current responses; later events do not
// change them.
func (a *Assembler) Snapshot() []model.ModelResponse {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.ModelResponse, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, copyResponse(*a.byModel[id]))
	}
	return out
}

func copyResponse(r model.ModelResponse) model.ModelResponse {
	if r.Metrics == nil {
		return r
	}
	m := *r.Metrics
	if m.Streaming != nil {
		s := *m.Streaming
		m.Streaming = &s
	}
	m.Evaluation = maps.Clone(m.Evaluation)
	r.Metrics = &m
	return r
}
