package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wzyjerry/llm-arena/internal/pkg/config"
	"go.uber.org/zap"
)

// Registry resolves model identifiers to adapters. Backends are built once
// at startup and shared by every adapter of their family.
type Registry struct {
	mu       sync.RWMutex
	backends map[Family]Backend
	pinned   map[string]Family
	counter  TokenCounter

	slots    SlotLimiter
	maxSlots int
	slotWait time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(counter TokenCounter) *Registry {
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &Registry{
		backends: make(map[Family]Backend),
		pinned:   make(map[string]Family),
		counter:  counter,
	}
}

// Register serves family with b.
func (r *Registry) Register(f Family, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[f] = b
}

// Pin routes modelID to f regardless of its prefix.
func (r *Registry) Pin(modelID string, f Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned[modelID] = f
}

// UseSlots bounds concurrent calls per model through slots.
func (r *Registry) UseSlots(slots SlotLimiter, maxConcurrency int, wait time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = slots
	r.maxSlots = maxConcurrency
	r.slotWait = wait
}

// Families lists the registered families.
func (r *Registry) Families() []Family {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Family, 0, len(r.backends))
	for f := range r.backends {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Adapter returns an adapter for modelID or an error wrapping
// ErrUnsupportedModel.
func (r *Registry) Adapter(modelID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	family, ok := r.pinned[modelID]
	if !ok {
		var err error
		family, err = ResolveFamily(modelID)
		if err != nil {
			return nil, err
		}
	}
	backend, ok := r.backends[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, modelID)
	}

	a := Instrument(modelID, backend, r.counter)
	if r.slots != nil && r.maxSlots > 0 {
		a = Limit(a, modelID, r.slots, r.maxSlots, r.slotWait)
	}
	return a, nil
}

// NewRegistryFromConfig registers a backend for every family that has an
// API key and pins the catalog's model families.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config) (*Registry, error) {
	r := NewRegistry(NewTokenCounter())
	p := cfg.Providers

	if p.OpenAI.APIKey != "" {
		r.Register(FamilyOpenAI, NewOpenAI(p.OpenAI.APIKey, p.OpenAI.BaseURL))
	}
	if p.Groq.APIKey != "" {
		r.Register(FamilyGroq, NewOpenAI(p.Groq.APIKey, p.Groq.BaseURL))
	}
	if p.Anthropic.APIKey != "" {
		r.Register(FamilyAnthropic, NewAnthropic(p.Anthropic.APIKey, p.Anthropic.BaseURL))
	}
	if p.Google.APIKey != "" {
		g, err := NewGoogle(ctx, p.Google.APIKey, p.Google.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		r.Register(FamilyGoogle, g)
	}

	for _, entry := range cfg.Catalog {
		if f, ok := ParseFamily(entry.Category); ok {
			r.Pin(entry.Value, f)
		}
	}

	zap.L().Info("Model backends registered",
		zap.Any("families", r.Families()))
	return r, nil
}
