// Package provider adapts hosted language model APIs to one streaming
// interface and computes per-call timing.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wzyjerry/llm-arena/internal/model"
)

// ErrUnsupportedModel is returned for identifiers no registered backend serves.
var ErrUnsupportedModel = errors.New("unsupported model")

// Prompt is the input of one model call.
type Prompt struct {
	System string
	User   string
	// JSONMode asks the backend for a single JSON object.
	JSONMode bool
}

// Completion is the result of a non-streaming call.
type Completion struct {
	Text   string
	Timing model.TimingInfo
}

// Chunk is one item of a streamed response. The last chunk has Done set
// and carries the final timing.
type Chunk struct {
	Delta  string
	Timing *model.TimingInfo
	Done   bool
}

// Adapter talks to one model.
//
// Stream sends deltas in arrival order and closes the chunk channel when
// the response ends. The error channel yields at most one error and is
// closed after the chunk channel.
type Adapter interface {
	Complete(ctx context.Context, p Prompt) (*Completion, error)
	Stream(ctx context.Context, p Prompt) (<-chan Chunk, <-chan error)
}

// Usage is what a backend reports about a finished call.
type Usage struct {
	OutputTokens int64
}

// Backend is a vendor API client serving every model of one family.
type Backend interface {
	StreamText(ctx context.Context, model string, p Prompt, onDelta func(string)) (Usage, error)
	CompleteText(ctx context.Context, model string, p Prompt) (string, Usage, error)
}

// Family groups models served by the same backend.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyGoogle    Family = "google"
	FamilyGroq      Family = "groq"
	FamilyAnthropic Family = "anthropic"
)

var familyPrefixes = []struct {
	prefix string
	family Family
}{
	{"gpt-", FamilyOpenAI},
	{"o1", FamilyOpenAI},
	{"o3", FamilyOpenAI},
	{"o4", FamilyOpenAI},
	{"text-", FamilyOpenAI},
	{"gemini-", FamilyGoogle},
	{"llama-", FamilyGroq},
	{"mixtral-", FamilyGroq},
	{"gemma", FamilyGroq},
	{"claude-", FamilyAnthropic},
}

// ResolveFamily maps a model identifier to its family by prefix.
func ResolveFamily(modelID string) (Family, error) {
	for _, fp := range familyPrefixes {
		if strings.HasPrefix(modelID, fp.prefix) {
			return fp.family, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedModel, modelID)
}

// ParseFamily accepts a family name in any case, as stored in the catalog.
func ParseFamily(s string) (Family, bool) {
	switch f := Family(strings.ToLower(strings.TrimSpace(s))); f {
	case FamilyOpenAI, FamilyGoogle, FamilyGroq, FamilyAnthropic:
		return f, true
	}
	return "", false
}
