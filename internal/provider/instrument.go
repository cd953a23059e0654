package provider

import (
	"context"
	"strings"
	"time"

	"github.com/wzyjerry/llm-arena/internal/model"
)

// instrumented binds a backend to one model and measures every call the
// same way regardless of vendor.
type instrumented struct {
	model   string
	backend Backend
	counter TokenCounter
	now     func() time.Time
}

// Instrument returns an Adapter calling backend for model.
func Instrument(modelID string, backend Backend, counter TokenCounter) Adapter {
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &instrumented{
		model:   modelID,
		backend: backend,
		counter: counter,
		now:     time.Now,
	}
}

func (a *instrumented) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	start := a.now()
	text, _, err := a.backend.CompleteText(ctx, a.model, p)
	if err != nil {
		return nil, err
	}
	end := a.now()
	return &Completion{
		Text: text,
		Timing: model.TimingInfo{
			StartTime: start.UnixMilli(),
			EndTime:   end.UnixMilli(),
			Duration:  end.Sub(start).Milliseconds(),
		},
	}, nil
}

func (a *instrumented) Stream(ctx context.Context, p Prompt) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(out)

		start := a.now()
		var first time.Time
		var text strings.Builder

		usage, err := a.backend.StreamText(ctx, a.model, p, func(delta string) {
			if delta == "" {
				return
			}
			if first.IsZero() {
				first = a.now()
			}
			text.WriteString(delta)
			select {
			case out <- Chunk{Delta: delta}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			errCh <- err
			return
		}
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		tokens := int(usage.OutputTokens)
		if tokens == 0 {
			tokens = a.counter.Count(a.model, text.String())
		}
		timing := streamTiming(start, first, a.now(), tokens)
		select {
		case out <- Chunk{Timing: &timing, Done: true}:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}

// streamTiming derives the metrics of a finished stream. A stream without
// any delta reports its total time as time to first token.
func streamTiming(start, first, end time.Time, tokens int) model.TimingInfo {
	total := end.Sub(start)
	if first.IsZero() {
		first = end
	}
	var tps float64
	if total > 0 {
		tps = float64(tokens) / total.Seconds()
	}
	return model.TimingInfo{
		StartTime: start.UnixMilli(),
		EndTime:   end.UnixMilli(),
		Duration:  total.Milliseconds(),
		Streaming: &model.StreamingMetrics{
			TimeToFirstToken:  first.Sub(start).Milliseconds(),
			TokensPerSecond:   tps,
			TotalResponseTime: total.Milliseconds(),
			TotalTokens:       tokens,
		},
	}
}
