package provider

import (
	"context"
	"time"
)

// fakeBackend replays fixed deltas, optionally failing after them.
type fakeBackend struct {
	deltas []string
	delay  time.Duration
	usage  Usage
	err    error
	calls  int
}

func (f *fakeBackend) StreamText(ctx context.Context, _ string, _ Prompt, onDelta func(string)) (Usage, error) {
	f.calls++
	for _, d := range f.deltas {
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return Usage{}, ctx.Err()
			}
		}
		onDelta(d)
	}
	return f.usage, f.err
}

func (f *fakeBackend) CompleteText(_ context.Context, _ string, p Prompt) (string, Usage, error) {
	f.calls++
	if f.err != nil {
		return "", Usage{}, f.err
	}
	text := ""
	for _, d := range f.deltas {
		text += d
	}
	return text, f.usage, nil
}

func drain(chunks <-chan Chunk, errs <-chan error) ([]Chunk, error) {
	var out []Chunk
	for c := range chunks {
		out = append(out, c)
	}
	return out, <-errs
}
