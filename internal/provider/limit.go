package provider

import (
	"context"
	"errors"
	"time"

	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/redis"
	"go.uber.org/zap"
)

// ErrSlotTimeout is returned when no concurrency slot frees up in time.
var ErrSlotTimeout = errors.New("timeout waiting for concurrency slot")

// SlotLimiter hands out a bounded number of slots per key.
type SlotLimiter interface {
	AcquireSlot(ctx context.Context, key string, maxConcurrency int) (bool, error)
	ReleaseSlot(ctx context.Context, key string) error
}

type limited struct {
	next  Adapter
	model string
	slots SlotLimiter
	max   int
	wait  time.Duration
	poll  time.Duration
}

// Limit wraps an adapter so every call holds one of maxConcurrency slots for the
// model while it runs. When the limiter itself fails the call goes ahead
// without a slot. Reported timing starts when the call is dispatched, so time
// spent waiting for a slot counts towards duration and time to first token.
func Limit(next Adapter, modelID string, slots SlotLimiter, maxConcurrency int, wait time.Duration) Adapter {
	return &limited{
		next:  next,
		model: modelID,
		slots: slots,
		max:   maxConcurrency,
		wait:  wait,
		poll:  2 * time.Second,
	}
}

func (l *limited) acquire(ctx context.Context) (func(), error) {
	key := redis.SlotKey(l.model)
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := l.slots.AcquireSlot(ctx, key, l.max)
		if err != nil {
			zap.L().Warn("Slot limiter error, falling back to direct call",
				zap.String("model", l.model),
				zap.Error(err))
			return func() {}, nil
		}
		if acquired {
			return func() {
				if err := l.slots.ReleaseSlot(context.WithoutCancel(ctx), key); err != nil {
					zap.L().Warn("Failed to release slot",
						zap.String("model", l.model),
						zap.Error(err))
				}
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrSlotTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

func (l *limited) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	dispatched := time.Now()
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	c, err := l.next.Complete(ctx, p)
	if err != nil {
		return nil, err
	}
	c.Timing = fromDispatch(c.Timing, dispatched)
	return c, nil
}

func (l *limited) Stream(ctx context.Context, p Prompt) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(out)

		dispatched := time.Now()
		release, err := l.acquire(ctx)
		if err != nil {
			errCh <- err
			return
		}
		defer release()

		chunks, errs := l.next.Stream(ctx, p)
		for c := range chunks {
			if c.Timing != nil {
				t := fromDispatch(*c.Timing, dispatched)
				c.Timing = &t
			}
			select {
			case out <- c:
			case <-ctx.Done():
			}
		}
		if err := <-errs; err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// fromDispatch moves the start of t back to dispatched and adds the queueing
// time to every measure that starts there.
func fromDispatch(t model.TimingInfo, dispatched time.Time) model.TimingInfo {
	queued := t.StartTime - dispatched.UnixMilli()
	if queued <= 0 {
		return t
	}
	t.StartTime = dispatched.UnixMilli()
	t.Duration += queued
	if t.Streaming != nil {
		s := *t.Streaming
		s.TimeToFirstToken += queued
		s.TotalResponseTime += queued
		if s.TotalResponseTime > 0 {
			s.TokensPerSecond = float64(s.TotalTokens) * 1000 / float64(s.TotalResponseTime)
		}
		t.Streaming = &s
	}
	return t
}
