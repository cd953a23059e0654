package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/logger"
	"github.com/wzyjerry/llm-arena/internal/provider"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resolver finds the adapter serving a model.
type Resolver interface {
	Adapter(modelID string) (provider.Adapter, error)
}

// MetricEvaluator scores a finished response.
type MetricEvaluator interface {
	Evaluate(ctx context.Context, response, expected string, metrics []model.MetricKind) (model.Scores, error)
}

// Publisher receives the events of one evaluation. Publish must be safe
// for concurrent use.
type Publisher interface {
	Publish(e model.StreamEvent) error
	Done() error
	Close() error
}

// Evaluator runs one evaluation request against every selected model at
// once and streams each model's progress to a Publisher.
type Evaluator struct {
	resolver     Resolver
	scorer       MetricEvaluator
	modelTimeout time.Duration
	log          *zap.Logger
}

// NewEvaluator creates an evaluator. A zero modelTimeout leaves model
// calls bounded only by the caller's context.
func NewEvaluator(resolver Resolver, scorer MetricEvaluator, modelTimeout time.Duration) *Evaluator {
	return &Evaluator{
		resolver:     resolver,
		scorer:       scorer,
		modelTimeout: modelTimeout,
		log:          logger.Named("evaluator"),
	}
}

// Run streams every selected model and scores the responses. Model
// failures are reported as events and never affect other models. Run
// returns after every model has finished and the stream is closed; the
// returned error is set only when the stream itself failed.
func (e *Evaluator) Run(ctx context.Context, req model.EvaluationRequest, pub Publisher) error {
	if len(req.SelectedModels) == 0 {
		return fmt.Errorf("%w: selectedModels must not be empty", model.ErrInvalidRequest)
	}
	started := time.Now()

	var g errgroup.Group
	for _, modelID := range req.SelectedModels {
		g.Go(func() error {
			return e.runModel(ctx, req, modelID, pub)
		})
	}

	err := g.Wait()
	if err == nil {
		err = pub.Done()
	}
	if err != nil {
		e.log.Error("Evaluation stream failed", zap.Error(err))
		_ = pub.Publish(model.StreamEvent{Model: model.SystemModel, Error: err.Error()})
	}
	if cerr := pub.Close(); cerr != nil && err == nil {
		err = cerr
	}

	e.log.Info("Evaluation finished",
		zap.Int("models", len(req.SelectedModels)),
		zap.Duration("elapsed", time.Since(started)))
	return err
}

// runModel drives one model from first event to terminal event. It
// returns an error only when publishing fails.
func (e *Evaluator) runModel(ctx context.Context, req model.EvaluationRequest, modelID string, pub Publisher) error {
	log := e.log.With(zap.String("model", modelID))
	start := time.Now()

	adapter, err := e.resolver.Adapter(modelID)
	if err != nil {
		log.Warn("Model not available", zap.Error(err))
		return pub.Publish(errorEvent(modelID, err))
	}

	state := &runState{model: modelID}
	timing, err := e.stream(ctx, adapter, req, state, pub)
	if err != nil {
		var pe publishError
		if errors.As(err, &pe) {
			return pe.err
		}
		log.Warn("Model call failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return pub.Publish(errorEvent(modelID, err))
	}
	if timing == nil {
		end := time.Now()
		timing = &model.TimingInfo{
			StartTime: start.UnixMilli(),
			EndTime:   end.UnixMilli(),
			Duration:  end.Sub(start).Milliseconds(),
		}
	}

	response := state.response()
	final := model.StreamEvent{
		Model:    modelID,
		Response: response,
		Metrics:  &model.EventMetrics{TimingInfo: *timing},
	}

	scores, err := e.scorer.Evaluate(ctx, response, req.ExpectedOutput, req.SelectedMetrics)
	if err != nil {
		log.Warn("Scoring failed", zap.Error(err))
		final.Error = fmt.Sprintf("scoring failed: %v", err)
	} else {
		final.Metrics.Evaluation = scores
	}

	log.Info("Model evaluated",
		zap.Int64("duration_ms", timing.Duration),
		zap.Int("response_len", len(response)),
		zap.Bool("scored", err == nil))
	return pub.Publish(final)
}

type publishError struct{ err error }

func (p publishError) Error() string { return p.err.Error() }

// stream relays the adapter's deltas and returns the final timing. The
// initial empty event goes out with the first chunk, so a call rejected
// before producing anything ends in a single error event.
func (e *Evaluator) stream(ctx context.Context, adapter provider.Adapter, req model.EvaluationRequest, state *runState, pub Publisher) (*model.TimingInfo, error) {
	var cancel context.CancelFunc
	if e.modelTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.modelTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	chunks, errs := adapter.Stream(ctx, provider.Prompt{
		System: req.SystemPrompt,
		User:   req.UserMessage,
	})

	var timing *model.TimingInfo
	opened := false
	open := func() error {
		if opened {
			return nil
		}
		opened = true
		if err := pub.Publish(state.initial()); err != nil {
			return publishError{err}
		}
		return nil
	}
	for c := range chunks {
		if c.Timing != nil {
			timing = c.Timing
		}
		if !c.Done && c.Delta == "" {
			continue
		}
		// cancel unblocks the adapter goroutine on a failed publish
		if err := open(); err != nil {
			return nil, err
		}
		if c.Done {
			continue
		}
		if err := pub.Publish(state.append(c.Delta)); err != nil {
			return nil, publishError{err}
		}
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	if err := open(); err != nil {
		return nil, err
	}
	return timing, nil
}

func errorEvent(modelID string, err error) model.StreamEvent {
	return model.StreamEvent{Model: modelID, Response: "", Error: err.Error()}
}

// runState accumulates one model's response. It is owned by the model's
// goroutine; only the events it builds leave it.
type runState struct {
	model string
	buf   strings.Builder
}

func (s *runState) initial() model.StreamEvent {
	empty := ""
	return model.StreamEvent{Model: s.model, Response: "", Delta: &empty}
}

func (s *runState) append(delta string) model.StreamEvent {
	s.buf.WriteString(delta)
	d := delta
	return model.StreamEvent{Model: s.model, Response: s.buf.String(), Delta: &d}
}

func (s *runState) response() string {
	return s.buf.String()
}
