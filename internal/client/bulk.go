package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/logger"
	"go.uber.org/zap"
)

// BulkReport counts what a bulk run did.
type BulkReport struct {
	TestCases int `json:"testCases"`
	Persisted int `json:"persisted"`
	// Failed counts test cases whose evaluation request failed outright.
	Failed int `json:"failed"`
	// ModelErrors counts stored results that carry an error.
	ModelErrors int `json:"modelErrors"`
}

// BulkRunner evaluates every test case of an experiment and stores one
// result per test case and model.
type BulkRunner struct {
	client  *Client
	workers int
	log     *zap.Logger
}

// NewBulkRunner runs at most workers evaluation requests at a time.
func NewBulkRunner(c *Client, workers int) *BulkRunner {
	if workers <= 0 {
		workers = 1
	}
	return &BulkRunner{
		client:  c,
		workers: workers,
		log:     logger.Named("bulk"),
	}
}

type bulkTask struct {
	ctx  context.Context
	exp  *model.Experiment
	tc   model.TestCase
	wg   *sync.WaitGroup
	done func(persisted, modelErrors int, err error)
}

// Run evaluates the experiment. progress, if set, is called after each
// test case with the number finished so far.
func (b *BulkRunner) Run(ctx context.Context, experimentID string, progress func(done, total int)) (*BulkReport, error) {
	exp, err := b.client.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load experiment: %w", err)
	}
	if len(exp.Models) == 0 {
		return nil, errors.New("experiment has no models")
	}
	cases, err := b.client.ListTestCases(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test cases: %w", err)
	}

	report := &BulkReport{TestCases: len(cases)}
	var mu sync.Mutex
	finished := 0

	pool, err := ants.NewPoolWithFunc(b.workers, func(arg any) {
		task, ok := arg.(*bulkTask)
		if !ok {
			panic("bulk pool args type error")
		}
		defer task.wg.Done()
		persisted, modelErrors, err := b.runCase(task.ctx, task.exp, task.tc)
		task.done(persisted, modelErrors, err)
	})
	if err != nil {
		return nil, fmt.Errorf("create bulk pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, tc := range cases {
		wg.Add(1)
		task := &bulkTask{
			ctx: ctx,
			exp: exp,
			tc:  tc,
			wg:  &wg,
			done: func(persisted, modelErrors int, err error) {
				mu.Lock()
				defer mu.Unlock()
				report.Persisted += persisted
				report.ModelErrors += modelErrors
				if err != nil {
					report.Failed++
				}
				finished++
				if progress != nil {
					progress(finished, len(cases))
				}
			},
		}
		if err := pool.Invoke(task); err != nil {
			wg.Done()
			task.done(0, 0, err)
		}
	}
	wg.Wait()

	return report, ctx.Err()
}

func (b *BulkRunner) runCase(ctx context.Context, exp *model.Experiment, tc model.TestCase) (int, int, error) {
	ids := make(map[string]string, len(exp.Models))
	values := make([]string, 0, len(exp.Models))
	for _, m := range exp.Models {
		ids[m.Value] = m.ID
		values = append(values, m.Value)
	}

	metrics := tc.Metrics
	if len(metrics) == 0 {
		metrics = model.DefaultTestCaseMetrics
	}
	responses, err := b.client.Evaluate(ctx, model.EvaluationRequest{
		SystemPrompt:    exp.SystemPrompt,
		UserMessage:     tc.UserMessage,
		ExpectedOutput:  tc.ExpectedOutput,
		SelectedModels:  values,
		SelectedMetrics: metrics,
	}, nil)
	if err != nil {
		b.log.Error("Evaluation failed",
			zap.String("test_case_id", tc.ID),
			zap.Error(err))
		return 0, 0, err
	}

	persisted, modelErrors := 0, 0
	for _, r := range responses {
		modelID, ok := ids[r.Model]
		if !ok {
			continue
		}
		if !r.Done && r.Error == "" {
			r.Error = "stream ended before the model finished"
		}
		result := model.ResultFromResponse(exp.ID, tc.ID, modelID, r)
		if _, err := b.client.CreateResult(ctx, result); err != nil {
			b.log.Error("Failed to store result",
				zap.String("test_case_id", tc.ID),
				zap.String("model", r.Model),
				zap.Error(err))
			continue
		}
		persisted++
		if r.Error != "" {
			modelErrors++
		}
	}
	return persisted, modelErrors, nil
}
