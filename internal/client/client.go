// Package client consumes the evaluation API: it follows evaluation
// streams and records experiment results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/logger"
	"github.com/wzyjerry/llm-arena/internal/stream"
	"go.uber.org/zap"
)

// Client talks to a running web API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New creates a client for baseURL. A nil httpClient uses one without a
// timeout, since evaluation streams can run for minutes.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     logger.Named("client"),
	}
}

// ErrStreamFailed reports a server-side failure that ended the whole
// evaluation stream.
var ErrStreamFailed = errors.New("evaluation stream failed")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Detail)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := gjson.GetBytes(body, "detail").String()
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}
	return &APIError{Status: resp.StatusCode, Detail: detail}
}

// Evaluate posts req and follows the event stream until it ends, calling
// onUpdate with a fresh snapshot after every event. It returns the final
// responses in selection order.
func (c *Client) Evaluate(ctx context.Context, req model.EvaluationRequest, onUpdate func([]model.ModelResponse)) ([]model.ModelResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	asm := NewAssembler(req.SelectedModels)
	dec := stream.NewDecoder(resp.Body)
	for {
		e, err := dec.NextEvent()
		if errors.Is(err, io.EOF) {
			break
		}
		var fe *stream.FrameError
		if errors.As(err, &fe) {
			c.log.Warn("Skipping malformed frame", zap.String("payload", fe.Payload), zap.Error(fe.Err))
			continue
		}
		if err != nil {
			return asm.Snapshot(), fmt.Errorf("failed to read stream: %w", err)
		}

		if e.Model == model.SystemModel {
			c.log.Error("Evaluation stream failed on the server", zap.String("error", e.Error))
			return asm.Snapshot(), fmt.Errorf("%w: %s", ErrStreamFailed, e.Error)
		}

		asm.Apply(e)
		if onUpdate != nil {
			onUpdate(asm.Snapshot())
		}
	}
	return asm.Snapshot(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// GetExperiment fetches an experiment with its models.
func (c *Client) GetExperiment(ctx context.Context, id string) (*model.Experiment, error) {
	var exp model.Experiment
	if err := c.doJSON(ctx, http.MethodGet, "/api/experiments/"+url.PathEscape(id), nil, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

// ListTestCases returns the test cases linked to an experiment.
func (c *Client) ListTestCases(ctx context.Context, experimentID string) ([]model.TestCase, error) {
	var cases []model.TestCase
	path := "/api/experiments/" + url.PathEscape(experimentID) + "/test-cases"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// CreateResult stores one experiment result.
func (c *Client) CreateResult(ctx context.Context, r model.ExperimentResultCreate) (*model.ExperimentResult, error) {
	var out model.ExperimentResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/experiment-results", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary returns per-model aggregates of an experiment's results.
func (c *Client) Summary(ctx context.Context, experimentID string) ([]model.ModelSummary, error) {
	var out []model.ModelSummary
	path := "/api/experiments/" + url.PathEscape(experimentID) + "/summary"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
