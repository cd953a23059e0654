package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/wzyjerry/llm-arena/internal/provider"
)

const judgeSystemPrompt = "You are an expert evaluator."

const judgePromptTemplate = `You are an expert evaluator tasked with comparing a model's response against an expected output. Evaluate the semantic similarity, factual accuracy, and overall quality of the response.

Consider the following aspects in your evaluation:
- Semantic similarity: How well does the response match the meaning and intent of the expected output?
- Factual accuracy: Are all facts and details consistent with the expected output?
- Completeness: Does the response cover all key points from the expected output?
- Clarity and coherence: Is the response well-structured and clearly expressed?

Expected Output:
%s

Actual Response:
%s

Rate the response on a scale of 0 to 100:
- 90-100: Near perfect match in meaning and content
- 70-89: Good match with minor differences
- 50-69: Partial match with some key differences
- 0-49: Poor match or significant differences

Return only a JSON object with a "score" field containing your rating from 0-100.
Example: {"score": 85}`

// Completer runs one non-streaming model call.
type Completer interface {
	Complete(ctx context.Context, p provider.Prompt) (*provider.Completion, error)
}

// Judge grades a response with a language model.
type Judge struct {
	completer Completer
}

// NewJudge creates a judge backed by c.
func NewJudge(c Completer) *Judge {
	return &Judge{completer: c}
}

// JudgePrompt renders the grading prompt.
func JudgePrompt(response, expected string) provider.Prompt {
	return provider.Prompt{
		System:   judgeSystemPrompt,
		User:     fmt.Sprintf(judgePromptTemplate, expected, response),
		JSONMode: true,
	}
}

// Score returns the judge's grade scaled to [0, 1].
func (j *Judge) Score(ctx context.Context, response, expected string) (float64, error) {
	c, err := j.completer.Complete(ctx, JudgePrompt(response, expected))
	if err != nil {
		return 0, fmt.Errorf("judge call failed: %w", err)
	}
	return ParseJudgeScore(c.Text)
}

// ParseJudgeScore reads the "score" field of a judge reply, tolerating
// markdown fences, and scales it from 0..100 to 0..1.
func ParseJudgeScore(text string) (float64, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if !gjson.Valid(text) {
		return 0, fmt.Errorf("judge reply is not JSON: %q", text)
	}
	score := gjson.Get(text, "score")
	if !score.Exists() {
		return 0, fmt.Errorf("judge reply has no score: %q", text)
	}

	var raw float64
	switch score.Type {
	case gjson.Number:
		raw = score.Float()
	case gjson.String:
		raw = score.Float()
		if raw == 0 && strings.TrimSpace(score.Str) != "0" {
			return 0, fmt.Errorf("judge score is not a number: %q", score.Str)
		}
	default:
		return 0, fmt.Errorf("judge score is not a number: %s", score.Raw)
	}
	if math.IsNaN(raw) {
		return 0, fmt.Errorf("judge score is not a number: %s", score.Raw)
	}

	return math.Max(0, math.Min(100, raw)) / 100, nil
}
