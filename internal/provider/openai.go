package provider

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIBackend serves OpenAI chat models and any OpenAI-compatible API,
// such as Groq, selected by base URL.
type OpenAIBackend struct {
	client openai.Client
}

// NewOpenAI creates a backend. An empty baseURL uses the OpenAI default.
func NewOpenAI(apiKey, baseURL string, opts ...option.RequestOption) *OpenAIBackend {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)
	return &OpenAIBackend{client: openai.NewClient(clientOpts...)}
}

func (b *OpenAIBackend) params(modelID string, p Prompt) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: messages,
	}
	if p.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

func (b *OpenAIBackend) StreamText(ctx context.Context, modelID string, p Prompt, onDelta func(string)) (Usage, error) {
	params := b.params(modelID, p)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := b.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var usage Usage
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			onDelta(choice.Delta.Content)
		}
		if chunk.Usage.CompletionTokens > 0 {
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
	}
	if err := stream.Err(); err != nil {
		return usage, err
	}
	return usage, nil
}

func (b *OpenAIBackend) CompleteText(ctx context.Context, modelID string, p Prompt) (string, Usage, error) {
	resp, err := b.client.Chat.Completions.New(ctx, b.params(modelID, p))
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, Usage{OutputTokens: resp.Usage.CompletionTokens}, nil
}
