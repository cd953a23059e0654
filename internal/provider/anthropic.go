package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// AnthropicBackend serves Claude models through the Messages API.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropic creates a backend. An empty baseURL uses the Anthropic default.
func NewAnthropic(apiKey, baseURL string, opts ...option.RequestOption) *AnthropicBackend {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)
	return &AnthropicBackend{client: anthropic.NewClient(clientOpts...)}
}

func (b *AnthropicBackend) params(modelID string, p Prompt) anthropic.MessageNewParams {
	user := p.User
	if p.JSONMode {
		user += "\n\nRespond with a single JSON object and nothing else."
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}
	return params
}

func (b *AnthropicBackend) StreamText(ctx context.Context, modelID string, p Prompt, onDelta func(string)) (Usage, error) {
	stream := b.client.Messages.NewStreaming(ctx, b.params(modelID, p))
	defer stream.Close()

	var usage Usage
	for stream.Next() {
		switch event := stream.Current().AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := event.Delta.AsAny().(anthropic.TextDelta); ok {
				onDelta(delta.Text)
			}
		case anthropic.MessageDeltaEvent:
			if event.Usage.OutputTokens > 0 {
				usage.OutputTokens = event.Usage.OutputTokens
			}
		}
	}
	if err := stream.Err(); err != nil {
		return usage, err
	}
	return usage, nil
}

func (b *AnthropicBackend) CompleteText(ctx context.Context, modelID string, p Prompt) (string, Usage, error) {
	msg, err := b.client.Messages.New(ctx, b.params(modelID, p))
	if err != nil {
		return "", Usage{}, err
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	return text.String(), Usage{OutputTokens: msg.Usage.OutputTokens}, nil
}
