package provider

import (
	"context"

	"google.golang.org/genai"
)

// GoogleBackend serves Gemini models through the Gemini API.
type GoogleBackend struct {
	client *genai.Client
}

// NewGoogle creates a backend. An empty baseURL uses the Gemini API default.
func NewGoogle(ctx context.Context, apiKey, baseURL string) (*GoogleBackend, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GoogleBackend{client: client}, nil
}

func (b *GoogleBackend) config(p Prompt) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func (b *GoogleBackend) StreamText(ctx context.Context, modelID string, p Prompt, onDelta func(string)) (Usage, error) {
	var usage Usage
	for resp, err := range b.client.Models.GenerateContentStream(ctx, modelID, genai.Text(p.User), b.config(p)) {
		if err != nil {
			return usage, err
		}
		onDelta(resp.Text())
		if resp.UsageMetadata != nil && resp.UsageMetadata.CandidatesTokenCount > 0 {
			usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
		}
	}
	return usage, nil
}

func (b *GoogleBackend) CompleteText(ctx context.Context, modelID string, p Prompt) (string, Usage, error) {
	resp, err := b.client.Models.GenerateContent(ctx, modelID, genai.Text(p.User), b.config(p))
	if err != nil {
		return "", Usage{}, err
	}
	var usage Usage
	if resp.UsageMetadata != nil {
		usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return resp.Text(), usage, nil
}
