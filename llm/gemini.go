package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiClient calls the Gemini API through the official genai SDK.
type geminiClient struct {
	client *genai.Client
	model  string
}

func newGemini(cfg Config) (Model, error) {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if cfg.APIKey == "" {
		return &geminiClient{model: model}, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("llm: create GenAI client: %w", err)
	}
	return &geminiClient{client: client, model: model}, nil
}

func (g *geminiClient) Name() string { return ProviderGemini }

func (g *geminiClient) Complete(ctx context.Context, p Prompt) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}
	model := p.Model
	if model == "" {
		model = g.model
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(p.Temperature)),
	}
	if p.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(p.MaxTokens)
	}
	if p.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)}, gc)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
