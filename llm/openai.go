package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hazyhaar/siteforge/horosafe"
)

const defaultOpenAIBase = "https://api.openai.com"

// openaiClient calls the /v1/chat/completions API. Any compatible server
// works (OpenAI, Azure OpenAI proxies, vLLM, Ollama).
type openaiClient struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func newOpenAI(cfg Config) *openaiClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBase
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
	}
	return &openaiClient{
		endpoint: strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1"),
		apiKey:   cfg.APIKey,
		model:    model,
		client:   &http.Client{},
	}
}

func (c *openaiClient) Name() string { return ProviderOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *openaiClient) Complete(ctx context.Context, p Prompt) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	model := p.Model
	if model == "" {
		model = c.model
	}

	var msgs []chatMessage
	if p.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: p.User})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.endpoint + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
	}

	data, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var result chatResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return result.Choices[0].Message.Content, nil
}
