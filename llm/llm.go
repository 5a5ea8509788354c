// Package llm is the text-generation boundary: a prompt goes in, text comes
// out. Providers are an OpenAI-compatible chat completions API, Google Gemini
// and a static responder for development and tests.
//
// Every call is bounded by Config.Timeout. Nothing is retried.
//
// Usage:
//
//	m, err := llm.New(llm.Config{Provider: llm.ProviderOpenAI, APIKey: key})
//	text, err := m.Complete(ctx, llm.Prompt{System: sys, User: msg, Model: "gpt-4o"})
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNotConfigured is returned at call time when the provider has no
	// credentials.
	ErrNotConfigured = errors.New("llm: provider not configured")
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderStatic = "static"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 2 * time.Minute

// Prompt is one completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// Model overrides the provider default when set.
	Model string
}

// Model produces text for a prompt.
type Model interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	// BaseURL of an OpenAI-compatible server (default https://api.openai.com)
	// or of the Gemini API.
	BaseURL string `yaml:"base_url"`
	// DefaultModel is used when a Prompt names none.
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
	// StaticText is the answer of the static provider.
	StaticText string       `yaml:"static_text"`
	Logger     *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New builds the configured provider wrapped with the timeout ceiling.
// A missing API key is not an error here; calls fail with ErrNotConfigured.
func New(cfg Config) (Model, error) {
	cfg.defaults()
	var m Model
	switch cfg.Provider {
	case ProviderOpenAI:
		m = newOpenAI(cfg)
	case ProviderGemini:
		g, err := newGemini(cfg)
		if err != nil {
			return nil, err
		}
		m = g
	case ProviderStatic:
		m = Static(cfg.StaticText)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	return WithTimeout(m, cfg.Timeout), nil
}

type timeoutModel struct {
	next    Model
	timeout time.Duration
}

// WithTimeout bounds every Complete call of m. A call that exceeds the
// ceiling fails with an error wrapping context.DeadlineExceeded.
func WithTimeout(m Model, d time.Duration) Model {
	return &timeoutModel{next: m, timeout: d}
}

func (t *timeoutModel) Name() string { return t.next.Name() }

func (t *timeoutModel) Complete(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	text, err := t.next.Complete(ctx, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", fmt.Errorf("llm %s: %w", t.next.Name(), err)
	}
	slog.Debug("llm: completion", "provider", t.next.Name(), "model", p.Model,
		"chars", len(text), "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Func adapts a function to Model. Handy in tests.
type Func func(ctx context.Context, p Prompt) (string, error)

func (f Func) Complete(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }
func (f Func) Name() string                                           { return "func" }

// Static always answers with the same text.
type Static string

func (s Static) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s), nil
}

func (s Static) Name() string { return ProviderStatic }
