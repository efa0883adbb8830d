// Package provider abstracts the LLM backends under test behind a single
// request/response contract. Each backend translates the generic request
// into its own wire shape and normalizes token accounting and latency
// back into a Response.
package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

type ID string

const (
	Anthropic ID = "anthropic"
	OpenAI    ID = "openai"
	Google    ID = "google"
)

func ParseID(value string) (ID, bool) {
	switch ID(strings.ToLower(strings.TrimSpace(value))) {
	case Anthropic:
		return Anthropic, true
	case OpenAI:
		return OpenAI, true
	case Google:
		return Google, true
	}
	return "", false
}

// DefaultModel returns the model used when the session config names none.
func DefaultModel(id ID) string {
	switch id {
	case OpenAI:
		return "gpt-4o"
	case Google:
		return "gemini-2.0-flash"
	default:
		return "claude-sonnet-4-20250514"
	}
}

type FinishReason string

const (
	FinishCompleted FinishReason = "completed"
	FinishTruncated FinishReason = "truncated"
	FinishRefused   FinishReason = "refused"
	FinishError     FinishReason = "error"
)

// Request is a prompt in backend-neutral form. Treated as immutable once
// constructed; backends and probes never mutate it.
type Request struct {
	Text        string            `json:"text" yaml:"text"`
	System      string            `json:"system,omitempty" yaml:"system,omitempty"`
	MaxTokens   int               `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64           `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Response is the normalized result of exactly one backend call.
// LatencyMS is wall-clock around the network call, inclusive of network
// time, exclusive of local preprocessing. Raw holds the provider payload
// with the API key redacted.
type Response struct {
	Text         string          `json:"text"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	LatencyMS    float64         `json:"latency_ms"`
	FinishReason FinishReason    `json:"finish_reason"`
	Raw          json.RawMessage `json:"-"`
}

// Config selects and parameterizes a backend for one test session.
// Loaded once, read-only and shared by all workers afterwards.
type Config struct {
	Provider          ID      `json:"provider" yaml:"provider"`
	Model             string  `json:"model" yaml:"model"`
	APIKey            string  `json:"api_key" yaml:"api_key"`
	BaseURL           string  `json:"base_url" yaml:"base_url"`
	TimeoutSeconds    float64 `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries        int     `json:"max_retries" yaml:"max_retries"`
	RetryBaseDelayMS  int     `json:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMS   int     `json:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	RequestsPerMinute int     `json:"requests_per_minute" yaml:"requests_per_minute"`
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

func (c Config) RetryBaseDelay() time.Duration {
	if c.RetryBaseDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

func (c Config) RetryMaxDelay() time.Duration {
	if c.RetryMaxDelayMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RetryMaxDelayMS) * time.Millisecond
}

// Client issues prompts to one backend. Implementations perform exactly
// one outbound network call per Send; retries belong to Caller.
type Client interface {
	ID() ID
	Model() string
	Send(ctx context.Context, req Request) (*Response, error)
}

// New builds the backend client selected by cfg.Provider.
func New(cfg Config) (Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case OpenAI:
		return newOpenAIClient(cfg), nil
	case Google:
		return newGoogleClient(cfg), nil
	default:
		return newAnthropicClient(cfg), nil
	}
}

// ValidateConfig fails fast on configuration the backends cannot use.
// Missing API keys are reported at call time as authentication errors.
func ValidateConfig(cfg Config) error {
	if cfg.Provider != "" {
		if _, ok := ParseID(string(cfg.Provider)); !ok {
			return configError(cfg.Provider, "unknown provider %q (supported: anthropic, openai, google)", cfg.Provider)
		}
	}
	if cfg.TimeoutSeconds < 0 {
		return configError(cfg.Provider, "timeout_seconds must not be negative, got %v", cfg.TimeoutSeconds)
	}
	if cfg.MaxRetries < 0 {
		return configError(cfg.Provider, "max_retries must not be negative, got %d", cfg.MaxRetries)
	}
	return nil
}

// checkCall guards every Send before any network attempt.
func checkCall(cfg Config, req Request) error {
	if req.MaxTokens <= 0 {
		return configError(cfg.Provider, "request max_tokens must be > 0, got %d", req.MaxTokens)
	}
	if strings.TrimSpace(req.Text) == "" {
		return configError(cfg.Provider, "request text must not be empty")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &CallError{
			Kind:     KindAuth,
			Provider: cfg.Provider,
			Message:  "api key is not configured",
		}
	}
	return nil
}
