package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

type anthropicClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

func newAnthropicClient(cfg Config) *anthropicClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &anthropicClient{
		cfg:     cfg,
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (c *anthropicClient) ID() ID { return Anthropic }

func (c *anthropicClient) Model() string { return c.cfg.Model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *anthropicClient) Send(ctx context.Context, req Request) (*Response, error) {
	if err := checkCall(c.cfg, req); err != nil {
		return nil, err
	}

	body := anthropicRequest{
		Model:     c.cfg.Model,
		MaxTokens: req.MaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Text}},
		System:    req.System,
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		body.Temperature = &temp
	}
	if len(req.Metadata) > 0 {
		body.Metadata = map[string]any{"user_id": req.Metadata["user_id"]}
	}

	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
	raw, err := postJSON(ctx, c.http, c.cfg, c.baseURL+"/v1/messages", headers, body)
	if err != nil {
		return nil, err
	}
	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		var envelope anthropicErrorEnvelope
		_ = json.Unmarshal(raw.Body, &envelope)
		return nil, apiError(c.cfg, raw, envelope.Error.Message)
	}

	var decoded anthropicResponse
	if err := json.Unmarshal(raw.Body, &decoded); err != nil {
		return nil, malformedError(c.cfg, raw, "decode message response: "+err.Error())
	}

	parts := make([]string, 0, len(decoded.Content))
	for _, block := range decoded.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}

	return &Response{
		Text:         strings.Join(parts, "\n"),
		InputTokens:  decoded.Usage.InputTokens,
		OutputTokens: decoded.Usage.OutputTokens,
		LatencyMS:    float64(raw.Duration.Milliseconds()),
		FinishReason: anthropicFinishReason(decoded.StopReason),
		Raw:          redactRaw(c.cfg, raw.Body),
	}, nil
}

func anthropicFinishReason(stopReason string) FinishReason {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return FinishCompleted
	case "max_tokens":
		return FinishTruncated
	case "refusal":
		return FinishRefused
	default:
		return FinishError
	}
}
