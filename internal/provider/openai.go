package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type openAIClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

func newOpenAIClient(cfg Config) *openAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &openAIClient{
		cfg:     cfg,
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (c *openAIClient) ID() ID { return OpenAI }

func (c *openAIClient) Model() string { return c.cfg.Model }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openAIErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openAIClient) Send(ctx context.Context, req Request) (*Response, error) {
	if err := checkCall(c.cfg, req); err != nil {
		return nil, err
	}

	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Text})

	body := openAIRequest{
		Model:     c.cfg.Model,
		MaxTokens: req.MaxTokens,
		Messages:  messages,
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		body.Temperature = &temp
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}
	raw, err := postJSON(ctx, c.http, c.cfg, c.baseURL+"/v1/chat/completions", headers, body)
	if err != nil {
		return nil, err
	}
	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		var envelope openAIErrorEnvelope
		_ = json.Unmarshal(raw.Body, &envelope)
		return nil, apiError(c.cfg, raw, envelope.Error.Message)
	}

	var decoded openAIResponse
	if err := json.Unmarshal(raw.Body, &decoded); err != nil {
		return nil, malformedError(c.cfg, raw, "decode completion response: "+err.Error())
	}
	if len(decoded.Choices) == 0 {
		return nil, malformedError(c.cfg, raw, "completion response has no choices")
	}
	choice := decoded.Choices[0]

	return &Response{
		Text:         strings.TrimSpace(choice.Message.Content),
		InputTokens:  decoded.Usage.PromptTokens,
		OutputTokens: decoded.Usage.CompletionTokens,
		LatencyMS:    float64(raw.Duration.Milliseconds()),
		FinishReason: openAIFinishReason(choice.FinishReason),
		Raw:          redactRaw(c.cfg, raw.Body),
	}, nil
}

func openAIFinishReason(finishReason string) FinishReason {
	switch finishReason {
	case "stop":
		return FinishCompleted
	case "length":
		return FinishTruncated
	case "content_filter":
		return FinishRefused
	default:
		return FinishError
	}
}
