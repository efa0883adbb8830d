package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type googleClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

func newGoogleClient(cfg Config) *googleClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &googleClient{
		cfg:     cfg,
		baseURL: baseURL,
		http:    newHTTPClient(cfg),
	}
}

func (c *googleClient) ID() ID { return Google }

func (c *googleClient) Model() string { return c.cfg.Model }

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	SystemInstruction *googleContent `json:"system_instruction,omitempty"`
	Contents          []googleContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens int      `json:"maxOutputTokens"`
		Temperature     *float64 `json:"temperature,omitempty"`
	} `json:"generationConfig"`
}

type googleResponse struct {
	Candidates []struct {
		Content      googleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type googleErrorEnvelope struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *googleClient) Send(ctx context.Context, req Request) (*Response, error) {
	if err := checkCall(c.cfg, req); err != nil {
		return nil, err
	}

	body := googleRequest{
		Contents: []googleContent{
			{Role: "user", Parts: []googlePart{{Text: req.Text}}},
		},
	}
	if req.System != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.System}}}
	}
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens
	if req.Temperature > 0 {
		temp := req.Temperature
		body.GenerationConfig.Temperature = &temp
	}

	// Key travels in a header, never the URL, so it cannot surface in
	// error messages carrying the request target.
	headers := map[string]string{
		"x-goog-api-key": c.cfg.APIKey,
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.cfg.Model)
	raw, err := postJSON(ctx, c.http, c.cfg, url, headers, body)
	if err != nil {
		return nil, err
	}
	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		var envelope googleErrorEnvelope
		_ = json.Unmarshal(raw.Body, &envelope)
		return nil, apiError(c.cfg, raw, envelope.Error.Message)
	}

	var decoded googleResponse
	if err := json.Unmarshal(raw.Body, &decoded); err != nil {
		return nil, malformedError(c.cfg, raw, "decode generate response: "+err.Error())
	}
	if len(decoded.Candidates) == 0 {
		return nil, malformedError(c.cfg, raw, "generate response has no candidates")
	}
	candidate := decoded.Candidates[0]

	parts := make([]string, 0, len(candidate.Content.Parts))
	for _, part := range candidate.Content.Parts {
		if strings.TrimSpace(part.Text) != "" {
			parts = append(parts, strings.TrimSpace(part.Text))
		}
	}

	return &Response{
		Text:         strings.Join(parts, "\n"),
		InputTokens:  decoded.UsageMetadata.PromptTokenCount,
		OutputTokens: decoded.UsageMetadata.CandidatesTokenCount,
		LatencyMS:    float64(raw.Duration.Milliseconds()),
		FinishReason: googleFinishReason(candidate.FinishReason),
		Raw:          redactRaw(c.cfg, raw.Body),
	}, nil
}

func googleFinishReason(finishReason string) FinishReason {
	switch finishReason {
	case "STOP":
		return FinishCompleted
	case "MAX_TOKENS":
		return FinishTruncated
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT":
		return FinishRefused
	default:
		return FinishError
	}
}
