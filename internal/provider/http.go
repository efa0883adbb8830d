package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// rawResult is one wire exchange: status, body and the wall-clock
// duration measured around the round trip only.
type rawResult struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

func newHTTPClient(cfg Config) *http.Client {
	return &http.Client{
		Timeout:   cfg.Timeout(),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// postJSON performs exactly one outbound call. Errors carry the typed
// taxonomy; the body of non-2xx responses is returned alongside the
// error so backends can extract a redacted provider message.
func postJSON(ctx context.Context, client *http.Client, cfg Config, url string, headers map[string]string, body any) (*rawResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, configError(cfg.Provider, "marshal request body: %v", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, configError(cfg.Provider, "build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			request.Header.Set(k, v)
		}
	}

	start := time.Now()
	response, err := client.Do(request)
	if err != nil {
		return nil, transportError(cfg.Provider, cfg.APIKey, err)
	}
	defer response.Body.Close()

	bodyBytes, readErr := io.ReadAll(response.Body)
	raw := &rawResult{
		StatusCode: response.StatusCode,
		Body:       bodyBytes,
		Duration:   time.Since(start),
	}
	if readErr != nil {
		return raw, transportError(cfg.Provider, cfg.APIKey, readErr)
	}
	return raw, nil
}

// apiError builds the typed failure for a non-2xx exchange; message is
// the provider detail when decodeMessage can find one.
func apiError(cfg Config, raw *rawResult, message string) *CallError {
	if message == "" {
		message = firstBytes(raw.Body, 256)
	}
	return &CallError{
		Kind:       classifyStatus(raw.StatusCode),
		Provider:   cfg.Provider,
		StatusCode: raw.StatusCode,
		Message:    Redact(message, cfg.APIKey),
	}
}

func malformedError(cfg Config, raw *rawResult, detail string) *CallError {
	return &CallError{
		Kind:       KindMalformed,
		Provider:   cfg.Provider,
		StatusCode: raw.StatusCode,
		Message:    Redact(detail, cfg.APIKey),
	}
}

func firstBytes(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}

func redactRaw(cfg Config, body []byte) json.RawMessage {
	redacted := Redact(string(body), cfg.APIKey)
	return json.RawMessage(redacted)
}
