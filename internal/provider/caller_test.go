package provider

import (
	"context"
	"sync"
	"testing"
	"time"
)

// flakyClient fails the first n calls with the given error, then
// succeeds.
type flakyClient struct {
	mu       sync.Mutex
	failFor  int
	err      error
	attempts int
}

func (f *flakyClient) ID() ID        { return Anthropic }
func (f *flakyClient) Model() string { return "fake-model" }

func (f *flakyClient) Send(_ context.Context, _ Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failFor {
		return nil, f.err
	}
	return &Response{Text: "ok", FinishReason: FinishCompleted}, nil
}

func fastRetryConfig(maxRetries int) Config {
	return Config{
		Provider:         Anthropic,
		Model:            "fake-model",
		APIKey:           "test-key",
		MaxRetries:       maxRetries,
		RetryBaseDelayMS: 1,
		RetryMaxDelayMS:  2,
	}
}

func TestCallerRetriesRateLimitUntilBudget(t *testing.T) {
	client := &flakyClient{
		failFor: 10,
		err:     &CallError{Kind: KindRateLimit, Provider: Anthropic, StatusCode: 429, Message: "slow down"},
	}
	caller := NewCaller(client, fastRetryConfig(2), nil)

	_, err := caller.Send(context.Background(), Request{Text: "hi", MaxTokens: 16})
	if err == nil {
		t.Fatal("expected the call to fail after exhausting retries")
	}
	if client.attempts != 3 {
		t.Fatalf("max_retries=2 must mean exactly 3 attempts, got %d", client.attempts)
	}
	callErr, ok := AsCallError(err)
	if !ok {
		t.Fatalf("expected a CallError, got %T: %v", err, err)
	}
	if callErr.Kind != KindRateLimit {
		t.Fatalf("error kind should survive retries, got %s", callErr.Kind)
	}
	if callErr.Attempts != 3 {
		t.Fatalf("error should report 3 attempts, got %d", callErr.Attempts)
	}
}

func TestCallerDoesNotRetryAuthErrors(t *testing.T) {
	client := &flakyClient{
		failFor: 10,
		err:     &CallError{Kind: KindAuth, Provider: Anthropic, StatusCode: 401, Message: "bad key"},
	}
	caller := NewCaller(client, fastRetryConfig(5), nil)

	_, err := caller.Send(context.Background(), Request{Text: "hi", MaxTokens: 16})
	if err == nil {
		t.Fatal("expected an auth failure")
	}
	if client.attempts != 1 {
		t.Fatalf("auth errors must not be retried, got %d attempts", client.attempts)
	}
}

func TestCallerDoesNotRetryMalformedResponses(t *testing.T) {
	client := &flakyClient{
		failFor: 10,
		err:     &CallError{Kind: KindMalformed, Provider: Anthropic, Message: "bad json"},
	}
	caller := NewCaller(client, fastRetryConfig(5), nil)

	_, err := caller.Send(context.Background(), Request{Text: "hi", MaxTokens: 16})
	if err == nil {
		t.Fatal("expected a malformed-response failure")
	}
	if client.attempts != 1 {
		t.Fatalf("malformed responses must not be retried, got %d attempts", client.attempts)
	}
}

func TestCallerRecoversWithinBudget(t *testing.T) {
	client := &flakyClient{
		failFor: 2,
		err:     &CallError{Kind: KindTimeout, Provider: Anthropic, Message: "deadline"},
	}
	caller := NewCaller(client, fastRetryConfig(3), nil)

	resp, err := caller.Send(context.Background(), Request{Text: "hi", MaxTokens: 16})
	if err != nil {
		t.Fatalf("expected recovery within the retry budget: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if client.attempts != 3 {
		t.Fatalf("expected 3 attempts (2 failures + success), got %d", client.attempts)
	}
}

func TestCallerZeroRetriesMeansOneAttempt(t *testing.T) {
	client := &flakyClient{
		failFor: 10,
		err:     &CallError{Kind: KindRateLimit, Provider: Anthropic, Message: "slow down"},
	}
	caller := NewCaller(client, fastRetryConfig(0), nil)

	if _, err := caller.Send(context.Background(), Request{Text: "hi", MaxTokens: 16}); err == nil {
		t.Fatal("expected failure")
	}
	if client.attempts != 1 {
		t.Fatalf("max_retries=0 must mean exactly 1 attempt, got %d", client.attempts)
	}
}

func TestCallerLimiterCancellationIsNotTimeout(t *testing.T) {
	client := &flakyClient{}
	cfg := fastRetryConfig(0)
	cfg.RequestsPerMinute = 60
	caller := NewCaller(client, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := caller.Send(ctx, Request{Text: "hi", MaxTokens: 16})
	if err == nil {
		t.Fatal("expected failure with a cancelled context")
	}
	callErr, ok := AsCallError(err)
	if !ok {
		t.Fatalf("expected a CallError, got %T: %v", err, err)
	}
	if callErr.Kind == KindTimeout {
		t.Fatal("plain cancellation must not be classified as a timeout")
	}
	if callErr.Kind != KindUnavailable {
		t.Fatalf("expected %s, got %s", KindUnavailable, callErr.Kind)
	}
	if client.attempts != 0 {
		t.Fatalf("client must not be called once the context is gone, got %d attempts", client.attempts)
	}
}

func TestCallerLimiterDeadlineIsTimeout(t *testing.T) {
	client := &flakyClient{}
	cfg := fastRetryConfig(0)
	cfg.RequestsPerMinute = 60
	caller := NewCaller(client, cfg, nil)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := caller.Send(ctx, Request{Text: "hi", MaxTokens: 16})
	if err == nil {
		t.Fatal("expected failure with an expired deadline")
	}
	callErr, ok := AsCallError(err)
	if !ok {
		t.Fatalf("expected a CallError, got %T: %v", err, err)
	}
	if callErr.Kind != KindTimeout {
		t.Fatalf("an exceeded deadline is a timeout, got %s", callErr.Kind)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{KindAuth, false},
		{KindRateLimit, true},
		{KindTimeout, true},
		{KindUnavailable, false},
		{KindMalformed, false},
		{KindConfig, false},
	}
	for _, tc := range cases {
		err := &CallError{Kind: tc.kind}
		if err.Retryable() != tc.retryable {
			t.Errorf("%s: expected retryable=%v", tc.kind, tc.retryable)
		}
	}
}
