package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// ErrorKind separates infrastructure failures from model-quality
// failures. A probe never sees these as verdicts; the runner surfaces
// them as test-execution errors.
type ErrorKind string

const (
	KindAuth        ErrorKind = "authentication"
	KindRateLimit   ErrorKind = "rate_limit"
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "provider_unavailable"
	KindMalformed   ErrorKind = "malformed_response"
	KindConfig      ErrorKind = "configuration"
)

type CallError struct {
	Kind       ErrorKind
	Provider   ID
	StatusCode int
	Message    string
	Attempts   int
	ElapsedMS  int64
}

func (e *CallError) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("%s error", e.Kind)}
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d elapsed_ms=%d", e.Attempts, e.ElapsedMS))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, " ")
}

// Retryable reports whether the retry controller may attempt the call
// again. Only rate limits and timeouts qualify.
func (e *CallError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Kind == KindRateLimit || e.Kind == KindTimeout
}

func AsCallError(err error) (*CallError, bool) {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr, true
	}
	return nil, false
}

func configError(id ID, format string, args ...any) *CallError {
	return &CallError{
		Kind:     KindConfig,
		Provider: id,
		Message:  fmt.Sprintf(format, args...),
	}
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status == 408:
		return KindTimeout
	case status >= 500:
		return KindUnavailable
	default:
		return KindMalformed
	}
}

// transportError classifies a failed http round trip. Deadline and
// net-level timeouts map to KindTimeout so the retry layer can act.
func transportError(id ID, apiKey string, err error) *CallError {
	kind := KindUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = KindTimeout
		}
	}
	return &CallError{
		Kind:     kind,
		Provider: id,
		Message:  Redact(err.Error(), apiKey),
	}
}

var keyShapePattern = regexp.MustCompile(`\b(sk-[A-Za-z0-9_-]{8,}|AIza[A-Za-z0-9_-]{10,})\b`)

// Redact scrubs the configured API key and anything key-shaped from text
// echoed back in errors or raw payloads. Keys must never reach logs or
// reports.
func Redact(text, apiKey string) string {
	out := text
	if key := strings.TrimSpace(apiKey); key != "" {
		out = strings.ReplaceAll(out, key, "[redacted]")
	}
	return keyShapePattern.ReplaceAllString(out, "[redacted]")
}
