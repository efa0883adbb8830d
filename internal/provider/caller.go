package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Observer receives call and retry signals. Satisfied by
// telemetry.Observability; nil-safe throughout.
type Observer interface {
	MarkRetry(ctx context.Context, provider string)
	RecordProviderCall(ctx context.Context, provider string, durationMS int64, ok bool)
}

// Caller wraps a Client with the retry/timeout policy: at most
// MaxRetries+1 attempts, per-attempt deadline, exponential backoff with
// ±20% jitter, and an optional client-side rate limiter shared across
// workers. Only rate-limit and timeout errors are retried.
type Caller struct {
	client  Client
	cfg     Config
	limiter *rate.Limiter
	obs     Observer
}

func NewCaller(client Client, cfg Config, obs Observer) *Caller {
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	return &Caller{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
		obs:     obs,
	}
}

func (c *Caller) ID() ID { return c.client.ID() }

func (c *Caller) Model() string { return c.client.Model() }

func (c *Caller) Send(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	attempts := 0

	operation := func() (*Response, error) {
		attempts++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				// Wait fails only when the context ends first. A deadline
				// is a timeout; a plain cancellation is not.
				kind := KindUnavailable
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
					kind = KindTimeout
				}
				return nil, backoff.Permanent(&CallError{
					Kind:     kind,
					Provider: c.client.ID(),
					Message:  "interrupted while waiting for rate limiter: " + err.Error(),
				})
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
		defer cancel()

		callStart := time.Now()
		resp, err := c.client.Send(attemptCtx, req)
		if c.obs != nil {
			c.obs.RecordProviderCall(ctx, string(c.client.ID()), time.Since(callStart).Milliseconds(), err == nil)
		}
		if err == nil {
			return resp, nil
		}
		if callErr, ok := AsCallError(err); ok && callErr.Retryable() {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryBaseDelay()
	policy.RandomizationFactor = 0.2
	policy.Multiplier = 2
	policy.MaxInterval = c.cfg.RetryMaxDelay()

	notify := func(err error, delay time.Duration) {
		if c.obs != nil {
			c.obs.MarkRetry(ctx, string(c.client.ID()))
		}
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)+1),
		backoff.WithNotify(notify),
	)
	if err != nil {
		// Surface the last error annotated with the attempt budget spent.
		if callErr, ok := AsCallError(err); ok {
			annotated := *callErr
			annotated.Attempts = attempts
			annotated.ElapsedMS = time.Since(start).Milliseconds()
			return nil, &annotated
		}
		return nil, err
	}
	return resp, nil
}
