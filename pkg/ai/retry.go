package ai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxRetries caps rate-limit retries after the initial attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the first backoff wait; each retry doubles it.
	DefaultBaseDelay = 3 * time.Second
)

// IsRateLimited reports whether err carries a rate-limit or quota signal:
// an HTTP 429 status, a RESOURCE_EXHAUSTED code, or the substring "quota".
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota")
}

// RetryPolicy retries an image generation call on rate-limit signals with
// exponential backoff: BaseDelay << attempt, up to MaxRetries extra attempts.
// No jitter and no circuit breaker; the caller treats total failure as a
// soft, reportable condition.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// Sleep overrides the backoff wait, used by tests to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy, substituting defaults for non-positive values.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: baseDelay}
}

// Do executes op, retrying only on rate-limit errors while the attempt count
// stays below MaxRetries. Any other error propagates immediately.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) (*ImagePayload, error)) (*ImagePayload, error) {
	for attempt := 0; ; attempt++ {
		payload, err := op(ctx)
		if err == nil {
			return payload, nil
		}
		if !IsRateLimited(err) || attempt >= p.MaxRetries {
			return nil, err
		}
		delay := p.BaseDelay << attempt
		slog.Warn("generation rate limited, backing off",
			"attempt", attempt+1,
			"max_retries", p.MaxRetries,
			"delay_ms", delay.Milliseconds(),
		)
		if err := p.wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
