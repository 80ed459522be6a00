// Package retry decides whether and when a failed API request is retried.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"time"
)

// StatusError carries the HTTP status of a rejected request so the policy
// can tell throttling from permanent failures.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Body)
}

// PermanentError marks a failure that repeats on every attempt, such as a
// response body that cannot be decoded.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so ShouldRetry rejects it. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// ExponentialPolicy retries with jittered exponential backoff.
type ExponentialPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialPolicy builds a policy allowing maxRetries retries after the
// first attempt.
func NewExponentialPolicy(maxRetries int) *ExponentialPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ExponentialPolicy{
		maxAttempts: maxRetries + 1,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
	}
}

// WithDelays overrides the backoff bounds.
func (p *ExponentialPolicy) WithDelays(base, maxDelay time.Duration) *ExponentialPolicy {
	p.baseDelay = base
	p.maxDelay = maxDelay
	return p
}

// MaxAttempts is the total number of attempts including the first.
func (p *ExponentialPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error of attempt (1-based) is retryable.
func (p *ExponentialPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
