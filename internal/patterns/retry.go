package patterns

import (
	"context"
	"time"

	"github.com/ashendes/momo-checkout/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Retry defaults used for provider calls
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy retries an operation with exponential backoff while its error is retryable.
// The zero value never retries.
type RetryPolicy struct {
	name       string
	service    string
	maxRetries int
	baseDelay  time.Duration
	retryable  func(error) bool
	sleep      SleepFunc
}

// NewRetryPolicy creates a retry policy. A nil retryable predicate retries every error.
func NewRetryPolicy(name, service string, maxRetries int, baseDelay time.Duration, retryable func(error) bool) *RetryPolicy {
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	return &RetryPolicy{
		name:       name,
		service:    service,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		retryable:  retryable,
		sleep:      SleepContext,
	}
}

// WithMaxRetries returns a copy of the policy with a different retry budget
func (p *RetryPolicy) WithMaxRetries(n int) *RetryPolicy {
	cp := *p
	if n < 0 {
		n = 0
	}
	cp.maxRetries = n
	return &cp
}

// WithSleep returns a copy of the policy that waits using sleep
func (p *RetryPolicy) WithSleep(sleep SleepFunc) *RetryPolicy {
	cp := *p
	cp.sleep = sleep
	return &cp
}

// MaxRetries returns the retry budget (attempts = MaxRetries + 1)
func (p *RetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// Backoff returns the wait before retry number attempt (0-based): base * 2^attempt
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	return p.baseDelay * time.Duration(1<<uint(attempt))
}

// Execute runs fn, retrying retryable failures. The first attempt is immediate and
// the last error is returned unchanged once the budget is spent.
func (p *RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.maxRetries || p.retryable == nil || !p.retryable(err) {
			return err
		}

		delay := p.Backoff(attempt)
		metrics.RetryAttempts.WithLabelValues(p.service, p.name).Inc()
		log.WithFields(log.Fields{
			"operation": p.name,
			"attempt":   attempt + 1,
			"delay_ms":  delay.Milliseconds(),
			"error":     err.Error(),
		}).Warn("Retrying after retryable failure")

		sleep := p.sleep
		if sleep == nil {
			sleep = SleepContext
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

// SleepContext blocks for d, returning early with ctx.Err() when ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
