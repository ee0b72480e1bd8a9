package patterns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashendes/momo-checkout/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errPermanent = errors.New("permanent")
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := NewRetryPolicy("create", "test", DefaultMaxRetries, DefaultBaseDelay, isTransient).WithSleep(sleeper.sleep)

	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, sleeper.delays)
}

func TestRetryPolicy_ExhaustsBudget(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := NewRetryPolicy("status", "test", 3, time.Second, isTransient).WithSleep(sleeper.sleep)

	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, attempts, "one initial attempt plus three retries")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.delays)
}

func TestRetryPolicy_ReturnsLastErrorVerbatim(t *testing.T) {
	policy := NewRetryPolicy("status", "test", 2, time.Millisecond, nil).WithSleep(func(context.Context, time.Duration) error { return nil })

	var last error
	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		last = errors.New("attempt failure")
		return last
	})

	assert.Same(t, last, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicy_DoesNotRetryPermanentErrors(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := NewRetryPolicy("create", "test", 3, time.Second, isTransient).WithSleep(sleeper.sleep)

	attempts := 0
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errPermanent
	})

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sleeper.delays)
}

func TestRetryPolicy_WithMaxRetries(t *testing.T) {
	base := NewRetryPolicy("create", "test", 3, time.Second, isTransient)
	none := base.WithMaxRetries(0).WithSleep(func(context.Context, time.Duration) error { return nil })

	attempts := 0
	_ = none.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errTransient
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, 3, base.MaxRetries(), "copy does not mutate the original")
	assert.Equal(t, 0, base.WithMaxRetries(-5).MaxRetries())
}

func TestRetryPolicy_StopsWhenContextCancelled(t *testing.T) {
	policy := NewRetryPolicy("status", "test", 3, time.Hour, isTransient)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Execute(ctx, func(ctx context.Context) error {
			attempts++
			return errTransient
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 1, attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := NewRetryPolicy("x", "test", 3, 1000*time.Millisecond, nil)
	assert.Equal(t, 1000*time.Millisecond, policy.Backoff(0))
	assert.Equal(t, 2000*time.Millisecond, policy.Backoff(1))
	assert.Equal(t, 4000*time.Millisecond, policy.Backoff(2))
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	bulkhead := NewBulkhead(1, "provider", "test").WithWait(10 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = bulkhead.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := bulkhead.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrBulkheadFull)
	assert.Equal(t, 1, bulkhead.InUse())

	close(release)
	assert.Eventually(t, func() bool { return bulkhead.InUse() == 0 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, bulkhead.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, "provider", bulkhead.GetName())
}

func TestBulkhead_PropagatesResult(t *testing.T) {
	bulkhead := NewBulkhead(2, "provider", "test")
	assert.ErrorIs(t, bulkhead.Execute(context.Background(), func() error { return errPermanent }), errPermanent)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	settings := DefaultBreakerSettings()
	breaker := NewCircuitBreaker("provider-open", "test", settings)

	for i := 0; i < 3; i++ {
		err := breaker.Execute(func() error { return errTransient })
		assert.ErrorIs(t, err, errTransient)
	}

	assert.Equal(t, "open", breaker.GetState())
	assert.Equal(t, 1, breaker.GetStateValue())

	called := false
	err := breaker.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_IgnoresErrorsMarkedSuccessful(t *testing.T) {
	settings := DefaultBreakerSettings()
	settings.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errPermanent) }
	breaker := NewCircuitBreaker("provider-client-errors", "test", settings)

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, breaker.Execute(func() error { return errPermanent }), errPermanent)
	}
	assert.Equal(t, "closed", breaker.GetState())
	assert.Equal(t, 0, breaker.GetStateValue())
	assert.Zero(t, testutil.ToFloat64(metrics.CircuitBreakerFailures.WithLabelValues("test", "provider-client-errors")))

	assert.ErrorIs(t, breaker.Execute(func() error { return errTransient }), errTransient)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CircuitBreakerFailures.WithLabelValues("test", "provider-client-errors")))
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(ProviderTimeout), deadline, time.Second)
}
