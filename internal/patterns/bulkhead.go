package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/momo-checkout/internal/metrics"
)

// DefaultBulkheadWait bounds how long a call waits for a free slot
const DefaultBulkheadWait = 1 * time.Second

// ErrBulkheadFull is returned when no slot frees up in time
var ErrBulkheadFull = errors.New("bulkhead full")

// Bulkhead implements the bulkhead pattern for resource isolation
type Bulkhead struct {
	semaphore chan struct{}
	wait      time.Duration
	name      string
	service   string
}

// NewBulkhead creates a new bulkhead with specified capacity
func NewBulkhead(size int, name, service string) *Bulkhead {
	if size <= 0 {
		size = 1
	}
	return &Bulkhead{
		semaphore: make(chan struct{}, size),
		wait:      DefaultBulkheadWait,
		name:      name,
		service:   service,
	}
}

// WithWait sets how long Execute waits for a slot
func (b *Bulkhead) WithWait(d time.Duration) *Bulkhead {
	b.wait = d
	return b
}

// Execute runs a function within the bulkhead's resource limits
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(b.wait)
	defer timer.Stop()

	select {
	case b.semaphore <- struct{}{}:
		metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Inc()

		defer func() {
			<-b.semaphore
			metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Dec()
		}()

		return fn()

	case <-timer.C:
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: %w", b.name, ErrBulkheadFull)

	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetName returns the bulkhead name
func (b *Bulkhead) GetName() string {
	return b.name
}

// InUse returns the number of occupied slots
func (b *Bulkhead) InUse() int {
	return len(b.semaphore)
}
