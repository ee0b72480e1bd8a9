package patterns

import (
	"context"
	"time"
)

// ProviderTimeout bounds a single call to the payment provider
const ProviderTimeout = 30 * time.Second

// WithTimeout derives a context that fails fast after duration.
// A non-positive duration falls back to ProviderTimeout.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = ProviderTimeout
	}
	return context.WithTimeout(parent, duration)
}
