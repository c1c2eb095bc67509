package webhook

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMinDeliveryGap = 100 * time.Millisecond

// RateLimiter enforces a minimum spacing between consecutive delivery
// starts to the same webhook id. Distinct ids never wait on each other.
type RateLimiter struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter with the given minimum gap between
// deliveries to one destination.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		interval = defaultMinDeliveryGap
	}
	return &RateLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a delivery to the webhook id may begin. The slot is
// consumed at return time, so the spacing is measured between delivery
// starts, not completions.
func (r *RateLimiter) Wait(ctx context.Context, webhookID string) error {
	return r.limiterFor(webhookID).Wait(ctx)
}

func (r *RateLimiter) limiterFor(webhookID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[webhookID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(r.interval), 1)
		r.limiters[webhookID] = limiter
	}
	return limiter
}
