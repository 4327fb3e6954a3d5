package httpx

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiter paces outgoing requests per host. A zero delay disables
// pacing entirely.
type hostLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	every    time.Duration
}

func newHostLimiter(every time.Duration) *hostLimiter {
	return &hostLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
	}
}

// Wait blocks until the host's limiter admits a request or the context
// ends.
func (l *hostLimiter) Wait(ctx context.Context, host string) error {
	if l.every <= 0 {
		return ctx.Err()
	}
	return l.get(host).Wait(ctx)
}

// get returns the host's limiter, creating it on first use.
func (l *hostLimiter) get(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Another goroutine may have created it in between.
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Every(l.every), 1)
	l.limiters[host] = limiter
	return limiter
}
