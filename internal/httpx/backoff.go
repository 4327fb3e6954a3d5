package httpx

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the delay before retry attempt n as
// min(Base^n + jitter, Cap) with jitter drawn uniformly from [0, Jitter).
type Backoff struct {
	Base   float64       // exponent base, in seconds
	Jitter time.Duration // upper bound of the random jitter
	Cap    time.Duration // ceiling for a single delay
}

// DefaultBackoff returns the standard retry curve: 3^n seconds plus up
// to 10s of jitter, capped at 10 minutes.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   3,
		Jitter: 10 * time.Second,
		Cap:    10 * time.Minute,
	}
}

// Delay returns the wait before the next attempt. The attempt counter
// is 1-based.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	seconds := math.Pow(b.Base, float64(attempt))
	// Check in float space so large exponents cannot overflow Duration.
	if seconds >= b.Cap.Seconds() {
		return b.Cap
	}
	delay := time.Duration(seconds * float64(time.Second))
	if b.Jitter > 0 {
		delay += rand.N(b.Jitter)
	}
	if delay > b.Cap {
		return b.Cap
	}
	return delay
}
