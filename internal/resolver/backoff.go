package resolver

import (
	"math/rand/v2"
	"time"
)

// RetryPolicy schedules retries for failed geocoding attempts:
// backoff(n) = min(maxBackoff, base * 2^(n-1)) + random(0, jitter).
// The jitter spreads retries of many simultaneously-failing addresses so
// they do not hit the provider in a synchronized storm. Threshold is the
// attempt count at which a key escalates to manual review.
type RetryPolicy struct {
	Base       time.Duration
	MaxBackoff time.Duration
	Jitter     time.Duration
	Threshold  int

	// jitterFn returns a value in [0,1); replaced in tests.
	jitterFn func() float64
}

// NewRetryPolicy builds a policy with the given operationally-tuned
// constants.
func NewRetryPolicy(base, maxBackoff, jitter time.Duration, threshold int) RetryPolicy {
	return RetryPolicy{
		Base:       base,
		MaxBackoff: maxBackoff,
		Jitter:     jitter,
		Threshold:  threshold,
		jitterFn:   rand.Float64,
	}
}

// Backoff returns the delay before retry attempt+1 is eligible. The
// exponential part is non-decreasing in attempt and capped at MaxBackoff;
// jitter is added on top.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff || d <= 0 { // <= 0 guards overflow
			d = p.MaxBackoff
			break
		}
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}

	if p.Jitter > 0 && p.jitterFn != nil {
		d += time.Duration(p.jitterFn() * float64(p.Jitter))
	}
	return d
}
