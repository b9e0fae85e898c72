package tasks

import (
	"math/rand"
	"time"
)

// RetryPolicy holds the queue-level execution limits. The hard timeout is
// enforced by the queue executor; the soft timeout is what the dispatch
// handler passes to adapter calls so cleanup fits inside the hard limit.
type RetryPolicy struct {
	MaxRetry    int
	HardTimeout time.Duration
	SoftTimeout time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the production policy: three retries, five
// minute hard limit with a four minute soft limit, exponential backoff
// with jitter capped at ten minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetry:    3,
		HardTimeout: 5 * time.Minute,
		SoftTimeout: 4 * time.Minute,
		BaseDelay:   30 * time.Second,
		MaxDelay:    10 * time.Minute,
	}
}

// Delay computes the wait before retry attempt n (0-based) using
// exponential backoff with equal jitter: half the exponential window is
// guaranteed, the other half randomized to spread synchronized retries.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	backoff := p.BaseDelay
	for i := 0; i < n; i++ {
		backoff *= 2
		if backoff >= p.MaxDelay {
			backoff = p.MaxDelay
			break
		}
	}
	half := backoff / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
