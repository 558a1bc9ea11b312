package schedule

import (
	"math"
	"math/rand"
	"time"
)

// RetryBackoff returns a jittered exponential delay for the given failure
// attempt, capped at max.
func RetryBackoff(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait / 2)))
	return wait/2 + jitter
}
