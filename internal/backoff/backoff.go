// Package backoff centralizes retry delay calculation so the transport and
// retry policies share one implementation.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy is a pluggable backoff calculation algorithm.
type Strategy interface {
	// Delay returns the wait before the retry following the given attempt
	// (attempt 0 is the first try).
	Delay(attempt int, base, max time.Duration, factor, jitter float64) time.Duration
}

// ExponentialJitter implements exponential backoff with uniform jitter:
// base * factor^attempt, capped at max, plus up to jitter*delay of noise.
type ExponentialJitter struct{}

func (ExponentialJitter) Delay(attempt int, base, max time.Duration, factor, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the exponent to avoid overflowing time.Duration.
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(base) * Pow(factor, attempt))
	if delay < 0 || delay > max {
		delay = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		noise := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+noise > max {
			delay = max
		} else {
			delay += noise
		}
	}
	return delay
}

// DecorrelatedJitter implements AWS-style decorrelated jitter:
// random between base and min(max, base*3^attempt).
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type DecorrelatedJitter struct{}

func (DecorrelatedJitter) Delay(attempt int, base, max time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return base
	}
	if attempt > 10 {
		attempt = 10
	}

	lower := float64(base)
	upper := lower * Pow(3.0, attempt)
	if upper > float64(max) || upper < 0 {
		upper = float64(max)
	}
	if upper < lower {
		upper = lower
	}

	delay := time.Duration(lower + rand.Float64()*(upper-lower))
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

// Pow is integer exponentiation on float64 bases, avoiding math.Pow edge cases.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}
