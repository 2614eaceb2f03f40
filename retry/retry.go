// ABOUTME: Retry engine with exponential backoff, capped delay and additive jitter.
// ABOUTME: Every failure is classified before the retry decision is made.

package retry

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/2389-research/promptmint/apperr"
)

// Config controls how many times an operation is re-attempted and how long to
// wait in between.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential component of the delay.
	MaxDelay time.Duration

	// BackoffMultiplier grows the delay per attempt.
	BackoffMultiplier float64

	// MaxJitter bounds the uniformly random amount added to every delay.
	// Zero disables jitter.
	MaxJitter time.Duration
}

// DefaultMaxJitter is the jitter bound used by both presets.
const DefaultMaxJitter = time.Second

// GenerationConfig is the preset for image generation calls:
// 3 retries, 1s base, 10s cap, x2 backoff.
func GenerationConfig() Config {
	return Config{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
		MaxJitter:         DefaultMaxJitter,
	}
}

// MintingConfig is the preset for transaction submission:
// 1 retry, 2s base, 10s cap, x1.5 backoff.
func MintingConfig() Config {
	return Config{
		MaxRetries:        1,
		BaseDelay:         2 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 1.5,
		MaxJitter:         DefaultMaxJitter,
	}
}

// Backoff returns the deterministic part of the delay after the given
// zero-indexed failed attempt.
func (c Config) Backoff(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	return time.Duration(d)
}

// Delay returns the full wait after the given zero-indexed failed attempt,
// jitter included.
func (c Config) Delay(attempt int) time.Duration {
	d := c.Backoff(attempt)
	if c.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(c.MaxJitter)))
	}
	return d
}

// OnRetry is invoked before each wait with the one-based number of the retry
// about to happen and the classified error that triggered it.
type OnRetry func(attempt int, err *apperr.AppError)

// Do runs op until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. The returned error is always a classified
// *apperr.AppError. Cancelling ctx during a wait returns the last error.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error), onRetry OnRetry) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		classified := apperr.Classify(err)
		if attempt > 0 {
			classified = classified.WithRetries(attempt, cfg.MaxRetries)
		}
		if !classified.Retryable || attempt >= cfg.MaxRetries {
			return zero, classified
		}

		delay := cfg.Delay(attempt)
		log.Printf("component=retry action=backoff attempt=%d max_retries=%d delay=%s type=%s",
			attempt+1, cfg.MaxRetries, delay, classified.Kind)
		if onRetry != nil {
			onRetry(attempt+1, classified)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, classified
		case <-timer.C:
		}
	}
}
