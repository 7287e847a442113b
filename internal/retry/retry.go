// Package retry provides exponential backoff retry logic with jitter.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// Multiplier grows the delay between consecutive attempts.
	Multiplier float64
	// MaxJitter bounds the uniformly random amount added to every delay.
	MaxJitter time.Duration
	// MaxDelay caps the delay before jitter. Zero means no cap.
	MaxDelay time.Duration
	// Sleep waits between attempts. Defaults to [Sleep].
	Sleep func(context.Context, time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns the playlist writer defaults: 5 attempts, 1s base delay doubling, up to 0.5s of jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxJitter:   500 * time.Millisecond,
	}
}

// ErrorClassifier determines if an error is retryable.
type ErrorClassifier func(error) bool

// ExhaustedError reports that every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do executes fn until it succeeds, returns an error the classifier rejects, or runs out of attempts.
//
// Non-retryable errors are returned unchanged. Running out of attempts yields an [*ExhaustedError] wrapping the last
// error. Cancelling ctx during a wait returns the context error.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	attempts := max(cfg.MaxAttempts, 1)
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if classifier != nil && !classifier(err) {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		delay := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Backoff returns the wait after the given failed attempt (1-based): BaseDelay * Multiplier^(attempt-1), capped at
// MaxDelay, plus a uniform jitter in [0, MaxJitter).
func (c Config) Backoff(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2.0
	}

	d := time.Duration(float64(c.BaseDelay) * math.Pow(mult, float64(max(attempt-1, 0))))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d + Jitter(c.MaxJitter)
}

// Jitter returns a uniformly random duration in [0, limit).
func Jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit)))
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
