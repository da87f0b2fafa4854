// Package retry runs an operation with exponential backoff until it succeeds,
// fails permanently or its context ends.
//
// Resolution itself never retries. Callers that start before the game has
// mapped its modules opt in to waiting here:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    _, err := facade.Resolve(ctx, "client.dll", "Source2Client002")
//	    return err
//	}, errors.IsTransient)
//
// The delay before attempt n (n >= 1) is InitialBackoff * 2^(n-1), capped at
// MaxBackoff, plus a jitter that grows linearly with the attempt number.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config defines the backoff schedule.
//
// The zero value is not usable; MaxRetries and InitialBackoff must be set.
type Config struct {
	// MaxRetries is the total number of attempts.
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the delay. Zero means no cap.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// Jitter is the fraction (0.0 to 1.0) of the delay added at the final
	// attempt: backoff * Jitter * attempt / MaxRetries.
	Jitter float64 `yaml:"jitter"`
}

// DefaultConfig waits roughly half a minute for a module to appear.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     20,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Jitter:         0.1,
	}
}

// Validate reports whether cfg describes a usable schedule.
func (cfg Config) Validate() error {
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive, got %s", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff < 0 {
		return fmt.Errorf("max_backoff must not be negative, got %s", cfg.MaxBackoff)
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0, 1], got %g", cfg.Jitter)
	}
	return nil
}

// ShouldRetryFunc decides whether err is worth another attempt.
// A nil ShouldRetryFunc retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn up to cfg.MaxRetries times, sleeping between attempts.
//
// A non-retryable error is returned as is. When attempts run out the last
// error is wrapped with the attempt count. Cancellation of ctx during a
// backoff returns ctx.Err().
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, calculateBackoff(cfg, attempt)); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// calculateBackoff returns the delay before the given attempt (1-based).
// With InitialBackoff=100ms, MaxBackoff=1s, Jitter=0.5, MaxRetries=5:
//
//	attempt 1: 100ms + 10ms
//	attempt 2: 200ms + 40ms
//	attempt 3: 400ms + 120ms
//	attempt 4: 800ms + 320ms
func calculateBackoff(cfg Config, attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1)) * float64(cfg.InitialBackoff))

	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 {
		backoff += time.Duration(float64(backoff) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries))
	}

	return backoff
}
