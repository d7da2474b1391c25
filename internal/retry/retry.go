package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config bounds one retried operation. A zero Timeout leaves each attempt
// bounded only by the parent context. With InfiniteRetry set, MaxRetries is
// ignored and attempts continue until success or cancellation.
type Config struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Timeout       time.Duration
	InfiniteRetry bool
}

func (c Config) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func (c Config) exhausted(attempt int) bool {
	return !c.InfiniteRetry && attempt >= c.MaxRetries
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. WithRetry returns the wrapped
// error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func WithRetry[T any](ctx context.Context, config Config, operation func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		opCtx, cancel := config.attemptContext(ctx)
		result, err := operation(opCtx)
		cancel()

		if err == nil {
			return result, nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return zero, permanent.err
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Bool("infinite", config.InfiniteRetry).
			Msg("Operation failed")

		if config.exhausted(attempt) {
			if config.MaxRetries == 0 {
				return zero, err
			}
			return zero, fmt.Errorf("operation failed after %d attempts: %w", attempt+1, err)
		}

		delay := calculateBackoffDelay(attempt, config.BaseDelay, config.MaxDelay)
		log.Debug().
			Dur("delay", delay).
			Int("next_attempt", attempt+2).
			Msg("Retrying after delay")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func calculateBackoffDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	// Cap attempt at 30 to prevent overflow (2^30 is safe for int)
	safeAttempt := min(attempt, 30)
	multiplier := 1 << safeAttempt
	delay := time.Duration(multiplier) * baseDelay

	if delay > maxDelay {
		delay = maxDelay
	}

	// Jitter between 0.5x and 1.5x
	jitter := 0.5 + rand.Float64()
	delay = time.Duration(float64(delay) * jitter)

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
