// Package wait provides bounded polling helpers used to wait for external
// state such as chain confirmations or device readiness.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoResponse is returned when the predicate never succeeds and did
	// not report an error of its own.
	ErrNoResponse = errors.New("condition not met within the timeout")

	// ErrAttemptsExhausted is returned when the attempt budget runs out
	// before the predicate succeeds.
	ErrAttemptsExhausted = errors.New("condition not met within attempts")
)

const (
	// PollInterval is the default polling interval.
	PollInterval = 500 * time.Millisecond

	// DefaultAttempts is the default attempt budget, which together with
	// PollInterval bounds a wait to roughly one minute.
	DefaultAttempts = 120
)

// Config bounds a polling loop. A zero Timeout or Attempts disables that
// bound, but at least one of them must be set.
type Config struct {
	// Interval is the sleep between two attempts.
	Interval time.Duration

	// Timeout is the overall deadline of the loop.
	Timeout time.Duration

	// Attempts is the maximum number of times the predicate is invoked.
	Attempts int
}

// DefaultConfig returns the default polling bounds.
func DefaultConfig() Config {
	return Config{
		Interval: PollInterval,
		Attempts: DefaultAttempts,
	}
}

// Poll calls f until it returns nil, the context is canceled, or one of the
// bounds in cfg is reached. The first attempt is made immediately.
//
// When a bound is reached, the last error returned by f is wrapped together
// with the bound that was hit.
//
// NOTE: Poll does not interrupt f. If f blocks, Poll may block longer than
// the configured timeout.
func Poll(ctx context.Context, cfg Config, f func() error) error {
	if cfg.Timeout <= 0 && cfg.Attempts <= 0 {
		return errors.New("wait: unbounded poll")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = PollInterval
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		lastErr  error
		attempts int
	)

	for {
		attempts++

		lastErr = f()
		if lastErr == nil {
			return nil
		}

		if cfg.Attempts > 0 && attempts >= cfg.Attempts {
			return fmt.Errorf("%w: %d: %w", ErrAttemptsExhausted,
				attempts, lastErr)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", ErrNoResponse, lastErr)
			}

			return ctx.Err()

		case <-ticker.C:
		}
	}
}
