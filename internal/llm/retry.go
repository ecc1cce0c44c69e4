package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// GatewayError is returned when a backend answered with a non-success
// HTTP status. Status and Body are kept for offline diagnosis; callers
// must not forward them to the player.
type GatewayError struct {
	Backend string
	Status  int
	Body    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Backend, e.Status, e.Body)
}

// RetryPolicy is a bounded-retry combinator for upstream calls.
// After a failed attempt it waits base*2^attempt plus a random jitter,
// then tries again, up to MaxAttempts total attempts. The final
// failure is surfaced unmodified. This is best-effort resilience
// against transient upstream trouble, not a guarantee of success.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget (default 3).
	MaxAttempts int

	// BaseDelay is the backoff unit (default 1s).
	BaseDelay time.Duration

	// MaxJitter bounds the random addition to each wait (default 1s).
	MaxJitter time.Duration

	// sleep is injectable for tests. nil means context-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the standard 3-attempt policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxJitter:   time.Second,
	}
}

// Do runs fn until it succeeds or the attempt budget is exhausted,
// backing off between attempts. Context cancellation aborts the wait
// and returns ctx's error.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, fn func() (string, error)) (string, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	jitter := p.MaxJitter
	if jitter <= 0 {
		jitter = time.Second
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		text, err := fn()
		if err == nil {
			if attempt > 0 && logger != nil {
				logger.Info("upstream call succeeded after retry",
					"attempts", attempt+1,
					"last_error", lastErr.Error(),
				)
			}
			return text, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		wait := base<<attempt + time.Duration(rand.Int63n(int64(jitter)))
		if logger != nil {
			logger.Warn("upstream call failed, backing off",
				"attempt", attempt+1,
				"max_attempts", attempts,
				"wait", wait,
				"error", err,
			)
		}
		if err := sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
