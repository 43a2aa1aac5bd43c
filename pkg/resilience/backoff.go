package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is the policy for repeating a failed engine call. Zero values
// take defaults: three attempts starting at 100ms, doubling, capped at 10s,
// with 10% jitter.
type Backoff struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
	// Retryable picks the failures worth another attempt; others are
	// returned as they are. Nil retries everything.
	Retryable func(error) bool
}

// ExhaustedError wraps the last failure once every attempt has been used.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: all %d attempts failed: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 10 * time.Second
	}
	if b.Multiplier < 1 {
		b.Multiplier = 2
	}
	if b.Jitter <= 0 {
		b.Jitter = 0.1
	}
	return b
}

// Delay is the pause after the given failed attempt, counted from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt-1))
	d += d * b.Jitter * (2*rand.Float64() - 1)
	d = math.Min(d, float64(b.Max))
	if d <= 0 {
		return b.Initial
	}
	return time.Duration(d)
}

// Do calls fn, passing the attempt number, until it succeeds, fails with
// an error Retryable rejects, runs out of attempts, or ctx ends.
func (b Backoff) Do(ctx context.Context, op string, fn func(attempt int) error) error {
	b = b.withDefaults()
	log := slog.Default().With("component", "backoff", "op", op)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(attempt); err == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if b.Retryable != nil && !b.Retryable(err) {
			return err
		}
		if attempt == b.Attempts {
			return &ExhaustedError{Op: op, Attempts: attempt, Err: err}
		}

		delay := b.Delay(attempt)
		log.Warn("attempt failed, backing off", "attempt", attempt, "of", b.Attempts, "delay", delay, "error", err)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: gave up after %d attempts: %w", op, attempt, ctx.Err())
		}
	}
}
