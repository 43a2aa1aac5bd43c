package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptTimeout marks an attempt cut short by its own deadline while
// the caller was still waiting. Unlike context.DeadlineExceeded it is worth
// retrying.
var ErrAttemptTimeout = errors.New("attempt timed out")

// Bounded runs fn under a deadline of limit on top of ctx. A zero limit
// runs fn with ctx unchanged.
func Bounded(ctx context.Context, limit time.Duration, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := fn(actx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v", ErrAttemptTimeout, limit)
	}
	return err
}
