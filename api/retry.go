package api

import (
	"context"
	"fmt"

	"github.com/warp/budget-engine/core"
)

// maxAttempts bounds the optimistic-concurrency loop.
const maxAttempts = 3

// withRetry runs fn until it succeeds, fails with a non-retryable error, or
// the attempts run out. fn must reload its aggregate on every call.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if !core.IsRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxAttempts, err)
}
