package aquos

import (
	"context"
	"errors"
	"fmt"
)

// DefaultRetryAttempts is the default total attempt budget.
const DefaultRetryAttempts = 3

// RetryPolicy bounds how often an operation is attempted.
type RetryPolicy struct {
	// Attempts is the total number of attempts, including the first.
	// Values below 1 mean DefaultRetryAttempts.
	Attempts int

	// Logger is optional; each failed attempt is logged at warn level.
	Logger Logger
}

// Degrader is forced to a safe state when the budget runs out.
type Degrader interface {
	Degrade()
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return DefaultRetryAttempts
	}
	return p.Attempts
}

// Retry runs op until it succeeds or the policy's budget is spent.
//
// Attempts follow each other immediately with no backoff. Configuration
// errors (ErrUnknownCommand, ErrInvalidParameter) and context cancellation
// are returned at once without degrading, since repeating cannot help.
// When the budget is exhausted d.Degrade is called and the returned error
// matches both ErrDegraded and the last attempt's error.
func Retry[T any](ctx context.Context, policy RetryPolicy, d Degrader, op func(context.Context) (T, error)) (T, error) {
	var zero T
	budget := policy.attempts()

	var lastErr error
	for attempt := 1; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if isConfigurationError(err) {
			return zero, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return zero, err
		}

		lastErr = err
		if policy.Logger != nil {
			policy.Logger.Warn("aquos operation failed",
				"attempt", attempt,
				"remaining", budget-attempt,
				"error", err,
			)
		}
	}

	if d != nil {
		d.Degrade()
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrDegraded, budget, lastErr)
}

// RetryDo is Retry for operations without a result.
func RetryDo(ctx context.Context, policy RetryPolicy, d Degrader, op func(context.Context) error) error {
	_, err := Retry(ctx, policy, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
