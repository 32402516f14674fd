// Package dedup provides the check-then-act gate that makes event
// handlers safe under at-least-once delivery.
package dedup

import (
	"context"
	"errors"
)

// ErrAlreadyProcessed reports that the guarded operation was already
// applied for this input. It is a recovery signal, not a failure: callers
// acknowledge the message and emit nothing.
var ErrAlreadyProcessed = errors.New("event already processed")

// Validate runs check before op. If check reports true the composite
// fails with ErrAlreadyProcessed and op is never invoked. Otherwise op
// runs and its result is returned. The guarantee is structural: op is
// invoked zero or one times, never "started then abandoned".
func Validate[T any](ctx context.Context, check func(context.Context) (bool, error), op func(context.Context) (T, error)) (T, error) {
	var zero T
	seen, err := check(ctx)
	if err != nil {
		return zero, err
	}
	if seen {
		return zero, ErrAlreadyProcessed
	}
	return op(ctx)
}
