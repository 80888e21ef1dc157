package transaction

import (
	"context"
	"errors"
)

// ErrDuplicateKey reports a unit that lost a race on a unique key. Nothing it
// wrote is kept, so the whole unit may be retried.
var ErrDuplicateKey = errors.New("unique key already taken")

// Scope runs a unit of work. Repositories and publishers called with the ctx
// handed to fn join the unit: their writes commit together or not at all.
//
// The memory scope serializes units and undoes journaled writes on failure;
// the Spanner scope runs a read-write transaction and may retry fn.
type Scope interface {
	// Execute commits when fn returns nil and rolls back otherwise.
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// ExecuteWithResult runs fn in scope and returns its value. A rolled back
// unit yields the zero value, so callers never see a half-built result.
func ExecuteWithResult[T any](ctx context.Context, scope Scope, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := scope.Execute(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
