// Package transaction provides transaction scopes for backends that have no
// native transactions, plus tracing for any scope.
package transaction

import (
	"context"
	"errors"
	"fmt"

	sharedtx "github.com/unitygrave/cardshop/modules/shared/transaction"
)

// ErrNestedTransaction is returned when attempting to start a unit of work
// inside an already-active one.
var ErrNestedTransaction = errors.New("nested transaction detected")

// MemoryScope runs units of work one at a time against in-memory stores.
// Stores journal their writes through sharedtx.OnRollback; a unit that fails,
// panics or outlives its context is undone before the next one starts.
type MemoryScope struct {
	sem chan struct{}
}

func NewMemoryScope() *MemoryScope {
	return &MemoryScope{sem: make(chan struct{}, 1)}
}

// Execute runs fn exclusively. Waiting for the scope honors ctx.
func (s *MemoryScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if sharedtx.InTransaction(ctx) {
		return ErrNestedTransaction
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for transaction: %w", ctx.Err())
	}

	hooks, err := func() (*sharedtx.Hooks, error) {
		defer func() { <-s.sem }()
		return s.run(ctx, fn)
	}()
	if err != nil {
		return err
	}

	hooks.Commit(context.WithoutCancel(ctx))
	return nil
}

func (s *MemoryScope) run(ctx context.Context, fn func(ctx context.Context) error) (hooks *sharedtx.Hooks, err error) {
	txCtx, hooks := sharedtx.WithHooks(ctx)

	defer func() {
		if r := recover(); r != nil {
			hooks.Rollback()
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		hooks.Rollback()
		return nil, err
	}
	// A deadline that expired while fn ran aborts the unit like any other fault.
	if err := ctx.Err(); err != nil {
		hooks.Rollback()
		return nil, fmt.Errorf("transaction aborted: %w", err)
	}
	return hooks, nil
}

// Compile-time interface check.
var _ sharedtx.Scope = (*MemoryScope)(nil)
