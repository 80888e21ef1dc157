package transaction

import (
	"context"
	"sync"
)

type hooksKey struct{}

// Hooks collects callbacks registered by code running inside a unit of work.
// Scope implementations create one per attempt and fire it once the attempt
// is known to have committed or failed.
type Hooks struct {
	mu          sync.Mutex
	afterCommit []func(ctx context.Context)
	onRollback  []func()
}

// WithHooks attaches a fresh Hooks to ctx.
func WithHooks(ctx context.Context) (context.Context, *Hooks) {
	h := &Hooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// InTransaction reports whether ctx belongs to an active unit of work.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(hooksKey{}).(*Hooks)
	return ok
}

// AfterCommit defers fn until the surrounding unit of work commits.
// Outside a unit of work fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	h, ok := ctx.Value(hooksKey{}).(*Hooks)
	if !ok {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.afterCommit = append(h.afterCommit, fn)
	h.mu.Unlock()
}

// OnRollback registers an undo step for stores that cannot roll back on
// their own. Steps run in reverse registration order. Outside a unit of
// work it is a no-op.
func OnRollback(ctx context.Context, undo func()) {
	h, ok := ctx.Value(hooksKey{}).(*Hooks)
	if !ok {
		return
	}
	h.mu.Lock()
	h.onRollback = append(h.onRollback, undo)
	h.mu.Unlock()
}

// Commit runs the after-commit callbacks in registration order.
func (h *Hooks) Commit(ctx context.Context) {
	h.mu.Lock()
	fns := h.afterCommit
	h.afterCommit, h.onRollback = nil, nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// Rollback runs the undo steps in reverse order and drops the after-commit callbacks.
func (h *Hooks) Rollback() {
	h.mu.Lock()
	undo := h.onRollback
	h.afterCommit, h.onRollback = nil, nil
	h.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}
