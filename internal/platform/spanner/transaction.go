package spanner

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/spanner"
	"google.golang.org/grpc/codes"

	sharedtx "github.com/unitygrave/cardshop/modules/shared/transaction"
)

// ErrNestedTransaction is returned when attempting to start a transaction
// inside an already-active transaction scope.
// Cloud Spanner does not support nested transactions; nesting would silently
// create an independent transaction, breaking atomicity guarantees.
var ErrNestedTransaction = errors.New("nested transaction detected: Cloud Spanner does not support nested transactions")

// ReadWriteTransactionScope manages the lifecycle of a Spanner read-write transaction.
type ReadWriteTransactionScope struct {
	client *spanner.Client
}

// NewReadWriteTransactionScope creates a new Spanner-backed transaction scope.
// It should be called once per application startup in main.
func NewReadWriteTransactionScope(client *spanner.Client) *ReadWriteTransactionScope {
	return &ReadWriteTransactionScope{client: client}
}

// Execute runs fn within a Spanner ReadWriteTransaction.
// The transaction is committed if fn returns nil, rolled back otherwise.
// The ctx passed to fn contains the transaction for repositories to access via ReadWriteTxFromContext.
// Rows read through it are locked until commit, which is what serializes
// concurrent check-then-decrement sequences on the same inventory row.
//
// IMPORTANT: Spanner may retry fn on Aborted errors. Therefore:
//   - fn must be idempotent
//   - fn must NOT perform external side effects (email, API calls, etc.)
//   - side effects go through sharedtx.AfterCommit; hooks are created per attempt
//     and only the committed attempt's hooks run
//
// A commit rejected by a unique index is reported as sharedtx.ErrDuplicateKey.
func (s *ReadWriteTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ReadWriteTxFromContext(ctx); ok || sharedtx.InTransaction(ctx) {
		return ErrNestedTransaction
	}

	var hooks *sharedtx.Hooks
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, tx *spanner.ReadWriteTransaction) error {
		txCtx, err := withReadWriteTx(ctx, tx)
		if err != nil {
			return err
		}
		txCtx, hooks = sharedtx.WithHooks(txCtx)
		if err := fn(txCtx); err != nil {
			hooks.Rollback()
			return err
		}
		return nil
	})
	if err != nil {
		// A failed commit never reached fn's error path.
		if hooks != nil {
			hooks.Rollback()
		}
		if spanner.ErrCode(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %w", sharedtx.ErrDuplicateKey, err)
		}
		return err
	}

	hooks.Commit(context.WithoutCancel(ctx))
	return nil
}

// ReadOnlyTransactionScope manages the lifecycle of a Spanner read-only transaction.
// Use this when you need consistent reads across multiple queries without writes.
type ReadOnlyTransactionScope struct {
	client *spanner.Client
}

// NewReadOnlyTransactionScope creates a new Spanner-backed read-only transaction scope.
func NewReadOnlyTransactionScope(client *spanner.Client) *ReadOnlyTransactionScope {
	return &ReadOnlyTransactionScope{client: client}
}

// Execute runs fn within a Spanner ReadOnlyTransaction.
// The ctx passed to fn contains the transaction for repositories to access via ReadTransactionFromContext.
// The transaction is closed automatically when Execute returns.
func (s *ReadOnlyTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := s.client.ReadOnlyTransaction()
	defer tx.Close()

	txCtx, err := withReadOnlyTx(ctx, tx)
	if err != nil {
		return err
	}
	return fn(txCtx)
}

// Compile-time interface checks.
var (
	_ sharedtx.Scope = (*ReadWriteTransactionScope)(nil)
	_ sharedtx.Scope = (*ReadOnlyTransactionScope)(nil)
)
