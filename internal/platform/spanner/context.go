package spanner

import (
	"context"

	"cloud.google.com/go/spanner"
)

type (
	readWriteTxKey struct{}
	readOnlyTxKey  struct{}
)

// ReadTransaction is the read surface shared by read-write and read-only transactions.
type ReadTransaction interface {
	ReadRow(ctx context.Context, table string, key spanner.Key, columns []string) (*spanner.Row, error)
	ReadRowUsingIndex(ctx context.Context, table, index string, key spanner.Key, columns []string) (*spanner.Row, error)
	Read(ctx context.Context, table string, keys spanner.KeySet, columns []string) *spanner.RowIterator
	Query(ctx context.Context, statement spanner.Statement) *spanner.RowIterator
}

// withReadWriteTx embeds a Spanner ReadWriteTransaction in the context.
func withReadWriteTx(ctx context.Context, tx *spanner.ReadWriteTransaction) (context.Context, error) {
	if _, ok := ReadWriteTxFromContext(ctx); ok {
		return nil, ErrNestedTransaction
	}
	return context.WithValue(ctx, readWriteTxKey{}, tx), nil
}

// withReadOnlyTx embeds a Spanner ReadOnlyTransaction in the context.
func withReadOnlyTx(ctx context.Context, tx *spanner.ReadOnlyTransaction) (context.Context, error) {
	if _, ok := ctx.Value(readOnlyTxKey{}).(*spanner.ReadOnlyTransaction); ok {
		return nil, ErrNestedTransaction
	}
	return context.WithValue(ctx, readOnlyTxKey{}, tx), nil
}

// ReadWriteTxFromContext extracts a Spanner ReadWriteTransaction from context.
// Returns (nil, false) if no transaction is present.
func ReadWriteTxFromContext(ctx context.Context) (*spanner.ReadWriteTransaction, bool) {
	tx, ok := ctx.Value(readWriteTxKey{}).(*spanner.ReadWriteTransaction)
	return tx, ok
}

// ReadTransactionFromContext returns the active transaction for reads,
// preferring a read-write transaction so its reads take locks.
func ReadTransactionFromContext(ctx context.Context) (ReadTransaction, bool) {
	if tx, ok := ReadWriteTxFromContext(ctx); ok {
		return tx, true
	}
	if tx, ok := ctx.Value(readOnlyTxKey{}).(*spanner.ReadOnlyTransaction); ok {
		return tx, true
	}
	return nil, false
}
