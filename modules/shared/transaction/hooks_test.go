package transaction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unitygrave/cardshop/modules/shared/transaction"
)

func TestAfterCommit_OutsideTransactionRunsImmediately(t *testing.T) {
	ran := false
	transaction.AfterCommit(context.Background(), func(ctx context.Context) { ran = true })
	assert.True(t, ran)
	assert.False(t, transaction.InTransaction(context.Background()))
}

func TestHooks_CommitRunsInOrder(t *testing.T) {
	ctx, hooks := transaction.WithHooks(context.Background())
	assert.True(t, transaction.InTransaction(ctx))

	var order []int
	transaction.AfterCommit(ctx, func(context.Context) { order = append(order, 1) })
	transaction.AfterCommit(ctx, func(context.Context) { order = append(order, 2) })
	transaction.OnRollback(ctx, func() { order = append(order, -1) })

	assert.Empty(t, order)
	hooks.Commit(context.Background())
	assert.Equal(t, []int{1, 2}, order)

	hooks.Rollback()
	assert.Equal(t, []int{1, 2}, order)
}

func TestHooks_RollbackUndoesInReverse(t *testing.T) {
	ctx, hooks := transaction.WithHooks(context.Background())

	var order []int
	transaction.OnRollback(ctx, func() { order = append(order, 1) })
	transaction.OnRollback(ctx, func() { order = append(order, 2) })
	transaction.AfterCommit(ctx, func(context.Context) { order = append(order, 99) })

	hooks.Rollback()
	assert.Equal(t, []int{2, 1}, order)

	hooks.Commit(context.Background())
	assert.Equal(t, []int{2, 1}, order)
}
