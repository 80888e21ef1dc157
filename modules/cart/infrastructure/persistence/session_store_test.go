package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitygrave/cardshop/modules/cart/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

func TestSessionStore_ExpiresIdleCarts(t *testing.T) {
	s := NewSessionStore(10, 20*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "session:a", domain.Line{ProductID: types.NewProductID(), Quantity: 1}))

	lines, err := s.Lines(ctx, "session:a")
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	assert.Eventually(t, func() bool {
		lines, _ := s.Lines(ctx, "session:a")
		return len(lines) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSessionStore_EvictsOldestBeyondSize(t *testing.T) {
	s := NewSessionStore(2, time.Hour)
	ctx := context.Background()
	for _, key := range []string{"session:a", "session:b", "session:c"} {
		require.NoError(t, s.Put(ctx, key, domain.Line{ProductID: types.NewProductID(), Quantity: 1}))
	}
	assert.Equal(t, 2, s.Len())

	lines, err := s.Lines(ctx, "session:a")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSessionStore_LinesAreCopies(t *testing.T) {
	s := NewSessionStore(10, time.Hour)
	ctx := context.Background()
	id := types.NewProductID()
	require.NoError(t, s.Put(ctx, "k", domain.Line{ProductID: id, Quantity: 1}))

	lines, _ := s.Lines(ctx, "k")
	lines[0].Quantity = 99

	again, _ := s.Lines(ctx, "k")
	assert.Equal(t, 1, again[0].Quantity)

	require.NoError(t, s.Delete(ctx, "k", id))
	again, _ = s.Lines(ctx, "k")
	assert.Empty(t, again)
}
