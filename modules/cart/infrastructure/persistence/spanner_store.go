package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"

	platformspanner "github.com/unitygrave/cardshop/internal/platform/spanner"
	"github.com/unitygrave/cardshop/modules/cart/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

var lineColumns = []string{"CartKey", "ProductID", "Quantity", "AddedAt"}

// SpannerStore persists carts of identified shoppers in CartLines.
type SpannerStore struct {
	client *spanner.Client
}

func NewSpannerStore(client *spanner.Client) *SpannerStore {
	return &SpannerStore{client: client}
}

func (s *SpannerStore) Lines(ctx context.Context, cartKey string) ([]domain.Line, error) {
	reader, release := platformspanner.Reader(ctx, s.client)
	defer release()

	iter := reader.Read(ctx, "CartLines", spanner.Key{cartKey}.AsPrefix(), lineColumns)
	defer iter.Stop()

	var lines []domain.Line
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cart lines: %w", err)
		}
		var key, productID string
		var qty int64
		var addedAt time.Time
		if err := row.Columns(&key, &productID, &qty, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		id, err := types.ParseProductID(productID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse product id: %w", err)
		}
		lines = append(lines, domain.Line{ProductID: id, Quantity: int(qty), AddedAt: addedAt})
	}
	return lines, nil
}

func (s *SpannerStore) Put(ctx context.Context, cartKey string, line domain.Line) error {
	m := spanner.InsertOrUpdate("CartLines", lineColumns, []interface{}{
		cartKey, line.ProductID.String(), int64(line.Quantity), line.AddedAt,
	})
	return platformspanner.Apply(ctx, s.client, []*spanner.Mutation{m})
}

func (s *SpannerStore) Delete(ctx context.Context, cartKey string, productID types.ProductID) error {
	m := spanner.Delete("CartLines", spanner.Key{cartKey, productID.String()})
	return platformspanner.Apply(ctx, s.client, []*spanner.Mutation{m})
}

func (s *SpannerStore) Clear(ctx context.Context, cartKey string) error {
	m := spanner.Delete("CartLines", spanner.Key{cartKey}.AsPrefix())
	return platformspanner.Apply(ctx, s.client, []*spanner.Mutation{m})
}

var _ domain.Store = (*SpannerStore)(nil)
