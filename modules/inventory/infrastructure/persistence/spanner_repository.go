package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	platformspanner "github.com/unitygrave/cardshop/internal/platform/spanner"
	"github.com/unitygrave/cardshop/modules/inventory/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

var stockColumns = []string{"ProductID", "Quantity", "UpdatedAt"}

// SpannerRepository reads stock through the transaction in ctx. Inside a
// read-write transaction those reads lock the rows, which serialises
// concurrent check-then-decrement on the same product.
type SpannerRepository struct {
	client *spanner.Client
}

func NewSpannerRepository(client *spanner.Client) *SpannerRepository {
	return &SpannerRepository{client: client}
}

func (r *SpannerRepository) Get(ctx context.Context, productID types.ProductID) (domain.Stock, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	row, err := reader.ReadRow(ctx, "Inventory", spanner.Key{productID.String()}, stockColumns)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return domain.Stock{ProductID: productID}, nil
		}
		return domain.Stock{}, fmt.Errorf("failed to read stock: %w", err)
	}
	return scanStock(row)
}

func (r *SpannerRepository) GetMany(ctx context.Context, productIDs []types.ProductID) (map[types.ProductID]domain.Stock, error) {
	found := make(map[types.ProductID]domain.Stock, len(productIDs))
	if len(productIDs) == 0 {
		return found, nil
	}

	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	keys := make([]spanner.KeySet, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, spanner.Key{id.String()})
	}
	iter := reader.Read(ctx, "Inventory", spanner.KeySets(keys...), stockColumns)
	defer iter.Stop()

	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read stock: %w", err)
		}
		s, err := scanStock(row)
		if err != nil {
			return nil, err
		}
		found[s.ProductID] = s
	}
	return found, nil
}

func (r *SpannerRepository) Save(ctx context.Context, stock domain.Stock) error {
	if stock.Quantity < 0 {
		return domain.ErrNegativeStock
	}
	m := spanner.InsertOrUpdate("Inventory", stockColumns, []interface{}{
		stock.ProductID.String(),
		int64(stock.Quantity),
		stock.UpdatedAt,
	})
	return platformspanner.Apply(ctx, r.client, []*spanner.Mutation{m})
}

func scanStock(row *spanner.Row) (domain.Stock, error) {
	var id string
	var qty int64
	var updatedAt time.Time
	if err := row.Columns(&id, &qty, &updatedAt); err != nil {
		return domain.Stock{}, fmt.Errorf("failed to scan stock: %w", err)
	}
	productID, err := types.ParseProductID(id)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("failed to parse product id: %w", err)
	}
	return domain.Stock{ProductID: productID, Quantity: int(qty), UpdatedAt: updatedAt}, nil
}

var _ domain.Repository = (*SpannerRepository)(nil)
