package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	platformspanner "github.com/unitygrave/cardshop/internal/platform/spanner"
	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

var productColumns = []string{"ProductID", "Name", "SKU", "BasePrice", "BaseCurrency", "Condition", "CreatedAt", "UpdatedAt"}

type SpannerProductRepository struct {
	client *spanner.Client
}

func NewSpannerProductRepository(client *spanner.Client) *SpannerProductRepository {
	return &SpannerProductRepository{client: client}
}

// Save persists a product. SKU uniqueness is enforced by the ProductsBySKU
// unique index.
func (r *SpannerProductRepository) Save(ctx context.Context, product *domain.Product) error {
	m := spanner.InsertOrUpdate("Products", productColumns, []interface{}{
		product.ID().String(),
		product.Name(),
		product.SKU(),
		product.BasePrice().Amount(),
		product.BaseCurrencyCode(),
		product.Condition().String(),
		product.CreatedAt(),
		product.UpdatedAt(),
	})
	err := platformspanner.Apply(ctx, r.client, []*spanner.Mutation{m})
	if spanner.ErrCode(err) == codes.AlreadyExists {
		return domain.ErrDuplicateSKU
	}
	return err
}

func (r *SpannerProductRepository) FindByID(ctx context.Context, id types.ProductID) (*domain.Product, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	row, err := reader.ReadRow(ctx, "Products", spanner.Key{id.String()}, productColumns)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to read product: %w", err)
	}
	return scanProduct(row)
}

func (r *SpannerProductRepository) FindByIDs(ctx context.Context, ids []types.ProductID) (map[types.ProductID]*domain.Product, error) {
	found := make(map[types.ProductID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	keys := make([]spanner.KeySet, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, spanner.Key{id.String()})
	}

	iter := reader.Read(ctx, "Products", spanner.KeySets(keys...), productColumns)
	defer iter.Stop()
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read products: %w", err)
		}
		p, err := scanProduct(row)
		if err != nil {
			return nil, err
		}
		found[p.ID()] = p
	}
	return found, nil
}

func (r *SpannerProductRepository) List(ctx context.Context, offset, limit int) ([]*domain.Product, int, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	countIter := reader.Query(ctx, spanner.Statement{SQL: `SELECT COUNT(*) FROM Products`})
	defer countIter.Stop()

	var total int64
	countRow, err := countIter.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	if countRow != nil {
		if err := countRow.Columns(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}

	stmt := spanner.Statement{
		SQL: `SELECT ` + strings.Join(productColumns, ", ") + `
		      FROM Products
		      ORDER BY SKU
		      LIMIT @limit OFFSET @offset`,
		Params: map[string]interface{}{
			"limit":  int64(limit),
			"offset": int64(offset),
		},
	}
	iter := reader.Query(ctx, stmt)
	defer iter.Stop()

	var products []*domain.Product
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to query products: %w", err)
		}
		p, err := scanProduct(row)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, int(total), nil
}

func scanProduct(row *spanner.Row) (*domain.Product, error) {
	var id, name, sku, currency, condition string
	var price int64
	var createdAt, updatedAt time.Time
	if err := row.Columns(&id, &name, &sku, &price, &currency, &condition, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	productID, err := types.ParseProductID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product id: %w", err)
	}
	basePrice, err := types.NewMoney(price, currency)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	return domain.Reconstitute(productID, name, sku, basePrice, domain.Condition(condition), createdAt, updatedAt), nil
}

var overrideColumns = []string{"ProductID", "CurrencyCode", "Price", "IsActive", "EffectiveFrom", "EffectiveUntil", "Note", "UpdatedAt"}

type SpannerPriceOverrideRepository struct {
	client *spanner.Client
}

func NewSpannerPriceOverrideRepository(client *spanner.Client) *SpannerPriceOverrideRepository {
	return &SpannerPriceOverrideRepository{client: client}
}

func (r *SpannerPriceOverrideRepository) Save(ctx context.Context, o domain.PriceOverride) error {
	m := spanner.InsertOrUpdate("PriceOverrides", overrideColumns, []interface{}{
		o.ProductID.String(),
		o.CurrencyCode,
		o.Price,
		o.IsActive,
		nullTime(o.EffectiveFrom),
		nullTime(o.EffectiveUntil),
		o.Note,
		o.UpdatedAt,
	})
	return platformspanner.Apply(ctx, r.client, []*spanner.Mutation{m})
}

func (r *SpannerPriceOverrideRepository) Find(ctx context.Context, productID types.ProductID, currencyCode string) (domain.PriceOverride, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	row, err := reader.ReadRow(ctx, "PriceOverrides", spanner.Key{productID.String(), strings.ToUpper(currencyCode)}, overrideColumns)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return domain.PriceOverride{}, domain.ErrOverrideNotFound
		}
		return domain.PriceOverride{}, fmt.Errorf("failed to read override: %w", err)
	}
	return scanOverride(row)
}

func (r *SpannerPriceOverrideRepository) ListByProduct(ctx context.Context, productID types.ProductID) ([]domain.PriceOverride, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	iter := reader.Read(ctx, "PriceOverrides", spanner.Key{productID.String()}.AsPrefix(), overrideColumns)
	defer iter.Stop()

	var list []domain.PriceOverride
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read overrides: %w", err)
		}
		o, err := scanOverride(row)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, nil
}

func scanOverride(row *spanner.Row) (domain.PriceOverride, error) {
	var productID, code, note string
	var price int64
	var active bool
	var from, until spanner.NullTime
	var updatedAt time.Time
	if err := row.Columns(&productID, &code, &price, &active, &from, &until, &note, &updatedAt); err != nil {
		return domain.PriceOverride{}, fmt.Errorf("failed to scan override: %w", err)
	}
	pid, err := types.ParseProductID(productID)
	if err != nil {
		return domain.PriceOverride{}, fmt.Errorf("failed to parse product id: %w", err)
	}
	return domain.PriceOverride{
		ProductID:      pid,
		CurrencyCode:   code,
		Price:          price,
		IsActive:       active,
		EffectiveFrom:  timePtr(from),
		EffectiveUntil: timePtr(until),
		Note:           note,
		UpdatedAt:      updatedAt,
	}, nil
}

var currencyColumns = []string{"Code", "Name", "Symbol", "ExchangeRate", "DecimalPlaces", "IsActive", "IsBase", "RateUpdatedAt"}

type SpannerCurrencyRepository struct {
	client *spanner.Client
}

func NewSpannerCurrencyRepository(client *spanner.Client) *SpannerCurrencyRepository {
	return &SpannerCurrencyRepository{client: client}
}

func (r *SpannerCurrencyRepository) Save(ctx context.Context, c types.Currency) error {
	m := spanner.InsertOrUpdate("Currencies", currencyColumns, []interface{}{
		c.Code,
		c.Name,
		c.Symbol,
		c.ExchangeRate.Rat(),
		int64(c.DecimalPlaces),
		c.IsActive,
		c.IsBase,
		c.RateUpdatedAt,
	})
	return platformspanner.Apply(ctx, r.client, []*spanner.Mutation{m})
}

func (r *SpannerCurrencyRepository) FindByCode(ctx context.Context, code string) (types.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	row, err := reader.ReadRow(ctx, "Currencies", spanner.Key{code}, currencyColumns)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return types.Currency{}, &types.CurrencyNotFoundError{Code: code}
		}
		return types.Currency{}, fmt.Errorf("failed to read currency: %w", err)
	}
	return scanCurrency(row)
}

func (r *SpannerCurrencyRepository) Base(ctx context.Context) (types.Currency, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	iter := reader.Query(ctx, spanner.Statement{
		SQL: `SELECT ` + strings.Join(currencyColumns, ", ") + `
		      FROM Currencies WHERE IsBase = TRUE AND IsActive = TRUE LIMIT 1`,
	})
	defer iter.Stop()

	row, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return types.Currency{}, types.ErrNoActiveBaseCurrency
	}
	if err != nil {
		return types.Currency{}, fmt.Errorf("failed to query base currency: %w", err)
	}
	return scanCurrency(row)
}

func (r *SpannerCurrencyRepository) List(ctx context.Context) ([]types.Currency, error) {
	reader, release := platformspanner.Reader(ctx, r.client)
	defer release()

	iter := reader.Read(ctx, "Currencies", spanner.AllKeys(), currencyColumns)
	defer iter.Stop()

	var list []types.Currency
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read currencies: %w", err)
		}
		c, err := scanCurrency(row)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, nil
}

func scanCurrency(row *spanner.Row) (types.Currency, error) {
	var c types.Currency
	var rate spanner.NullNumeric
	var dp int64
	var updatedAt spanner.NullTime
	if err := row.Columns(&c.Code, &c.Name, &c.Symbol, &rate, &dp, &c.IsActive, &c.IsBase, &updatedAt); err != nil {
		return types.Currency{}, fmt.Errorf("failed to scan currency: %w", err)
	}
	if rate.Valid {
		d, err := decimal.NewFromString(spanner.NumericString(&rate.Numeric))
		if err != nil {
			return types.Currency{}, fmt.Errorf("currency %s rate: %w", c.Code, err)
		}
		c.ExchangeRate = d
	}
	c.DecimalPlaces = int32(dp)
	if updatedAt.Valid {
		c.RateUpdatedAt = updatedAt.Time
	}
	return c, nil
}

func nullTime(t *time.Time) spanner.NullTime {
	if t == nil {
		return spanner.NullTime{}
	}
	return spanner.NullTime{Time: *t, Valid: true}
}

func timePtr(t spanner.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Compile-time interface checks.
var (
	_ domain.ProductRepository       = (*SpannerProductRepository)(nil)
	_ domain.PriceOverrideRepository = (*SpannerPriceOverrideRepository)(nil)
	_ domain.CurrencyRepository      = (*SpannerCurrencyRepository)(nil)
)
