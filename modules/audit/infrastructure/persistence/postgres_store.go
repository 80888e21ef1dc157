package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/unitygrave/cardshop/modules/audit/domain"
)

// PostgresStore writes audit records to the tables created by the audit
// migrations. Inserts are idempotent on event_id, so a redelivered event
// leaves a single row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) RecordMovement(ctx context.Context, m domain.StockMovement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stock_movements (event_id, product_id, old_quantity, new_quantity, delta, reason, actor, reference, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING`,
		m.EventID, m.ProductID, m.OldQuantity, m.NewQuantity, m.Delta, m.Reason, m.Actor, m.Reference, m.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("recording stock movement: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordAlert(ctx context.Context, a domain.StockAlert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stock_alerts (event_id, product_id, quantity, threshold, out_of_stock, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		a.EventID, a.ProductID, a.Quantity, a.Threshold, a.OutOfStock, a.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("recording stock alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordPriceChange(ctx context.Context, c domain.PriceChange) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_history (event_id, product_id, currency, old_price, new_price, percent_change, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		c.EventID, c.ProductID, c.Currency, c.OldPrice, c.NewPrice, c.PercentChange.String(), c.Actor, c.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("recording price change: %w", err)
	}
	return nil
}

func (s *PostgresStore) Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, product_id, old_quantity, new_quantity, delta, reason, actor, reference, occurred_at
		FROM stock_movements WHERE product_id = $1
		ORDER BY occurred_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying stock movements: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.StockMovement])
	if err != nil {
		return nil, fmt.Errorf("scanning stock movements: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Alerts(ctx context.Context, productID string, limit int) ([]domain.StockAlert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, product_id, quantity, threshold, out_of_stock, occurred_at
		FROM stock_alerts WHERE product_id = $1
		ORDER BY occurred_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying stock alerts: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.StockAlert])
	if err != nil {
		return nil, fmt.Errorf("scanning stock alerts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PriceHistory(ctx context.Context, productID string, limit int) ([]domain.PriceChange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, product_id, currency, old_price, new_price, percent_change::text, actor, occurred_at
		FROM price_history WHERE product_id = $1
		ORDER BY occurred_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying price history: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceChange
	for rows.Next() {
		var c domain.PriceChange
		var percent string
		if err := rows.Scan(&c.EventID, &c.ProductID, &c.Currency, &c.OldPrice, &c.NewPrice, &percent, &c.Actor, &c.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning price history: %w", err)
		}
		if c.PercentChange, err = decimal.NewFromString(percent); err != nil {
			return nil, fmt.Errorf("parsing percent change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ domain.Store = (*PostgresStore)(nil)
