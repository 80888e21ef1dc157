// Package ratesync refreshes currency exchange rates from an external feed.
package ratesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unitygrave/cardshop/modules/catalog/domain"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/transaction"
)

var (
	ErrFeedUnavailable = errors.New("exchange rate feed unavailable")
	ErrFeedMalformed   = errors.New("exchange rate feed returned unusable data")
)

// Snapshot is one set of rates published by a feed. Rates are units of each
// currency per one unit of Base.
type Snapshot struct {
	Base      string
	Rates     map[string]decimal.Decimal
	FetchedAt time.Time
}

// Feed fetches the latest rates.
type Feed interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Observer records sync outcomes.
type Observer interface {
	ObserveRateSync(outcome string)
}

// Result summarises one sync.
type Result struct {
	Updated []string
	Skipped []string
}

// Syncer applies feed snapshots to the stored currencies. A failed fetch
// leaves the last known rates in place.
type Syncer struct {
	feed       Feed
	currencies domain.CurrencyRepository
	txScope    transaction.Scope
	publisher  events.Publisher
	observer   Observer
	logger     *slog.Logger
}

func NewSyncer(
	feed Feed,
	currencies domain.CurrencyRepository,
	txScope transaction.Scope,
	publisher events.Publisher,
	observer Observer,
	logger *slog.Logger,
) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		feed:       feed,
		currencies: currencies,
		txScope:    txScope,
		publisher:  publisher,
		observer:   observer,
		logger:     logger,
	}
}

// Sync fetches one snapshot and stores the rates it carries for known
// non-base currencies.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	snap, err := s.feed.Fetch(ctx)
	if err != nil {
		s.observe("feed_error")
		s.logger.WarnContext(ctx, "exchange rate fetch failed, keeping last known rates", slog.Any("error", err))
		return Result{}, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	result, err := transaction.ExecuteWithResult(ctx, s.txScope, func(ctx context.Context) (Result, error) {
		base, err := s.currencies.Base(ctx)
		if err != nil {
			return Result{}, err
		}
		rates, err := rebase(snap, base.Code)
		if err != nil {
			return Result{}, err
		}

		all, err := s.currencies.List(ctx)
		if err != nil {
			return Result{}, err
		}

		var res Result
		applied := make(map[string]decimal.Decimal)
		for _, c := range all {
			if c.IsBase {
				continue
			}
			rate, ok := rates[c.Code]
			if !ok || !rate.IsPositive() {
				res.Skipped = append(res.Skipped, c.Code)
				continue
			}
			c.ExchangeRate = rate
			c.RateUpdatedAt = snap.FetchedAt
			if err := s.currencies.Save(ctx, c); err != nil {
				return Result{}, fmt.Errorf("saving %s: %w", c.Code, err)
			}
			res.Updated = append(res.Updated, c.Code)
			applied[c.Code] = rate
		}

		if len(applied) == 0 {
			return res, nil
		}
		err = s.publisher.Publish(ctx, contracts.ExchangeRatesUpdatedEvent{
			BaseEvent:    events.NewBaseEvent(contracts.ExchangeRatesUpdatedEventType, base.Code),
			BaseCurrency: base.Code,
			Rates:        applied,
			FetchedAt:    snap.FetchedAt,
		})
		return res, err
	})
	if err != nil {
		s.observe("error")
		s.logger.ErrorContext(ctx, "exchange rate sync failed", slog.Any("error", err))
		return Result{}, err
	}

	s.observe("ok")
	s.logger.InfoContext(ctx, "exchange rates synced",
		slog.Int("updated", len(result.Updated)),
		slog.Any("skipped", result.Skipped),
	)
	return result, nil
}

// Run syncs once immediately and then every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid sync interval %s", interval)
	}
	_, _ = s.Sync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.Sync(ctx)
		}
	}
}

func (s *Syncer) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveRateSync(outcome)
	}
}

// rebase re-expresses snapshot rates relative to the store's base currency.
func rebase(snap Snapshot, baseCode string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(snap.Rates))
	for code, rate := range snap.Rates {
		rates[strings.ToUpper(code)] = rate
	}
	feedBase := strings.ToUpper(snap.Base)
	if feedBase == "" {
		return nil, fmt.Errorf("%w: missing base", ErrFeedMalformed)
	}
	if feedBase == baseCode {
		return rates, nil
	}

	pivot, ok := rates[baseCode]
	if !ok || !pivot.IsPositive() {
		return nil, fmt.Errorf("%w: no rate for store base %s", ErrFeedMalformed, baseCode)
	}
	rebased := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		if code == baseCode {
			continue
		}
		rebased[code] = rate.DivRound(pivot, 10)
	}
	rebased[feedBase] = decimal.NewFromInt(1).DivRound(pivot, 10)
	return rebased, nil
}
