package ratesync_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformtx "github.com/unitygrave/cardshop/internal/platform/transaction"
	"github.com/unitygrave/cardshop/modules/catalog/application/ratesync"
	"github.com/unitygrave/cardshop/modules/catalog/infrastructure/persistence"
	"github.com/unitygrave/cardshop/modules/shared/events"
	"github.com/unitygrave/cardshop/modules/shared/events/contracts"
	"github.com/unitygrave/cardshop/modules/shared/types"
)

type stubFeed struct {
	snap ratesync.Snapshot
	err  error
}

func (f stubFeed) Fetch(context.Context) (ratesync.Snapshot, error) { return f.snap, f.err }

type mockPublisher struct {
	PublishFunc func(ctx context.Context, evts ...events.Event) error
}

func (m *mockPublisher) Publish(ctx context.Context, evts ...events.Event) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, evts...)
	}
	return nil
}

type outcomes []string

func (o *outcomes) ObserveRateSync(outcome string) { *o = append(*o, outcome) }

func seedCurrencies(t *testing.T) *persistence.InMemoryCurrencyRepository {
	t.Helper()
	repo := persistence.NewInMemoryCurrencyRepository()
	ctx := context.Background()
	usd, err := types.NewBaseCurrency("USD", "US Dollar", "$")
	require.NoError(t, err)
	eur, err := types.NewCurrency("EUR", "Euro", "€", decimal.RequireFromString("0.90"))
	require.NoError(t, err)
	jpy, err := types.NewCurrency("JPY", "Yen", "¥", decimal.NewFromInt(150))
	require.NoError(t, err)
	for _, c := range []types.Currency{usd, eur, jpy} {
		require.NoError(t, repo.Save(ctx, c))
	}
	return repo
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSync_UpdatesKnownCurrencies(t *testing.T) {
	repo := seedCurrencies(t)
	fetchedAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	feed := stubFeed{snap: ratesync.Snapshot{
		Base:      "USD",
		Rates:     map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.92"), "CHF": decimal.RequireFromString("0.88")},
		FetchedAt: fetchedAt,
	}}
	var published []events.Event
	pub := &mockPublisher{PublishFunc: func(_ context.Context, evts ...events.Event) error {
		published = append(published, evts...)
		return nil
	}}
	var obs outcomes

	s := ratesync.NewSyncer(feed, repo, platformtx.NewMemoryScope(), pub, &obs, quietLogger)
	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR"}, res.Updated)
	assert.Equal(t, []string{"JPY"}, res.Skipped)

	eur, err := repo.FindByCode(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.92", eur.ExchangeRate.String())
	assert.Equal(t, fetchedAt, eur.RateUpdatedAt)

	jpy, err := repo.FindByCode(context.Background(), "JPY")
	require.NoError(t, err)
	assert.Equal(t, "150", jpy.ExchangeRate.String(), "missing from feed keeps last rate")

	require.Len(t, published, 1)
	updated := published[0].(contracts.ExchangeRatesUpdatedEvent)
	assert.Equal(t, "USD", updated.BaseCurrency)
	assert.Contains(t, updated.Rates, "EUR")
	assert.Equal(t, outcomes{"ok"}, obs)
}

func TestSync_RebasesForeignBase(t *testing.T) {
	repo := seedCurrencies(t)
	feed := stubFeed{snap: ratesync.Snapshot{
		Base: "EUR",
		Rates: map[string]decimal.Decimal{
			"USD": decimal.RequireFromString("1.25"),
			"JPY": decimal.RequireFromString("200"),
		},
		FetchedAt: time.Now(),
	}}

	s := ratesync.NewSyncer(feed, repo, platformtx.NewMemoryScope(), &mockPublisher{}, nil, quietLogger)
	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"EUR", "JPY"}, res.Updated)

	eur, err := repo.FindByCode(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.8", eur.ExchangeRate.String())

	jpy, err := repo.FindByCode(context.Background(), "JPY")
	require.NoError(t, err)
	assert.Equal(t, "160", jpy.ExchangeRate.String())
}

func TestSync_FeedErrorKeepsRates(t *testing.T) {
	repo := seedCurrencies(t)
	var obs outcomes
	s := ratesync.NewSyncer(stubFeed{err: errors.New("timeout")}, repo, platformtx.NewMemoryScope(), &mockPublisher{}, &obs, quietLogger)

	_, err := s.Sync(context.Background())
	assert.ErrorIs(t, err, ratesync.ErrFeedUnavailable)

	eur, err := repo.FindByCode(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.9", eur.ExchangeRate.String())
	assert.Equal(t, outcomes{"feed_error"}, obs)
}

func TestSync_FeedWithoutStoreBaseIsRejected(t *testing.T) {
	repo := seedCurrencies(t)
	feed := stubFeed{snap: ratesync.Snapshot{
		Base:      "EUR",
		Rates:     map[string]decimal.Decimal{"JPY": decimal.NewFromInt(160)},
		FetchedAt: time.Now(),
	}}
	s := ratesync.NewSyncer(feed, repo, platformtx.NewMemoryScope(), &mockPublisher{}, nil, quietLogger)

	_, err := s.Sync(context.Background())
	assert.ErrorIs(t, err, ratesync.ErrFeedMalformed)

	jpy, err := repo.FindByCode(context.Background(), "JPY")
	require.NoError(t, err)
	assert.Equal(t, "150", jpy.ExchangeRate.String())
}

func TestSync_PublishFailureRollsBack(t *testing.T) {
	repo := seedCurrencies(t)
	feed := stubFeed{snap: ratesync.Snapshot{
		Base:      "USD",
		Rates:     map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.95")},
		FetchedAt: time.Now(),
	}}
	pub := &mockPublisher{PublishFunc: func(context.Context, ...events.Event) error { return errors.New("boom") }}
	s := ratesync.NewSyncer(feed, repo, platformtx.NewMemoryScope(), pub, nil, quietLogger)

	_, err := s.Sync(context.Background())
	require.Error(t, err)

	eur, err := repo.FindByCode(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.9", eur.ExchangeRate.String())
}

func TestRun_StopsWhenContextDone(t *testing.T) {
	repo := seedCurrencies(t)
	calls := make(chan struct{}, 10)
	feed := feedFunc(func(context.Context) (ratesync.Snapshot, error) {
		calls <- struct{}{}
		return ratesync.Snapshot{}, errors.New("unavailable")
	})
	s := ratesync.NewSyncer(feed, repo, platformtx.NewMemoryScope(), &mockPublisher{}, nil, quietLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Hour) }()

	<-calls
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Error(t, s.Run(context.Background(), 0))
}

type feedFunc func(context.Context) (ratesync.Snapshot, error)

func (f feedFunc) Fetch(ctx context.Context) (ratesync.Snapshot, error) { return f(ctx) }
