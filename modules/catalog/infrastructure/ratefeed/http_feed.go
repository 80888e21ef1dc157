// Package ratefeed fetches exchange rates over HTTP.
package ratefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unitygrave/cardshop/modules/catalog/application/ratesync"
)

// RetryConfig configures exponential backoff between fetch attempts.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2,
	}
}

// errPermanent marks responses that retrying will not fix.
var errPermanent = errors.New("permanent feed error")

// payload is the feed's JSON document:
//
//	{"base":"USD","timestamp":1717000000,"rates":{"EUR":"0.92","JPY":151.3}}
type payload struct {
	Base      string                     `json:"base"`
	Timestamp int64                      `json:"timestamp"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

// HTTPFeed implements ratesync.Feed against a JSON endpoint.
type HTTPFeed struct {
	url    string
	client *http.Client
	retry  RetryConfig
	now    func() time.Time
}

func NewHTTPFeed(url string, timeout time.Duration, retry RetryConfig) *HTTPFeed {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFeed{
		url:    url,
		client: &http.Client{Timeout: timeout},
		retry:  retry,
		now:    time.Now,
	}
}

func (f *HTTPFeed) Fetch(ctx context.Context) (ratesync.Snapshot, error) {
	return retryWithBackoff(ctx, f.retry, func() (ratesync.Snapshot, error) {
		return f.fetchOnce(ctx)
	})
}

func (f *HTTPFeed) fetchOnce(ctx context.Context) (ratesync.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return ratesync.Snapshot{}, fmt.Errorf("%w: %w", errPermanent, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return ratesync.Snapshot{}, fmt.Errorf("requesting rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return ratesync.Snapshot{}, fmt.Errorf("rate feed returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return ratesync.Snapshot{}, fmt.Errorf("%w: rate feed returned %d", errPermanent, resp.StatusCode)
	}

	var p payload
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return ratesync.Snapshot{}, fmt.Errorf("%w: decoding rates: %w", errPermanent, err)
	}
	if p.Base == "" || len(p.Rates) == 0 {
		return ratesync.Snapshot{}, fmt.Errorf("%w: %w", errPermanent, ratesync.ErrFeedMalformed)
	}

	fetchedAt := f.now().UTC()
	if p.Timestamp > 0 {
		fetchedAt = time.Unix(p.Timestamp, 0).UTC()
	}
	return ratesync.Snapshot{Base: p.Base, Rates: p.Rates, FetchedAt: fetchedAt}, nil
}

// retryWithBackoff runs fn until it succeeds, fails permanently or runs
// out of attempts. Cancellation of ctx stops it between attempts.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay
	attempts := max(config.MaxRetries, 1)

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, errPermanent) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}

var _ ratesync.Feed = (*HTTPFeed)(nil)
