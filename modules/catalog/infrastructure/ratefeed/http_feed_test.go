package ratefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestHTTPFeed_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","timestamp":1780000000,"rates":{"EUR":"0.92","JPY":151.5}}`))
	}))
	defer srv.Close()

	snap, err := NewHTTPFeed(srv.URL, time.Second, fastRetry()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USD", snap.Base)
	assert.Equal(t, "0.92", snap.Rates["EUR"].String())
	assert.Equal(t, "151.5", snap.Rates["JPY"].String())
	assert.Equal(t, time.Unix(1780000000, 0).UTC(), snap.FetchedAt)
}

func TestHTTPFeed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"EUR":0.9}}`))
	}))
	defer srv.Close()

	snap, err := NewHTTPFeed(srv.URL, time.Second, fastRetry()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestHTTPFeed_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewHTTPFeed(srv.URL, time.Second, fastRetry()).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFeed_RejectsEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD","rates":{}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFeed(srv.URL, time.Second, fastRetry()).Fetch(context.Background())
	assert.Error(t, err)
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
		attempts++
		return 0, assert.AnError
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
