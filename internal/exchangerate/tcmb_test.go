package exchangerate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/clock"
	"github.com/smallbiznis/equiprent/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleBulletin = `<?xml version="1.0" encoding="UTF-8"?>
<Tarih_Date Tarih="02.01.2024" Date="01/02/2024">
	<Currency CrossOrder="0" Kod="USD" CurrencyCode="USD">
		<Unit>1</Unit>
		<ForexBuying>29.4382</ForexBuying>
		<ForexSelling>29.4913</ForexSelling>
	</Currency>
	<Currency CrossOrder="9" Kod="EUR" CurrencyCode="EUR">
		<Unit>1</Unit>
		<ForexBuying>32.5012</ForexBuying>
		<ForexSelling>32.5598</ForexSelling>
	</Currency>
	<Currency CrossOrder="17" Kod="XDR" CurrencyCode="XDR">
		<Unit>1</Unit>
		<ForexBuying>39.1204</ForexBuying>
		<ForexSelling></ForexSelling>
	</Currency>
</Tarih_Date>`

func newTestClient(t *testing.T, url string, clk clock.Clock) *Client {
	t.Helper()
	return NewClient(Params{
		Config: config.Config{
			ExchangeRateURL:     url,
			ExchangeRateTimeout: time.Second,
			ExchangeRateTTL:     time.Hour,
		},
		Log:   zap.NewNop(),
		Clock: clk,
	})
}

func TestLatestParsesForexSelling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleBulletin))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, clock.NewFakeClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)))
	rates := client.Latest(context.Background())

	assert.True(t, decimal.RequireFromString("29.4913").Equal(rates.USD))
	assert.True(t, decimal.RequireFromString("32.5598").Equal(rates.EUR))
	assert.False(t, rates.FetchedAt.IsZero())
}

func TestLatestUsesCacheUntilExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(sampleBulletin))
	}))
	defer srv.Close()

	clk := clock.NewFakeClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	client := newTestClient(t, srv.URL, clk)

	client.Latest(context.Background())
	client.Latest(context.Background())
	assert.Equal(t, int32(1), hits.Load())

	clk.Advance(2 * time.Hour)
	client.Latest(context.Background())
	assert.Equal(t, int32(2), hits.Load())
}

func TestLatestFallsBackToStaleRates(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleBulletin))
	}))
	defer srv.Close()

	clk := clock.NewFakeClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	client := newTestClient(t, srv.URL, clk)
	first := client.Latest(context.Background())
	require.False(t, first.IsZero())

	fail.Store(true)
	clk.Advance(2 * time.Hour)
	rates := client.Latest(context.Background())
	assert.True(t, first.USD.Equal(rates.USD))
}

func TestLatestDegradesToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, clock.SystemClock{})
	rates := client.Latest(context.Background())
	assert.True(t, rates.IsZero())

	_, err := client.Refresh(context.Background())
	assert.Error(t, err)
}

func TestLatestWithoutURL(t *testing.T) {
	client := newTestClient(t, "", clock.SystemClock{})
	assert.True(t, client.Latest(context.Background()).IsZero())
}
