package exchangerate

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/cache"
	"github.com/smallbiznis/equiprent/internal/clock"
	"github.com/smallbiznis/equiprent/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const cacheKey = "latest"

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
}

// Client reads the central bank daily bulletin and keeps the last good
// result cached.
type Client struct {
	url   string
	http  *http.Client
	ttl   time.Duration
	log   *zap.Logger
	clock clock.Clock
	cache *cache.TTLCache[string, Rates]
}

func NewClient(p Params) *Client {
	timeout := p.Config.ExchangeRateTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := p.Config.ExchangeRateTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Client{
		url:   p.Config.ExchangeRateURL,
		http:  &http.Client{Timeout: timeout},
		ttl:   ttl,
		log:   p.Log.Named("exchangerate"),
		clock: c,
		cache: cache.NewTTLCache[string, Rates]().WithNow(c.Now),
	}
}

// Latest serves cached rates while they are fresh, otherwise fetches. A
// failed fetch falls back to the last rates seen, or zero.
func (c *Client) Latest(ctx context.Context) Rates {
	if rates, ok := c.cache.Get(cacheKey); ok {
		return rates
	}
	rates, err := c.Refresh(ctx)
	if err == nil {
		return rates
	}
	stale, ok := c.cache.Peek(cacheKey)
	c.log.Warn("exchange rate fetch failed",
		zap.Error(err),
		zap.Bool("stale", ok),
	)
	if ok {
		return stale
	}
	return Rates{}
}

// Refresh fetches and caches the current bulletin.
func (c *Client) Refresh(ctx context.Context) (Rates, error) {
	if strings.TrimSpace(c.url) == "" {
		return Rates{}, fmt.Errorf("exchange rate url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Rates{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Rates{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Rates{}, fmt.Errorf("exchange rate source returned %d", resp.StatusCode)
	}

	rates, err := parseBulletin(resp.Body)
	if err != nil {
		return Rates{}, err
	}
	rates.FetchedAt = c.clock.Now()
	c.cache.Set(cacheKey, rates, c.ttl)
	c.log.Debug("exchange rates refreshed",
		zap.String("usd", rates.USD.String()),
		zap.String("eur", rates.EUR.String()),
	)
	return rates, nil
}

type bulletin struct {
	XMLName    xml.Name   `xml:"Tarih_Date"`
	Currencies []currency `xml:"Currency"`
}

type currency struct {
	Code         string `xml:"CurrencyCode,attr"`
	ForexSelling string `xml:"ForexSelling"`
}

func parseBulletin(r io.Reader) (Rates, error) {
	var doc bulletin
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Rates{}, fmt.Errorf("decode bulletin: %w", err)
	}

	var rates Rates
	for _, cur := range doc.Currencies {
		raw := strings.TrimSpace(cur.ForexSelling)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return Rates{}, fmt.Errorf("parse %s rate: %w", cur.Code, err)
		}
		switch strings.ToUpper(cur.Code) {
		case "USD":
			rates.USD = value.Round(4)
		case "EUR":
			rates.EUR = value.Round(4)
		}
	}
	if rates.IsZero() {
		return Rates{}, fmt.Errorf("bulletin has no USD or EUR rate")
	}
	return rates, nil
}
