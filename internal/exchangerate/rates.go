package exchangerate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Rates are TRY selling rates for the currencies rentals snapshot. A zero
// value means the rate is unknown.
type Rates struct {
	USD       decimal.Decimal `json:"usd"`
	EUR       decimal.Decimal `json:"eur"`
	FetchedAt time.Time       `json:"fetched_at"`
}

func (r Rates) IsZero() bool {
	return r.USD.IsZero() && r.EUR.IsZero()
}

// Provider returns the latest known rates. It never fails; callers get
// zero rates when nothing could be fetched.
type Provider interface {
	Latest(ctx context.Context) Rates
}

// Static always returns the same rates.
type Static Rates

func (s Static) Latest(context.Context) Rates {
	return Rates(s)
}
