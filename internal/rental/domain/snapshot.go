package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Snapshot is the read-only view a document generator renders.
type Snapshot struct {
	RentalID   snowflake.ID    `json:"rental_id"`
	FormNumber string          `json:"form_number"`
	IssuedAt   time.Time       `json:"issued_at"`
	Customer   SnapshotParty   `json:"customer"`
	USDRate    decimal.Decimal `json:"usd_rate"`
	EURRate    decimal.Decimal `json:"eur_rate"`
	VATRate    int             `json:"vat_rate"`
	Lines      []SnapshotLine  `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	VATAmount  decimal.Decimal `json:"vat_amount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

type SnapshotParty struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name,omitempty"`
	ContactInfo string `json:"contact_info,omitempty"`
	Address     string `json:"address,omitempty"`
	TaxOffice   string `json:"tax_office,omitempty"`
	TaxNumber   string `json:"tax_number"`
}

type SnapshotLine struct {
	LineID             snowflake.ID    `json:"line_id"`
	Equipment          string          `json:"equipment"`
	SerialNumber       string          `json:"serial_number"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	Days               int64           `json:"days"`
	SellPricePerDay    decimal.Decimal `json:"sell_price_per_day"`
	TransportSellPrice decimal.Decimal `json:"transport_sell_price"`
	Total              decimal.Decimal `json:"total"`
	Status             LineStatus      `json:"status"`
}
