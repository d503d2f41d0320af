package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
)

type LineStatus string

const (
	LineStatusDraft     LineStatus = "draft"
	LineStatusActive    LineStatus = "active"
	LineStatusFinalized LineStatus = "finalized"
	LineStatusCancelled LineStatus = "cancelled"
)

// Rental is a contract with one customer. Its lines carry the equipment,
// the period and the prices.
type Rental struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	FormNumber string           `gorm:"not null;uniqueIndex:ux_rentals_form_number" json:"form_number"`
	CustomerID snowflake.ID     `gorm:"not null;index" json:"customer_id"`
	VATRate    int              `gorm:"not null" json:"vat_rate"`
	USDRate    decimal.Decimal  `gorm:"type:decimal(10,4);not null" json:"usd_rate"`
	EURRate    decimal.Decimal  `gorm:"type:decimal(10,4);not null" json:"eur_rate"`
	Notes      string           `json:"notes,omitempty"`
	CreatedAt  time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"not null" json:"updated_at"`
	Lines      []RentalLineItem `gorm:"-" json:"lines,omitempty"`
}

func (Rental) TableName() string { return "rentals" }

// RentalLineItem allocates one machine to a rental for an inclusive date
// range. BilledEndDate is the end the receivable is computed from.
type RentalLineItem struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	RentalID            snowflake.ID    `gorm:"not null;index" json:"rental_id"`
	EquipmentID         snowflake.ID    `gorm:"not null;index:ix_rental_line_items_equipment_status,priority:1" json:"equipment_id"`
	Position            int             `gorm:"not null" json:"position"`
	StartDate           time.Time       `gorm:"not null" json:"start_date"`
	EndDate             time.Time       `gorm:"not null;index" json:"end_date"`
	BilledEndDate       time.Time       `gorm:"not null" json:"billed_end_date"`
	SellPricePerDay     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"sell_price_per_day"`
	CostPricePerDay     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"cost_price_per_day"`
	TransportSellPrice  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"transport_sell_price"`
	TransportCostPrice  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"transport_cost_price"`
	TransportSupplierID *snowflake.ID   `gorm:"index" json:"transport_supplier_id,omitempty"`
	Status              LineStatus      `gorm:"type:varchar(20);not null;index:ix_rental_line_items_equipment_status,priority:2" json:"status"`
	FinalizedAt         *time.Time      `json:"finalized_at,omitempty"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null" json:"updated_at"`
}

func (RentalLineItem) TableName() string { return "rental_line_items" }

// Billable reports whether the line contributes to the ledger.
func (l RentalLineItem) Billable() bool {
	return l.Status == LineStatusActive || l.Status == LineStatusFinalized
}

func (l RentalLineItem) Days() int64 {
	return ledgerdomain.BillableDays(l.StartDate, l.BilledEndDate)
}

// Total is sell/day times billed days plus the transport sell price.
func (l RentalLineItem) Total() decimal.Decimal {
	return l.SellPricePerDay.Mul(decimal.NewFromInt(l.Days())).Add(l.TransportSellPrice)
}
