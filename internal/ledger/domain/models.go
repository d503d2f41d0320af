package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RecordDirection tells whether a service record is billed to the company
// (outgoing) or billed by it (incoming).
type RecordDirection string

const (
	RecordDirectionOutgoing RecordDirection = "outgoing"
	RecordDirectionIncoming RecordDirection = "incoming"
)

// PaymentDirection tells whether money came in from the company
// (collection) or went out to it (payment).
type PaymentDirection string

const (
	PaymentDirectionCollection PaymentDirection = "collection"
	PaymentDirectionPayment    PaymentDirection = "payment"
)

type RecordKind string

const (
	RecordKindManual           RecordKind = "manual"
	RecordKindRentalReceivable RecordKind = "rental_receivable"
	RecordKindEquipmentCost    RecordKind = "equipment_cost"
	RecordKindTransportCost    RecordKind = "transport_cost"
	RecordKindShipment         RecordKind = "shipment"
)

type SourceType string

const (
	SourceTypeManual     SourceType = "manual"
	SourceTypeRental     SourceType = "rental"
	SourceTypeRentalLine SourceType = "rental_line"
	SourceTypeShipment   SourceType = "shipment"
)

type CashAccountKind string

const (
	CashAccountKindCash CashAccountKind = "cash"
	CashAccountKindBank CashAccountKind = "bank"
)

// ServiceRecord is an invoice-like entry. Records derived from rentals and
// shipments carry their source so they can be located and rewritten.
type ServiceRecord struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID    `gorm:"not null;index" json:"company_id"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Direction   RecordDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Kind        RecordKind      `gorm:"type:varchar(30);not null;uniqueIndex:ux_service_records_source,priority:3" json:"kind"`
	SourceType  SourceType      `gorm:"type:varchar(20);not null;uniqueIndex:ux_service_records_source,priority:1" json:"source_type"`
	SourceID    *snowflake.ID   `gorm:"uniqueIndex:ux_service_records_source,priority:2" json:"source_id,omitempty"`
	RentalID    *snowflake.ID   `gorm:"index" json:"rental_id,omitempty"`
	ReferenceNo string          `json:"reference_no,omitempty"`
	Description string          `json:"description,omitempty"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (ServiceRecord) TableName() string { return "service_records" }

// Effect is the change this record makes to its company's balance.
func (r ServiceRecord) Effect() decimal.Decimal {
	if r.Direction == RecordDirectionIncoming {
		return r.Amount.Neg()
	}
	return r.Amount
}

func (r ServiceRecord) IsManaged() bool {
	return r.SourceType != SourceTypeManual
}

type Payment struct {
	ID            snowflake.ID     `gorm:"primaryKey" json:"id"`
	CompanyID     snowflake.ID     `gorm:"not null;index" json:"company_id"`
	CashAccountID *snowflake.ID    `gorm:"index" json:"cash_account_id,omitempty"`
	Date          time.Time        `gorm:"not null;index" json:"date"`
	Amount        decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"amount"`
	Direction     PaymentDirection `gorm:"type:varchar(12);not null" json:"direction"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	ReferenceNo   string           `json:"reference_no,omitempty"`
	Description   string           `json:"description,omitempty"`
	TransferID    *snowflake.ID    `gorm:"index" json:"transfer_id,omitempty"`
	CreatedAt     time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// CompanyEffect is the change this payment makes to its company's balance.
func (p Payment) CompanyEffect() decimal.Decimal {
	if p.Direction == PaymentDirectionCollection {
		return p.Amount.Neg()
	}
	return p.Amount
}

// CashEffect is the change this payment makes to its cash account.
func (p Payment) CashEffect() decimal.Decimal {
	if p.Direction == PaymentDirectionCollection {
		return p.Amount
	}
	return p.Amount.Neg()
}

type CashAccount struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"not null;uniqueIndex:ux_cash_accounts_name" json:"name"`
	Kind      CashAccountKind `gorm:"type:varchar(10);not null" json:"kind"`
	Currency  string          `gorm:"type:varchar(3);not null" json:"currency"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (CashAccount) TableName() string { return "cash_accounts" }
