package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Company is a customer, a supplier, or both. Balance is debit minus credit
// across all of the company's service records and payments.
type Company struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"not null;index" json:"name"`
	ContactName string            `json:"contact_name,omitempty"`
	ContactInfo string            `json:"contact_info,omitempty"`
	Address     string            `json:"address,omitempty"`
	TaxOffice   string            `json:"tax_office,omitempty"`
	TaxNumber   string            `gorm:"not null;uniqueIndex:ux_companies_tax_number" json:"tax_number"`
	IsCustomer  bool              `gorm:"not null" json:"is_customer"`
	IsSupplier  bool              `gorm:"not null" json:"is_supplier"`
	IsActive    bool              `gorm:"not null" json:"is_active"`
	Balance     decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"balance"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

type BalanceStatus string

const (
	BalanceDebtor   BalanceStatus = "debtor"
	BalanceCreditor BalanceStatus = "creditor"
	BalanceSettled  BalanceStatus = "settled"
)

// StatusOf classifies a debit-minus-credit balance.
func StatusOf(balance decimal.Decimal) BalanceStatus {
	switch balance.Sign() {
	case 1:
		return BalanceDebtor
	case -1:
		return BalanceCreditor
	default:
		return BalanceSettled
	}
}
