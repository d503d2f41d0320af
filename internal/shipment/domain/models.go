package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
)

// Shipment is a transport job billed to or by a company. Each shipment
// owns exactly one service record.
type Shipment struct {
	ID              snowflake.ID                 `gorm:"primaryKey" json:"id"`
	CompanyID       snowflake.ID                 `gorm:"not null;index" json:"company_id"`
	Date            time.Time                    `gorm:"not null;index" json:"date"`
	Route           string                       `json:"route"`
	Plate           string                       `json:"plate,omitempty"`
	Description     string                       `json:"description,omitempty"`
	NetAmount       decimal.Decimal              `gorm:"type:decimal(15,2);not null" json:"net_amount"`
	VATRate         int                          `gorm:"not null" json:"vat_rate"`
	GrossAmount     decimal.Decimal              `gorm:"type:decimal(15,2);not null" json:"gross_amount"`
	Direction       ledgerdomain.RecordDirection `gorm:"type:varchar(10);not null" json:"direction"`
	ServiceRecordID *snowflake.ID                `json:"service_record_id,omitempty"`
	IsActive        bool                         `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time                    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                    `gorm:"not null" json:"updated_at"`
}

func (Shipment) TableName() string { return "shipments" }

// Gross adds VAT at rate percent to net, rounded to cents.
func Gross(net decimal.Decimal, rate int) decimal.Decimal {
	vat := net.Mul(decimal.NewFromInt(int64(rate))).Div(decimal.NewFromInt(100))
	return net.Add(vat).Round(2)
}

// ReferenceNo is the document number printed for a shipment on date.
func ReferenceNo(date time.Time) string {
	return "NK-" + date.Format("060102")
}
