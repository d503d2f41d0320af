package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RentalPosting is the ledger view of a committed rental.
type RentalPosting struct {
	RentalID   snowflake.ID
	CompanyID  snowflake.ID
	FormNumber string
	Lines      []LinePosting
}

type LinePosting struct {
	LineID              snowflake.ID
	Label               string
	Start               time.Time
	End                 time.Time
	SellPerDay          decimal.Decimal
	CostPerDay          decimal.Decimal
	TransportSell       decimal.Decimal
	TransportCost       decimal.Decimal
	EquipmentSupplierID *snowflake.ID
	TransportSupplierID *snowflake.ID
}

// BillableDays counts calendar days inclusive of both ends, at least one.
func BillableDays(start, end time.Time) int64 {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	days := int64(e.Sub(s).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

func (l LinePosting) Days() int64 {
	return BillableDays(l.Start, l.End)
}

// Revenue is sell/day times days plus the transport sell price.
func (l LinePosting) Revenue() decimal.Decimal {
	return l.SellPerDay.Mul(decimal.NewFromInt(l.Days())).Add(l.TransportSell)
}

func (l LinePosting) EquipmentCost() decimal.Decimal {
	return l.CostPerDay.Mul(decimal.NewFromInt(l.Days()))
}

// Receivable sums line revenue across the rental.
func (p RentalPosting) Receivable() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.Revenue())
	}
	return total.Round(2)
}

// ReceivableDate is the earliest line start.
func (p RentalPosting) ReceivableDate() time.Time {
	var earliest time.Time
	for _, l := range p.Lines {
		if earliest.IsZero() || l.Start.Before(earliest) {
			earliest = l.Start
		}
	}
	return earliest
}

type ShipmentPosting struct {
	ShipmentID  snowflake.ID
	CompanyID   snowflake.ID
	Date        time.Time
	Amount      decimal.Decimal
	Direction   RecordDirection
	ReferenceNo string
	Description string
}
