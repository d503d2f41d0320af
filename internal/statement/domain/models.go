package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
)

type EntryType string

const (
	EntryTypeRecord  EntryType = "service_record"
	EntryTypePayment EntryType = "payment"
)

// Row is one statement line. Exactly one of Debit and Credit is non-zero.
type Row struct {
	ID             snowflake.ID    `json:"id"`
	Type           EntryType       `json:"type"`
	Date           time.Time       `json:"date"`
	ReferenceNo    string          `json:"reference_no,omitempty"`
	Description    string          `json:"description"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// Statement is the chronological account of one company. FinalBalance is
// debit minus credit; a positive value means the company owes.
type Statement struct {
	CompanyID     snowflake.ID                `json:"company_id"`
	CompanyName   string                      `json:"company_name"`
	Rows          []Row                       `json:"rows"`
	TotalDebit    decimal.Decimal             `json:"total_debit"`
	TotalCredit   decimal.Decimal             `json:"total_credit"`
	FinalBalance  decimal.Decimal             `json:"final_balance"`
	Status        companydomain.BalanceStatus `json:"status"`
	CachedBalance decimal.Decimal             `json:"cached_balance"`
}

// Reconciled reports whether the rebuilt balance matches the balance
// maintained on the company.
func (s Statement) Reconciled() bool {
	return s.FinalBalance.Equal(s.CachedBalance)
}

type Service interface {
	Build(ctx context.Context, companyID snowflake.ID) (Statement, error)
	ExportXLSX(ctx context.Context, companyID snowflake.ID, w io.Writer) error
}

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrNotFound       = errors.New("company_not_found")
)
