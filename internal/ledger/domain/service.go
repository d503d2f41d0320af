package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashMovementRequest describes a payment, a quick cash entry or one leg
// of a transfer.
type CashMovementRequest struct {
	CompanyID     snowflake.ID
	CashAccountID *snowflake.ID
	Date          time.Time
	Amount        decimal.Decimal
	Direction     PaymentDirection
	DueDate       *time.Time
	ReferenceNo   string
	Description   string
}

type TransferRequest struct {
	CompanyID     snowflake.ID
	FromAccountID snowflake.ID
	ToAccountID   snowflake.ID
	Amount        decimal.Decimal
	Date          time.Time
	Description   string
}

// Transfer is the pair of linked payments written by a cash transfer.
type Transfer struct {
	ID  snowflake.ID `json:"id"`
	Out Payment      `json:"out"`
	In  Payment      `json:"in"`
}

type RecordRequest struct {
	CompanyID   snowflake.ID
	Date        time.Time
	Amount      decimal.Decimal
	Direction   RecordDirection
	ReferenceNo string
	Description string
	DueDate     *time.Time
}

type CreateCashAccountRequest struct {
	Name           string
	Kind           CashAccountKind
	Currency       string
	OpeningBalance decimal.Decimal
}

// Reconciler keeps company and cash-account balances equal to the sum of
// the effects of their service records and payments. Posting methods run
// on the caller's transaction.
type Reconciler interface {
	SyncRental(ctx context.Context, tx *gorm.DB, posting RentalPosting) error
	RemoveRental(ctx context.Context, tx *gorm.DB, rentalID snowflake.ID) error
	SyncShipment(ctx context.Context, tx *gorm.DB, posting ShipmentPosting) (snowflake.ID, error)
	RemoveShipment(ctx context.Context, tx *gorm.DB, shipmentID snowflake.ID) error

	ApplyCashMovement(ctx context.Context, req CashMovementRequest) (Payment, error)
	UpdatePayment(ctx context.Context, id snowflake.ID, req CashMovementRequest) (Payment, error)
	DeletePayment(ctx context.Context, id snowflake.ID) error
	Transfer(ctx context.Context, req TransferRequest) (Transfer, error)
}

type Service interface {
	Reconciler

	CreateRecord(ctx context.Context, req RecordRequest) (ServiceRecord, error)
	UpdateRecord(ctx context.Context, id snowflake.ID, req RecordRequest) (ServiceRecord, error)
	DeleteRecord(ctx context.Context, id snowflake.ID) error
	GetRecord(ctx context.Context, id snowflake.ID) (ServiceRecord, error)
	ListRecords(ctx context.Context, companyID snowflake.ID) ([]ServiceRecord, error)
	ListRentalRecords(ctx context.Context, rentalID snowflake.ID) ([]ServiceRecord, error)

	GetPayment(ctx context.Context, id snowflake.ID) (Payment, error)
	ListPayments(ctx context.Context, companyID snowflake.ID) ([]Payment, error)

	CreateCashAccount(ctx context.Context, req CreateCashAccountRequest) (CashAccount, error)
	GetCashAccount(ctx context.Context, id snowflake.ID) (CashAccount, error)
	ListCashAccounts(ctx context.Context) ([]CashAccount, error)
}

var (
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidDate           = errors.New("invalid_date")
	ErrInvalidDirection      = errors.New("invalid_direction")
	ErrInvalidCompany        = errors.New("invalid_company")
	ErrReconciliationFailure = errors.New("reconciliation_failure")
	ErrMissingReference      = errors.New("missing_reference")
	ErrPaymentNotFound       = errors.New("payment_not_found")
	ErrRecordNotFound        = errors.New("record_not_found")
	ErrCashAccountNotFound   = errors.New("cash_account_not_found")
	ErrManagedRecord         = errors.New("managed_record")
	ErrTransferLeg           = errors.New("transfer_leg")
	ErrSameAccount           = errors.New("same_account")
	ErrCurrencyMismatch      = errors.New("currency_mismatch")
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidAccountKind    = errors.New("invalid_account_kind")
	ErrDuplicateAccountName  = errors.New("duplicate_account_name")
)
