package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRecord(ctx context.Context, db *gorm.DB, record *ServiceRecord) error
	UpdateRecord(ctx context.Context, db *gorm.DB, record *ServiceRecord) error
	DeleteRecord(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindRecordByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceRecord, error)
	FindRecordForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceRecord, error)
	FindRecordBySource(ctx context.Context, db *gorm.DB, sourceType SourceType, sourceID snowflake.ID, kind RecordKind) (*ServiceRecord, error)
	ListRecordsByRental(ctx context.Context, db *gorm.DB, rentalID snowflake.ID) ([]*ServiceRecord, error)
	ListRecordsByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*ServiceRecord, error)

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	UpdatePayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	DeletePayment(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindPaymentForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListPaymentsByTransfer(ctx context.Context, db *gorm.DB, transferID snowflake.ID) ([]*Payment, error)
	ListPaymentsByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*Payment, error)

	InsertCashAccount(ctx context.Context, db *gorm.DB, account *CashAccount) error
	FindCashAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CashAccount, error)
	FindCashAccountForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CashAccount, error)
	UpdateCashBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance decimal.Decimal, at time.Time) error
	ListCashAccounts(ctx context.Context, db *gorm.DB) ([]*CashAccount, error)
}
