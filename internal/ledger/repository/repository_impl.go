package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRecord(ctx context.Context, db *gorm.DB, record *domain.ServiceRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO service_records (id, company_id, date, amount, direction, kind, source_type, source_id,
			rental_id, reference_no, description, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CompanyID,
		record.Date,
		record.Amount,
		record.Direction,
		record.Kind,
		record.SourceType,
		record.SourceID,
		record.RentalID,
		record.ReferenceNo,
		record.Description,
		record.DueDate,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

// UpdateRecord rewrites the mutable columns; the source key never changes.
func (r *repo) UpdateRecord(ctx context.Context, db *gorm.DB, record *domain.ServiceRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE service_records
		 SET company_id = ?, date = ?, amount = ?, direction = ?, rental_id = ?, reference_no = ?,
			description = ?, due_date = ?, updated_at = ?
		 WHERE id = ?`,
		record.CompanyID,
		record.Date,
		record.Amount,
		record.Direction,
		record.RentalID,
		record.ReferenceNo,
		record.Description,
		record.DueDate,
		record.UpdatedAt,
		record.ID,
	).Error
}

func (r *repo) DeleteRecord(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM service_records WHERE id = ?`, id).Error
}

func (r *repo) FindRecordByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ServiceRecord, error) {
	return first[domain.ServiceRecord](db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindRecordForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ServiceRecord, error) {
	return first[domain.ServiceRecord](db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindRecordBySource(ctx context.Context, db *gorm.DB, sourceType domain.SourceType, sourceID snowflake.ID, kind domain.RecordKind) (*domain.ServiceRecord, error) {
	return first[domain.ServiceRecord](db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("source_type = ? AND source_id = ? AND kind = ?", sourceType, sourceID, kind))
}

func (r *repo) ListRecordsByRental(ctx context.Context, db *gorm.DB, rentalID snowflake.ID) ([]*domain.ServiceRecord, error) {
	var records []*domain.ServiceRecord
	err := db.WithContext(ctx).
		Where("rental_id = ?", rentalID).
		Order("id asc").
		Find(&records).Error
	return records, err
}

func (r *repo) ListRecordsByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*domain.ServiceRecord, error) {
	var records []*domain.ServiceRecord
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("date asc, id asc").
		Find(&records).Error
	return records, err
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, company_id, cash_account_id, date, amount, direction, due_date,
			reference_no, description, transfer_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.CompanyID,
		payment.CashAccountID,
		payment.Date,
		payment.Amount,
		payment.Direction,
		payment.DueDate,
		payment.ReferenceNo,
		payment.Description,
		payment.TransferID,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET company_id = ?, cash_account_id = ?, date = ?, amount = ?, direction = ?, due_date = ?,
			reference_no = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		payment.CompanyID,
		payment.CashAccountID,
		payment.Date,
		payment.Amount,
		payment.Direction,
		payment.DueDate,
		payment.ReferenceNo,
		payment.Description,
		payment.UpdatedAt,
		payment.ID,
	).Error
}

func (r *repo) DeletePayment(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM payments WHERE id = ?`, id).Error
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return first[domain.Payment](db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindPaymentForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return first[domain.Payment](db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) ListPaymentsByTransfer(ctx context.Context, db *gorm.DB, transferID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transfer_id = ?", transferID).
		Order("id asc").
		Find(&payments).Error
	return payments, err
}

func (r *repo) ListPaymentsByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("date asc, id asc").
		Find(&payments).Error
	return payments, err
}

func (r *repo) InsertCashAccount(ctx context.Context, db *gorm.DB, account *domain.CashAccount) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO cash_accounts (id, name, kind, currency, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Name,
		account.Kind,
		account.Currency,
		account.Balance,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindCashAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CashAccount, error) {
	return first[domain.CashAccount](db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindCashAccountForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CashAccount, error) {
	return first[domain.CashAccount](db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) UpdateCashBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance decimal.Decimal, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE cash_accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance,
		at,
		id,
	).Error
}

func (r *repo) ListCashAccounts(ctx context.Context, db *gorm.DB) ([]*domain.CashAccount, error) {
	var accounts []*domain.CashAccount
	err := db.WithContext(ctx).Order("name asc").Find(&accounts).Error
	return accounts, err
}

func first[T any](stmt *gorm.DB) (*T, error) {
	var row T
	if err := stmt.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
