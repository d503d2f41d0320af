package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/company/domain"
	"github.com/smallbiznis/equiprent/pkg/db/option"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO companies (id, name, contact_name, contact_info, address, tax_office, tax_number,
			is_customer, is_supplier, is_active, balance, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.Name,
		company.ContactName,
		company.ContactInfo,
		company.Address,
		company.TaxOffice,
		company.TaxNumber,
		company.IsCustomer,
		company.IsSupplier,
		company.IsActive,
		company.Balance,
		company.Metadata,
		company.CreatedAt,
		company.UpdatedAt,
	).Error
}

// Update writes profile fields only; the balance column belongs to the ledger.
func (r *repo) Update(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Exec(
		`UPDATE companies
		 SET name = ?, contact_name = ?, contact_info = ?, address = ?, tax_office = ?, tax_number = ?,
			is_customer = ?, is_supplier = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		company.Name,
		company.ContactName,
		company.ContactInfo,
		company.Address,
		company.TaxOffice,
		company.TaxNumber,
		company.IsCustomer,
		company.IsSupplier,
		company.IsActive,
		company.UpdatedAt,
		company.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	return r.first(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindByTaxNumber(ctx context.Context, db *gorm.DB, taxNumber string) (*domain.Company, error) {
	return r.first(db.WithContext(ctx).Where("tax_number = ?", taxNumber))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Company, error) {
	var company domain.Company
	if err := stmt.First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance decimal.Decimal, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE companies SET balance = ?, updated_at = ? WHERE id = ?`,
		balance,
		at,
		id,
	).Error
}

func (r *repo) CountFinancialHistory(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(*) FROM rentals WHERE customer_id = ?) +
			(SELECT COUNT(*) FROM payments WHERE company_id = ?) +
			(SELECT COUNT(*) FROM service_records WHERE company_id = ?) +
			(SELECT COUNT(*) FROM equipment WHERE owning_supplier_id = ?) +
			(SELECT COUNT(*) FROM rental_line_items WHERE transport_supplier_id = ?) +
			(SELECT COUNT(*) FROM shipments WHERE company_id = ?)`,
		id, id, id, id, id, id,
	).Scan(&count).Error
	return count, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM companies WHERE id = ?`, id).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCompanyFilter, page pagination.Pagination) ([]*domain.Company, error) {
	var companies []*domain.Company
	stmt := db.WithContext(ctx).Model(&domain.Company{})
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where("LOWER(name) LIKE ? OR LOWER(contact_name) LIKE ? OR tax_number LIKE ?", like, like, like)
	}
	if filter.CustomerOnly {
		stmt = stmt.Where("is_customer = ?", true)
	}
	if filter.SupplierOnly {
		stmt = stmt.Where("is_supplier = ?", true)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id desc").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}
