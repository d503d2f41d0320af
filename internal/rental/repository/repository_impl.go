package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/rental/domain"
	"github.com/smallbiznis/equiprent/pkg/db/option"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rental *domain.Rental) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rentals (id, form_number, customer_id, vat_rate, usd_rate, eur_rate, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rental.ID,
		rental.FormNumber,
		rental.CustomerID,
		rental.VATRate,
		rental.USDRate,
		rental.EURRate,
		rental.Notes,
		rental.CreatedAt,
		rental.UpdatedAt,
	).Error
}

// Update leaves the exchange-rate snapshot untouched.
func (r *repo) Update(ctx context.Context, db *gorm.DB, rental *domain.Rental) error {
	return db.WithContext(ctx).Exec(
		`UPDATE rentals SET form_number = ?, customer_id = ?, vat_rate = ?, notes = ?, updated_at = ? WHERE id = ?`,
		rental.FormNumber,
		rental.CustomerID,
		rental.VATRate,
		rental.Notes,
		rental.UpdatedAt,
		rental.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM rental_line_items WHERE rental_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM rentals WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rental, error) {
	return first[domain.Rental](db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rental, error) {
	return first[domain.Rental](db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindByFormNumber(ctx context.Context, db *gorm.DB, formNumber string) (*domain.Rental, error) {
	return first[domain.Rental](db.WithContext(ctx).Where("form_number = ?", formNumber))
}

func (r *repo) ListFormNumbers(ctx context.Context, db *gorm.DB, prefix string) ([]string, error) {
	var numbers []string
	err := db.WithContext(ctx).
		Model(&domain.Rental{}).
		Where("form_number LIKE ?", prefix+"%").
		Pluck("form_number", &numbers).Error
	return numbers, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRentalFilter, page pagination.Pagination) ([]*domain.Rental, error) {
	var rentals []*domain.Rental
	stmt := db.WithContext(ctx).Model(&domain.Rental{})
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where(
			`LOWER(form_number) LIKE ? OR customer_id IN (
				SELECT id FROM companies WHERE LOWER(name) LIKE ? OR LOWER(contact_name) LIKE ?)`,
			like, like, like,
		)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id desc").Find(&rentals).Error; err != nil {
		return nil, err
	}
	return rentals, nil
}

func (r *repo) InsertLine(ctx context.Context, db *gorm.DB, line *domain.RentalLineItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rental_line_items (id, rental_id, equipment_id, position, start_date, end_date, billed_end_date,
			sell_price_per_day, cost_price_per_day, transport_sell_price, transport_cost_price, transport_supplier_id,
			status, finalized_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line.ID,
		line.RentalID,
		line.EquipmentID,
		line.Position,
		line.StartDate,
		line.EndDate,
		line.BilledEndDate,
		line.SellPricePerDay,
		line.CostPricePerDay,
		line.TransportSellPrice,
		line.TransportCostPrice,
		line.TransportSupplierID,
		line.Status,
		line.FinalizedAt,
		line.CreatedAt,
		line.UpdatedAt,
	).Error
}

func (r *repo) UpdateLine(ctx context.Context, db *gorm.DB, line *domain.RentalLineItem) error {
	return db.WithContext(ctx).Exec(
		`UPDATE rental_line_items
		 SET equipment_id = ?, position = ?, start_date = ?, end_date = ?, billed_end_date = ?,
			sell_price_per_day = ?, cost_price_per_day = ?, transport_sell_price = ?, transport_cost_price = ?,
			transport_supplier_id = ?, status = ?, finalized_at = ?, updated_at = ?
		 WHERE id = ?`,
		line.EquipmentID,
		line.Position,
		line.StartDate,
		line.EndDate,
		line.BilledEndDate,
		line.SellPricePerDay,
		line.CostPricePerDay,
		line.TransportSellPrice,
		line.TransportCostPrice,
		line.TransportSupplierID,
		line.Status,
		line.FinalizedAt,
		line.UpdatedAt,
		line.ID,
	).Error
}

func (r *repo) DeleteLine(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM rental_line_items WHERE id = ?`, id).Error
}

func (r *repo) FindLine(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RentalLineItem, error) {
	return first[domain.RentalLineItem](db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindLineForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RentalLineItem, error) {
	return first[domain.RentalLineItem](db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindLatestActiveLine(ctx context.Context, db *gorm.DB, equipmentID snowflake.ID) (*domain.RentalLineItem, error) {
	var line domain.RentalLineItem
	err := db.WithContext(ctx).
		Where("equipment_id = ? AND status = ?", equipmentID, domain.LineStatusActive).
		Order("start_date desc, id desc").
		Take(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, rentalID snowflake.ID) ([]*domain.RentalLineItem, error) {
	var lines []*domain.RentalLineItem
	err := db.WithContext(ctx).
		Where("rental_id = ?", rentalID).
		Order("position asc, id asc").
		Find(&lines).Error
	return lines, err
}

func (r *repo) ListLinesForUpdate(ctx context.Context, db *gorm.DB, rentalID snowflake.ID) ([]*domain.RentalLineItem, error) {
	var lines []*domain.RentalLineItem
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("rental_id = ?", rentalID).
		Order("position asc, id asc").
		Find(&lines).Error
	return lines, err
}

func (r *repo) ListLinesByRentals(ctx context.Context, db *gorm.DB, rentalIDs []snowflake.ID) ([]*domain.RentalLineItem, error) {
	var lines []*domain.RentalLineItem
	if len(rentalIDs) == 0 {
		return lines, nil
	}
	err := db.WithContext(ctx).
		Where("rental_id IN ?", rentalIDs).
		Order("rental_id asc, position asc, id asc").
		Find(&lines).Error
	return lines, err
}

func (r *repo) ListActiveLinesEndingBy(ctx context.Context, db *gorm.DB, horizon time.Time) ([]*domain.RentalLineItem, error) {
	var lines []*domain.RentalLineItem
	err := db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", domain.LineStatusActive, horizon).
		Order("end_date asc, id asc").
		Find(&lines).Error
	return lines, err
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
