package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/pkg/db/option"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, equipment *domain.Equipment) error {
	return db.WithContext(ctx).Create(equipment).Error
}

func (r *repo) UpdateAttributes(ctx context.Context, db *gorm.DB, equipment *domain.Equipment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE equipment
		 SET code = ?, serial_number = ?, brand = ?, model = ?, type = ?, fuel = ?,
			working_height = ?, lift_capacity = ?, production_year = ?, currency = ?, entry_cost = ?,
			updated_at = ?
		 WHERE id = ?`,
		equipment.Code,
		equipment.SerialNumber,
		equipment.Brand,
		equipment.Model,
		equipment.Type,
		equipment.Fuel,
		equipment.WorkingHeight,
		equipment.LiftCapacity,
		equipment.ProductionYear,
		equipment.Currency,
		equipment.EntryCost,
		equipment.UpdatedAt,
		equipment.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Equipment, error) {
	var equipment domain.Equipment
	err := db.WithContext(ctx).Where("id = ?", id).First(&equipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &equipment, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Equipment, error) {
	var equipment domain.Equipment
	err := db.WithContext(ctx).Where("code = ?", code).First(&equipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &equipment, nil
}

func (r *repo) FindBySerial(ctx context.Context, db *gorm.DB, serial string) ([]*domain.Equipment, error) {
	var items []*domain.Equipment
	err := db.WithContext(ctx).
		Where("serial_number = ?", serial).
		Order("id asc").
		Find(&items).Error
	return items, err
}

func (r *repo) CompareAndSetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from domain.Status, version int64, next domain.Status, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE equipment
		 SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND status = ? AND version = ?`,
		next,
		at,
		id,
		from,
		version,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) CountActiveAllocations(ctx context.Context, db *gorm.DB, equipmentID snowflake.ID, rentalID *snowflake.ID) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx).
		Table("rental_line_items").
		Where("equipment_id = ? AND status = ?", equipmentID, "active")
	if rentalID != nil {
		stmt = stmt.Where("rental_id = ?", *rentalID)
	}
	err := stmt.Count(&count).Error
	return count, err
}

func (r *repo) CountLineItems(ctx context.Context, db *gorm.DB, equipmentID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Table("rental_line_items").
		Where("equipment_id = ?", equipmentID).
		Count(&count).Error
	return count, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM maintenance_records WHERE equipment_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM equipment WHERE id = ?`, id).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListEquipmentFilter, page pagination.Pagination) ([]*domain.Equipment, error) {
	var items []*domain.Equipment
	stmt := db.WithContext(ctx).Model(&domain.Equipment{})
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where("LOWER(code) LIKE ? OR LOWER(type) LIKE ? OR LOWER(serial_number) LIKE ? OR LOWER(brand) LIKE ?", like, like, like, like)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	switch filter.Scope {
	case domain.ScopeOwned:
		stmt = stmt.Where("owning_supplier_id IS NULL")
	case domain.ScopeExternal:
		stmt = stmt.Where("owning_supplier_id IS NOT NULL")
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListAvailable(ctx context.Context, db *gorm.DB, includeID snowflake.ID) ([]*domain.Equipment, error) {
	var items []*domain.Equipment
	stmt := db.WithContext(ctx).
		Where("owning_supplier_id IS NULL AND status = ?", domain.StatusIdle)
	if includeID != 0 {
		stmt = stmt.Or("id = ?", includeID)
	}
	err := stmt.Order("code asc").Find(&items).Error
	return items, err
}
