package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/shipment/domain"
	"github.com/smallbiznis/equiprent/pkg/db/option"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, shipment *domain.Shipment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO shipments (id, company_id, date, route, plate, description, net_amount, vat_rate,
			gross_amount, direction, service_record_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shipment.ID,
		shipment.CompanyID,
		shipment.Date,
		shipment.Route,
		shipment.Plate,
		shipment.Description,
		shipment.NetAmount,
		shipment.VATRate,
		shipment.GrossAmount,
		shipment.Direction,
		shipment.ServiceRecordID,
		shipment.IsActive,
		shipment.CreatedAt,
		shipment.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, shipment *domain.Shipment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE shipments
		 SET company_id = ?, date = ?, route = ?, plate = ?, description = ?, net_amount = ?, vat_rate = ?,
			gross_amount = ?, direction = ?, service_record_id = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		shipment.CompanyID,
		shipment.Date,
		shipment.Route,
		shipment.Plate,
		shipment.Description,
		shipment.NetAmount,
		shipment.VATRate,
		shipment.GrossAmount,
		shipment.Direction,
		shipment.ServiceRecordID,
		shipment.IsActive,
		shipment.UpdatedAt,
		shipment.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM shipments WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Shipment, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Shipment, error) {
	return r.first(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Shipment, error) {
	var shipment domain.Shipment
	if err := stmt.First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shipment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListShipmentFilter, page pagination.Pagination) ([]*domain.Shipment, error) {
	var shipments []*domain.Shipment
	stmt := db.WithContext(ctx).Model(&domain.Shipment{})
	if filter.CompanyID != 0 {
		stmt = stmt.Where("company_id = ?", filter.CompanyID)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id desc").Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}
