package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, shipment *Shipment) error
	Update(ctx context.Context, db *gorm.DB, shipment *Shipment) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Shipment, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Shipment, error)
	List(ctx context.Context, db *gorm.DB, filter ListShipmentFilter, page pagination.Pagination) ([]*Shipment, error)
}
