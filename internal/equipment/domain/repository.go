package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, equipment *Equipment) error
	UpdateAttributes(ctx context.Context, db *gorm.DB, equipment *Equipment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Equipment, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Equipment, error)
	FindBySerial(ctx context.Context, db *gorm.DB, serial string) ([]*Equipment, error)
	// CompareAndSetStatus moves id from status/version to next. It reports
	// false when another writer got there first.
	CompareAndSetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from Status, version int64, next Status, at time.Time) (bool, error)
	// CountActiveAllocations counts non-finalized line items referencing the
	// equipment, optionally restricted to one rental.
	CountActiveAllocations(ctx context.Context, db *gorm.DB, equipmentID snowflake.ID, rentalID *snowflake.ID) (int64, error)
	CountLineItems(ctx context.Context, db *gorm.DB, equipmentID snowflake.ID) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ListEquipmentFilter, page pagination.Pagination) ([]*Equipment, error)
	ListAvailable(ctx context.Context, db *gorm.DB, includeID snowflake.ID) ([]*Equipment, error)
}
