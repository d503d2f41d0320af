package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rental *Rental) error
	Update(ctx context.Context, db *gorm.DB, rental *Rental) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rental, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rental, error)
	FindByFormNumber(ctx context.Context, db *gorm.DB, formNumber string) (*Rental, error)
	ListFormNumbers(ctx context.Context, db *gorm.DB, prefix string) ([]string, error)
	List(ctx context.Context, db *gorm.DB, filter ListRentalFilter, page pagination.Pagination) ([]*Rental, error)

	InsertLine(ctx context.Context, db *gorm.DB, line *RentalLineItem) error
	UpdateLine(ctx context.Context, db *gorm.DB, line *RentalLineItem) error
	DeleteLine(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindLine(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RentalLineItem, error)
	FindLineForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RentalLineItem, error)
	FindLatestActiveLine(ctx context.Context, db *gorm.DB, equipmentID snowflake.ID) (*RentalLineItem, error)
	ListLines(ctx context.Context, db *gorm.DB, rentalID snowflake.ID) ([]*RentalLineItem, error)
	ListLinesForUpdate(ctx context.Context, db *gorm.DB, rentalID snowflake.ID) ([]*RentalLineItem, error)
	ListLinesByRentals(ctx context.Context, db *gorm.DB, rentalIDs []snowflake.ID) ([]*RentalLineItem, error)
	ListActiveLinesEndingBy(ctx context.Context, db *gorm.DB, horizon time.Time) ([]*RentalLineItem, error)
}
