package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	rentaldomain "github.com/smallbiznis/equiprent/internal/rental/domain"
	shipmentdomain "github.com/smallbiznis/equiprent/internal/shipment/domain"
	"github.com/smallbiznis/equiprent/pkg/db"
	"gorm.io/gorm"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&companydomain.Company{},
		&equipmentdomain.Equipment{},
		&equipmentdomain.MaintenanceRecord{},
		&rentaldomain.Rental{},
		&rentaldomain.RentalLineItem{},
		&ledgerdomain.CashAccount{},
		&ledgerdomain.ServiceRecord{},
		&ledgerdomain.Payment{},
		&shipmentdomain.Shipment{},
	}
}

// Migrate brings the schema up to date. Postgres uses the embedded SQL
// migrations; the other dialects are created from the models.
func Migrate(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dbType != db.TypePostgres {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
