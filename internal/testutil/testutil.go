// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/internal/migration"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// OpenDB returns an isolated in-memory sqlite database with the full schema.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(db, "sqlite"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func Node(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

// Date is a calendar day at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

type CompanyRole int

const (
	Customer CompanyRole = 1 << iota
	Supplier
)

func SeedCompany(t *testing.T, db *gorm.DB, node *snowflake.Node, name string, role CompanyRole) companydomain.Company {
	t.Helper()
	now := time.Now().UTC()
	id := node.Generate()
	company := companydomain.Company{
		ID:         id,
		Name:       name,
		TaxNumber:  id.String(),
		IsCustomer: role&Customer != 0,
		IsSupplier: role&Supplier != 0,
		IsActive:   true,
		Balance:    decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, db.Create(&company).Error)
	return company
}

func SeedEquipment(t *testing.T, db *gorm.DB, node *snowflake.Node, code string, status equipmentdomain.Status) equipmentdomain.Equipment {
	t.Helper()
	now := time.Now().UTC()
	eq := equipmentdomain.Equipment{
		ID:           node.Generate(),
		Code:         code,
		SerialNumber: "SN-" + code,
		Brand:        "Genie",
		Model:        "GS-1932",
		Status:       status,
		Currency:     "TRY",
		EntryCost:    decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.Create(&eq).Error)
	return eq
}

// Balance reads the stored balance of a company.
func Balance(t *testing.T, db *gorm.DB, id snowflake.ID) decimal.Decimal {
	t.Helper()
	var company companydomain.Company
	require.NoError(t, db.First(&company, "id = ?", id).Error)
	return company.Balance
}

func EquipmentStatus(t *testing.T, db *gorm.DB, id snowflake.ID) equipmentdomain.Status {
	t.Helper()
	var eq equipmentdomain.Equipment
	require.NoError(t, db.First(&eq, "id = ?", id).Error)
	return eq.Status
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
