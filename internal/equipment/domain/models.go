package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Equipment is a machine of the owned fleet, or one sourced from a supplier
// when OwningSupplierID is set.
type Equipment struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	Code             string          `gorm:"not null;uniqueIndex:ux_equipment_code" json:"code"`
	SerialNumber     string          `gorm:"not null;uniqueIndex:ux_equipment_supplier_serial,priority:2;index" json:"serial_number"`
	OwningSupplierID *snowflake.ID   `gorm:"uniqueIndex:ux_equipment_supplier_serial,priority:1" json:"owning_supplier_id,omitempty"`
	Brand            string          `json:"brand"`
	Model            string          `json:"model"`
	Type             string          `json:"type"`
	Fuel             string          `json:"fuel,omitempty"`
	WorkingHeight    int             `json:"working_height"`
	LiftCapacity     int             `json:"lift_capacity"`
	ProductionYear   int             `json:"production_year,omitempty"`
	Status           Status          `gorm:"type:varchar(20);not null;index" json:"status"`
	Currency         string          `gorm:"type:varchar(3);not null" json:"currency"`
	EntryCost        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"entry_cost"`
	Version          int64           `gorm:"not null" json:"version"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`
}

func (Equipment) TableName() string { return "equipment" }

func (e Equipment) IsExternal() bool {
	return e.OwningSupplierID != nil
}

// Label is the human-readable machine description used on documents.
func (e Equipment) Label() string {
	name := strings.TrimSpace(strings.Join([]string{e.Brand, e.Model}, " "))
	if name == "" {
		return e.Code
	}
	return fmt.Sprintf("%s (%s)", name, e.Code)
}

type MaintenanceRecord struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	EquipmentID  snowflake.ID `gorm:"not null;index" json:"equipment_id"`
	ServiceDate  time.Time    `gorm:"not null" json:"service_date"`
	Description  string       `json:"description"`
	WorkingHours int          `json:"working_hours"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (MaintenanceRecord) TableName() string { return "maintenance_records" }
