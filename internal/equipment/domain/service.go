package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"gorm.io/gorm"
)

type Attributes struct {
	Brand          string
	Model          string
	Type           string
	Fuel           string
	WorkingHeight  int
	LiftCapacity   int
	ProductionYear int
}

type CreateEquipmentRequest struct {
	Code         string
	SerialNumber string
	Attributes
	Currency  string
	EntryCost decimal.Decimal
}

type UpdateEquipmentRequest struct {
	Code         *string
	SerialNumber *string
	Attributes   *Attributes
	Currency     *string
	EntryCost    *decimal.Decimal
}

// ExternalSupply identifies a supplier-owned machine by supplier and serial.
type ExternalSupply struct {
	SupplierID snowflake.ID
	Serial     string
	Attributes
}

type StartServiceRequest struct {
	ServiceDate  time.Time
	Description  string
	WorkingHours int
}

type ListEquipmentRequest struct {
	PageToken string
	PageSize  int32
	Query     string
	Status    Status
	Scope     Scope
}

type Scope string

const (
	ScopeAll      Scope = ""
	ScopeOwned    Scope = "owned"
	ScopeExternal Scope = "external"
)

type ListEquipmentFilter struct {
	Query  string
	Status Status
	Scope  Scope
}

type ListEquipmentResponse struct {
	pagination.PageInfo
	Equipment []Equipment `json:"equipment"`
}

// Registry owns equipment status. Every method runs on the caller's
// transaction so changes are visible to the rest of that transaction.
type Registry interface {
	Load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Equipment, error)
	Reserve(ctx context.Context, tx *gorm.DB, id, rentalID snowflake.ID) (Equipment, error)
	Release(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Equipment, error)
	Transition(ctx context.Context, tx *gorm.DB, id snowflake.ID, to Status) (Equipment, error)
}

// Resolver finds or registers supplier-owned equipment.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, tx *gorm.DB, req ExternalSupply) (Equipment, error)
}

type Service interface {
	Registry
	Resolver

	Create(ctx context.Context, req CreateEquipmentRequest) (Equipment, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateEquipmentRequest) (Equipment, error)
	Get(ctx context.Context, id snowflake.ID) (Equipment, error)
	List(ctx context.Context, req ListEquipmentRequest) (ListEquipmentResponse, error)
	ListAvailable(ctx context.Context, includeID snowflake.ID) ([]Equipment, error)
	Deactivate(ctx context.Context, id snowflake.ID) (Equipment, error)
	Restore(ctx context.Context, id snowflake.ID) (Equipment, error)
	Delete(ctx context.Context, id snowflake.ID) error

	StartService(ctx context.Context, id snowflake.ID, req StartServiceRequest) (MaintenanceRecord, error)
	CompleteService(ctx context.Context, id snowflake.ID) (Equipment, error)
	ListMaintenance(ctx context.Context, id snowflake.ID) ([]MaintenanceRecord, error)
}

var (
	ErrInvalidID               = errors.New("invalid_id")
	ErrInvalidCode             = errors.New("invalid_code")
	ErrInvalidSerial           = errors.New("invalid_serial")
	ErrDuplicateCode           = errors.New("duplicate_code")
	ErrNotFound                = errors.New("equipment_not_found")
	ErrNotAvailable            = errors.New("equipment_not_available")
	ErrInvalidTransition       = errors.New("invalid_transition")
	ErrSerialConflict          = errors.New("serial_conflict")
	ErrMissingSupplier         = errors.New("missing_supplier")
	ErrMissingReference        = errors.New("missing_reference")
	ErrExternalSerialImmutable = errors.New("external_serial_immutable")
	ErrInvalidStatus           = errors.New("invalid_status")
	ErrInUse                   = errors.New("equipment_in_use")
)
