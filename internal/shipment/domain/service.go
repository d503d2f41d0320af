package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
)

type ShipmentRequest struct {
	CompanyID   snowflake.ID
	Date        time.Time
	Route       string
	Plate       string
	Description string
	NetAmount   decimal.Decimal
	VATRate     *int
	Direction   ledgerdomain.RecordDirection
}

type ListShipmentRequest struct {
	PageToken  string
	PageSize   int32
	CompanyID  snowflake.ID
	ActiveOnly bool
}

type ListShipmentFilter struct {
	CompanyID  snowflake.ID
	ActiveOnly bool
}

type ListShipmentResponse struct {
	pagination.PageInfo
	Shipments []Shipment `json:"shipments"`
}

type Service interface {
	Create(ctx context.Context, req ShipmentRequest) (Shipment, error)
	Update(ctx context.Context, id snowflake.ID, req ShipmentRequest) (Shipment, error)
	Delete(ctx context.Context, id snowflake.ID) error
	// SetActive withdraws a shipment from the ledger or posts it again.
	SetActive(ctx context.Context, id snowflake.ID, active bool) (Shipment, error)
	Get(ctx context.Context, id snowflake.ID) (Shipment, error)
	List(ctx context.Context, req ListShipmentRequest) (ListShipmentResponse, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidDate      = errors.New("invalid_date")
	ErrInvalidVATRate   = errors.New("invalid_vat_rate")
	ErrInvalidDirection = errors.New("invalid_direction")
	ErrNotFound         = errors.New("shipment_not_found")
)
