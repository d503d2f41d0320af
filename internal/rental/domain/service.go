package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
)

// LineInput is one requested line of a rental. Exactly one of EquipmentID
// and External names the machine. ID addresses an existing line on edit.
type LineInput struct {
	ID                  *snowflake.ID
	EquipmentID         snowflake.ID
	External            *equipmentdomain.ExternalSupply
	StartDate           time.Time
	EndDate             time.Time
	SellPricePerDay     decimal.Decimal
	CostPricePerDay     decimal.Decimal
	TransportSellPrice  decimal.Decimal
	TransportCostPrice  decimal.Decimal
	TransportSupplierID *snowflake.ID
}

type CreateRentalRequest struct {
	FormNumber string
	CustomerID snowflake.ID
	VATRate    *int
	Notes      string
	Lines      []LineInput
}

// UpdateRentalRequest replaces the editable lines of a rental. Finalized
// and cancelled lines are kept as they are.
type UpdateRentalRequest struct {
	FormNumber string
	CustomerID snowflake.ID
	VATRate    *int
	Notes      string
	Lines      []LineInput
}

type ListRentalRequest struct {
	PageToken  string
	PageSize   int32
	Query      string
	CustomerID snowflake.ID
}

type ListRentalFilter struct {
	Query      string
	CustomerID snowflake.ID
}

type LineView struct {
	RentalLineItem
	Equipment string          `json:"equipment"`
	Total     decimal.Decimal `json:"total"`
	Due       DueStatus       `json:"due"`
}

type RentalView struct {
	Rental
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	Items        []LineView      `json:"items"`
}

type ListRentalResponse struct {
	pagination.PageInfo
	Rentals []RentalView `json:"rentals"`
}

// DueLine is an active line ending on or before the scan horizon.
type DueLine struct {
	Line       RentalLineItem `json:"line"`
	FormNumber string         `json:"form_number"`
	CustomerID snowflake.ID   `json:"customer_id"`
	Due        DueStatus      `json:"due"`
}

type Service interface {
	Create(ctx context.Context, req CreateRentalRequest) (Rental, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRentalRequest) (Rental, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Get(ctx context.Context, id snowflake.ID) (RentalView, error)
	List(ctx context.Context, req ListRentalRequest) (ListRentalResponse, error)
	Snapshot(ctx context.Context, id snowflake.ID) (Snapshot, error)
	NextFormNumber(ctx context.Context) (string, error)

	FinalizeLine(ctx context.Context, lineID snowflake.ID, end time.Time) (RentalLineItem, error)
	FinalizeActiveByEquipment(ctx context.Context, equipmentID snowflake.ID, end time.Time) (RentalLineItem, error)
	CorrectFinalizedEndDate(ctx context.Context, lineID snowflake.ID, end time.Time) (RentalLineItem, error)
	UndoFinalize(ctx context.Context, lineID snowflake.ID) (RentalLineItem, error)
	CancelLine(ctx context.Context, lineID snowflake.ID) (RentalLineItem, error)

	ListDueLines(ctx context.Context, within int) ([]DueLine, error)
}
