package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
)

type CreateCompanyRequest struct {
	Name        string
	ContactName string
	ContactInfo string
	Address     string
	TaxOffice   string
	TaxNumber   string
	IsCustomer  bool
	IsSupplier  bool
	Metadata    map[string]any
}

type UpdateCompanyRequest struct {
	Name        *string
	ContactName *string
	ContactInfo *string
	Address     *string
	TaxOffice   *string
	TaxNumber   *string
	IsCustomer  *bool
	IsSupplier  *bool
}

type ListCompanyRequest struct {
	PageToken    string
	PageSize     int32
	Query        string
	CustomerOnly bool
	SupplierOnly bool
	ActiveOnly   bool
}

type ListCompanyFilter struct {
	Query        string
	CustomerOnly bool
	SupplierOnly bool
	ActiveOnly   bool
}

type ListCompanyResponse struct {
	pagination.PageInfo
	Companies []Company `json:"companies"`
}

type Service interface {
	Create(ctx context.Context, req CreateCompanyRequest) (Company, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateCompanyRequest) (Company, error)
	Deactivate(ctx context.Context, id snowflake.ID) (Company, error)
	Activate(ctx context.Context, id snowflake.ID) (Company, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Get(ctx context.Context, id snowflake.ID) (Company, error)
	List(ctx context.Context, req ListCompanyRequest) (ListCompanyResponse, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidTaxNumber    = errors.New("invalid_tax_number")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrDuplicateTaxNumber  = errors.New("duplicate_tax_number")
	ErrHasFinancialHistory = errors.New("company_has_financial_history")
	ErrNotFound            = errors.New("company_not_found")
)
