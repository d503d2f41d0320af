package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
)

var (
	ErrInvalidID                  = errors.New("invalid_id")
	ErrNotFound                   = errors.New("rental_not_found")
	ErrLineNotFound               = errors.New("line_not_found")
	ErrInvalidCustomer            = errors.New("invalid_customer")
	ErrNoLineItems                = errors.New("no_line_items")
	ErrDuplicateFormNumber        = errors.New("duplicate_form_number")
	ErrDuplicateEquipmentInRental = errors.New("duplicate_equipment_in_rental")
	ErrInvalidDateRange           = errors.New("invalid_date_range")
	ErrInvalidPrice               = errors.New("invalid_price")
	ErrMissingSupplierForExternal = errors.New("missing_supplier_for_external")
	ErrMissingReference           = errors.New("missing_reference")
	ErrAlreadyFinalized           = errors.New("already_finalized")
	ErrNotFinalized               = errors.New("not_finalized")
	ErrInvalidLineState           = errors.New("invalid_line_state")
	ErrInvalidVATRate             = errors.New("invalid_vat_rate")

	ErrEquipmentNotAvailable = fmt.Errorf("rental_%w", equipmentdomain.ErrNotAvailable)
	ErrSerialConflict        = equipmentdomain.ErrSerialConflict
)

// LineError ties a failure to the input line at Index.
type LineError struct {
	Index       int
	LineID      snowflake.ID
	EquipmentID snowflake.ID
	Err         error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Index+1, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

// AllocationError collects every line that kept a commit from going
// through. errors.Is matches any of the line causes.
type AllocationError struct {
	Lines []LineError
}

func (e *AllocationError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, line := range e.Lines {
		parts = append(parts, line.Error())
	}
	return "allocation rejected: " + strings.Join(parts, "; ")
}

func (e *AllocationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Lines))
	for _, line := range e.Lines {
		errs = append(errs, line)
	}
	return errs
}

// Add records a failure for the input line at index.
func (e *AllocationError) Add(index int, lineID, equipmentID snowflake.ID, err error) {
	e.Lines = append(e.Lines, LineError{Index: index, LineID: lineID, EquipmentID: equipmentID, Err: err})
}

// ErrOrNil returns e when it holds at least one line error.
func (e *AllocationError) ErrOrNil() error {
	if e == nil || len(e.Lines) == 0 {
		return nil
	}
	return e
}
