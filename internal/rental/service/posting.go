package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/internal/rental/domain"
	"gorm.io/gorm"
)

// sync hands the billable lines of rental to the ledger.
func (s *Service) sync(ctx context.Context, tx *gorm.DB, rental domain.Rental, lines []domain.RentalLineItem) error {
	posting := ledgerdomain.RentalPosting{
		RentalID:   rental.ID,
		CompanyID:  rental.CustomerID,
		FormNumber: rental.FormNumber,
		Lines:      make([]ledgerdomain.LinePosting, 0, len(lines)),
	}

	machines := make(map[snowflake.ID]equipmentdomain.Equipment, len(lines))
	for _, line := range lines {
		if !line.Billable() {
			continue
		}
		equipment, ok := machines[line.EquipmentID]
		if !ok {
			loaded, err := s.registry.Load(ctx, tx, line.EquipmentID)
			if err != nil {
				return err
			}
			equipment = loaded
			machines[line.EquipmentID] = loaded
		}

		lp := ledgerdomain.LinePosting{
			LineID:              line.ID,
			Label:               equipment.Label(),
			Start:               line.StartDate,
			End:                 line.BilledEndDate,
			SellPerDay:          line.SellPricePerDay,
			CostPerDay:          line.CostPricePerDay,
			TransportSell:       line.TransportSellPrice,
			TransportCost:       line.TransportCostPrice,
			TransportSupplierID: line.TransportSupplierID,
		}
		if equipment.IsExternal() {
			lp.EquipmentSupplierID = equipment.OwningSupplierID
		}
		posting.Lines = append(posting.Lines, lp)
	}

	return s.reconciler.SyncRental(ctx, tx, posting)
}

// resync reloads the lines of rental and posts them again.
func (s *Service) resync(ctx context.Context, tx *gorm.DB, rental domain.Rental) error {
	rows, err := s.repo.ListLines(ctx, tx, rental.ID)
	if err != nil {
		return err
	}
	lines := make([]domain.RentalLineItem, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, *row)
	}
	return s.sync(ctx, tx, rental, lines)
}
