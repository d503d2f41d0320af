package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/clock"
	"github.com/smallbiznis/equiprent/internal/rental/domain"
)

func (s *Service) Snapshot(ctx context.Context, id snowflake.ID) (domain.Snapshot, error) {
	if id == 0 {
		return domain.Snapshot{}, domain.ErrInvalidID
	}
	rental, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if rental == nil {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	customer, err := s.companyRepo.FindByID(ctx, s.db, rental.CustomerID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if customer == nil {
		return domain.Snapshot{}, domain.ErrMissingReference
	}
	lines, err := s.repo.ListLines(ctx, s.db, id)
	if err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{
		RentalID:   rental.ID,
		FormNumber: rental.FormNumber,
		IssuedAt:   rental.CreatedAt,
		Customer: domain.SnapshotParty{
			Name:        customer.Name,
			ContactName: customer.ContactName,
			ContactInfo: customer.ContactInfo,
			Address:     customer.Address,
			TaxOffice:   customer.TaxOffice,
			TaxNumber:   customer.TaxNumber,
		},
		USDRate:  rental.USDRate,
		EURRate:  rental.EURRate,
		VATRate:  rental.VATRate,
		Lines:    make([]domain.SnapshotLine, 0, len(lines)),
		Subtotal: decimal.Zero,
	}
	for _, line := range lines {
		if !line.Billable() {
			continue
		}
		equipment, err := s.registry.Load(ctx, s.db, line.EquipmentID)
		if err != nil {
			return domain.Snapshot{}, err
		}
		total := line.Total()
		snap.Lines = append(snap.Lines, domain.SnapshotLine{
			LineID:             line.ID,
			Equipment:          equipment.Label(),
			SerialNumber:       equipment.SerialNumber,
			StartDate:          line.StartDate,
			EndDate:            line.BilledEndDate,
			Days:               line.Days(),
			SellPricePerDay:    line.SellPricePerDay,
			TransportSellPrice: line.TransportSellPrice,
			Total:              total,
			Status:             line.Status,
		})
		snap.Subtotal = snap.Subtotal.Add(total)
	}
	snap.Subtotal = snap.Subtotal.Round(2)
	snap.VATAmount = snap.Subtotal.Mul(decimal.NewFromInt(int64(rental.VATRate))).Div(decimal.NewFromInt(100)).Round(2)
	snap.GrandTotal = snap.Subtotal.Add(snap.VATAmount)
	return snap, nil
}

// ListDueLines returns active lines ending within the given number of
// days, overdue ones included. A negative window uses the policy default.
func (s *Service) ListDueLines(ctx context.Context, within int) ([]domain.DueLine, error) {
	if within < 0 {
		within = s.policy.RentalPolicy().DueSoonDays
	}
	today := clock.Today(s.clock)
	horizon := today.AddDate(0, 0, within)

	lines, err := s.repo.ListActiveLinesEndingBy(ctx, s.db, horizon)
	if err != nil {
		return nil, err
	}

	rentals := map[snowflake.ID]*domain.Rental{}
	due := make([]domain.DueLine, 0, len(lines))
	for _, line := range lines {
		rental, ok := rentals[line.RentalID]
		if !ok {
			rental, err = s.repo.FindByID(ctx, s.db, line.RentalID)
			if err != nil {
				return nil, err
			}
			rentals[line.RentalID] = rental
		}
		if rental == nil {
			continue
		}
		due = append(due, domain.DueLine{
			Line:       *line,
			FormNumber: rental.FormNumber,
			CustomerID: rental.CustomerID,
			Due:        domain.DueStatusOf(*line, today, within),
		})
	}
	return due, nil
}
