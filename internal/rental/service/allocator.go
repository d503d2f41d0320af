package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/clock"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/internal/rental/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// plannedLine is an input line resolved to a machine and, on edit, matched
// to the stored line it replaces.
type plannedLine struct {
	index     int
	input     domain.LineInput
	equipment equipmentdomain.Equipment
	existing  *domain.RentalLineItem
}

// allocate commits inputs as the editable lines of rental. current holds
// the stored lines; finalized and cancelled ones are carried over as they
// are. Every input is validated before anything is written, and any line
// failure rejects the whole batch with an *AllocationError. The returned
// lines are the full set owned by the rental after the commit.
func (s *Service) allocate(ctx context.Context, tx *gorm.DB, rental domain.Rental, current []*domain.RentalLineItem, inputs []domain.LineInput) ([]domain.RentalLineItem, error) {
	editable := make(map[snowflake.ID]*domain.RentalLineItem, len(current))
	frozen := make([]domain.RentalLineItem, 0, len(current))
	for _, line := range current {
		switch line.Status {
		case domain.LineStatusActive, domain.LineStatusDraft:
			editable[line.ID] = line
		default:
			frozen = append(frozen, *line)
		}
	}

	inputs = normalizeInputs(inputs)
	rejected := &domain.AllocationError{}
	for i, input := range inputs {
		if err := validateInput(input); err != nil {
			rejected.Add(i, inputLineID(input), input.EquipmentID, err)
			continue
		}
		if input.ID != nil {
			if _, ok := editable[*input.ID]; !ok {
				rejected.Add(i, *input.ID, input.EquipmentID, lineLookupError(*input.ID, frozen))
			}
		}
	}
	if err := rejected.ErrOrNil(); err != nil {
		return nil, err
	}

	plan, err := s.resolve(ctx, tx, inputs)
	if err != nil {
		return nil, err
	}
	matchExisting(plan, editable)

	before := make([]snowflake.ID, 0, len(editable))
	for _, line := range editable {
		before = append(before, line.EquipmentID)
	}
	after := make([]snowflake.ID, 0, len(plan))
	for _, p := range plan {
		after = append(after, p.equipment.ID)
	}

	// Ascending id order keeps concurrent commits from locking equipment
	// rows in opposite orders.
	byEquipment := make([]int, len(plan))
	for i := range plan {
		byEquipment[i] = i
	}
	sort.Slice(byEquipment, func(a, b int) bool {
		return plan[byEquipment[a]].equipment.ID < plan[byEquipment[b]].equipment.ID
	})
	for _, i := range byEquipment {
		p := plan[i]
		if _, err := s.registry.Reserve(ctx, tx, p.equipment.ID, rental.ID); err != nil {
			if !errors.Is(err, equipmentdomain.ErrNotAvailable) {
				return nil, err
			}
			rejected.Add(p.index, inputLineID(p.input), p.equipment.ID, fmt.Errorf("%w: %w", domain.ErrEquipmentNotAvailable, err))
		}
	}
	if err := rejected.ErrOrNil(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	lines := append([]domain.RentalLineItem{}, frozen...)
	claimed := make(map[snowflake.ID]struct{}, len(plan))
	for _, p := range plan {
		line := domain.RentalLineItem{
			ID:        s.genID.Generate(),
			RentalID:  rental.ID,
			CreatedAt: now,
		}
		if p.existing != nil {
			line = *p.existing
			claimed[line.ID] = struct{}{}
		}
		line.EquipmentID = p.equipment.ID
		line.Position = len(frozen) + p.index + 1
		line.StartDate = p.input.StartDate
		line.EndDate = p.input.EndDate
		line.BilledEndDate = p.input.EndDate
		line.SellPricePerDay = p.input.SellPricePerDay.Round(2)
		line.CostPricePerDay = p.input.CostPricePerDay.Round(2)
		line.TransportSellPrice = p.input.TransportSellPrice.Round(2)
		line.TransportCostPrice = p.input.TransportCostPrice.Round(2)
		line.TransportSupplierID = p.input.TransportSupplierID
		line.Status = domain.LineStatusActive
		line.FinalizedAt = nil
		line.UpdatedAt = now

		if p.existing != nil {
			err = s.repo.UpdateLine(ctx, tx, &line)
		} else {
			err = s.repo.InsertLine(ctx, tx, &line)
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	removed := make([]*domain.RentalLineItem, 0, len(editable))
	for id, line := range editable {
		if _, ok := claimed[id]; !ok {
			removed = append(removed, line)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	for _, line := range removed {
		if err := s.repo.DeleteLine(ctx, tx, line.ID); err != nil {
			return nil, err
		}
	}

	// Release only after the removed lines are gone so external equipment
	// sees the remaining allocations.
	leaving := difference(before, after)
	for _, equipmentID := range leaving {
		if _, err := s.registry.Release(ctx, tx, equipmentID); err != nil {
			return nil, err
		}
	}

	s.log.Debug("rental lines allocated",
		zap.String("rental_id", rental.ID.String()),
		zap.Int("lines", len(plan)),
		zap.Int("removed", len(removed)),
		zap.Int("released", len(leaving)),
	)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Position < lines[j].Position })
	return lines, nil
}

// resolve maps every input to a machine: owned inputs by id, external
// inputs through the resolver. A machine may appear on one line only.
func (s *Service) resolve(ctx context.Context, tx *gorm.DB, inputs []domain.LineInput) ([]plannedLine, error) {
	rejected := &domain.AllocationError{}
	plan := make([]plannedLine, 0, len(inputs))
	seen := make(map[snowflake.ID]int, len(inputs))

	for i, input := range inputs {
		equipment, err := s.resolveEquipment(ctx, tx, input)
		if err != nil {
			if !isLineFailure(err) {
				return nil, err
			}
			rejected.Add(i, inputLineID(input), input.EquipmentID, err)
			continue
		}
		if first, dup := seen[equipment.ID]; dup {
			rejected.Add(i, inputLineID(input), equipment.ID,
				fmt.Errorf("%w: %s already on line %d", domain.ErrDuplicateEquipmentInRental, equipment.Code, first+1))
			continue
		}
		seen[equipment.ID] = i

		if input.TransportSupplierID != nil {
			supplier, err := s.companyRepo.FindByID(ctx, tx, *input.TransportSupplierID)
			if err != nil {
				return nil, err
			}
			if supplier == nil {
				rejected.Add(i, inputLineID(input), equipment.ID,
					fmt.Errorf("%w: transport supplier %s", domain.ErrMissingReference, *input.TransportSupplierID))
				continue
			}
		}
		plan = append(plan, plannedLine{index: i, input: input, equipment: equipment})
	}
	if err := rejected.ErrOrNil(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) resolveEquipment(ctx context.Context, tx *gorm.DB, input domain.LineInput) (equipmentdomain.Equipment, error) {
	if input.External != nil {
		equipment, err := s.resolver.ResolveOrCreate(ctx, tx, *input.External)
		if errors.Is(err, equipmentdomain.ErrMissingReference) {
			return equipmentdomain.Equipment{}, fmt.Errorf("%w: %w", domain.ErrMissingReference, err)
		}
		return equipment, err
	}
	equipment, err := s.registry.Load(ctx, tx, input.EquipmentID)
	if errors.Is(err, equipmentdomain.ErrNotFound) {
		return equipmentdomain.Equipment{}, fmt.Errorf("%w: equipment %s", domain.ErrMissingReference, input.EquipmentID)
	}
	return equipment, err
}

// matchExisting pairs plan entries with stored lines: explicitly by line
// id first, then by equipment for inputs that carry no id.
func matchExisting(plan []plannedLine, editable map[snowflake.ID]*domain.RentalLineItem) {
	claimed := make(map[snowflake.ID]struct{}, len(editable))
	for i := range plan {
		if id := plan[i].input.ID; id != nil {
			plan[i].existing = editable[*id]
			claimed[*id] = struct{}{}
		}
	}

	candidates := make([]*domain.RentalLineItem, 0, len(editable))
	for _, line := range editable {
		candidates = append(candidates, line)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	for i := range plan {
		if plan[i].existing != nil {
			continue
		}
		for _, line := range candidates {
			if _, taken := claimed[line.ID]; taken {
				continue
			}
			if line.EquipmentID == plan[i].equipment.ID {
				plan[i].existing = line
				claimed[line.ID] = struct{}{}
				break
			}
		}
	}
}

func validateInput(input domain.LineInput) error {
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", domain.ErrInvalidDateRange)
	}
	if input.EndDate.Before(input.StartDate) {
		return fmt.Errorf("%w: end %s before start %s", domain.ErrInvalidDateRange,
			input.EndDate.Format("2006-01-02"), input.StartDate.Format("2006-01-02"))
	}

	switch {
	case input.External != nil && input.EquipmentID != 0:
		return fmt.Errorf("%w: both fleet equipment and external supply given", domain.ErrMissingReference)
	case input.External != nil:
		if input.External.SupplierID == 0 {
			return domain.ErrMissingSupplierForExternal
		}
		if strings.TrimSpace(input.External.Serial) == "" {
			return fmt.Errorf("%w: external serial is required", domain.ErrMissingReference)
		}
	case input.EquipmentID == 0:
		return fmt.Errorf("%w: equipment is required", domain.ErrMissingReference)
	}

	if input.TransportSupplierID != nil && *input.TransportSupplierID == 0 {
		return fmt.Errorf("%w: transport supplier", domain.ErrMissingReference)
	}
	for _, price := range []struct {
		name  string
		value interface{ IsNegative() bool }
	}{
		{"sell price", input.SellPricePerDay},
		{"cost price", input.CostPricePerDay},
		{"transport sell price", input.TransportSellPrice},
		{"transport cost price", input.TransportCostPrice},
	} {
		if price.value.IsNegative() {
			return fmt.Errorf("%w: %s is negative", domain.ErrInvalidPrice, price.name)
		}
	}
	return nil
}

func normalizeInputs(inputs []domain.LineInput) []domain.LineInput {
	out := make([]domain.LineInput, len(inputs))
	for i, input := range inputs {
		if !input.StartDate.IsZero() {
			input.StartDate = clock.DateOf(input.StartDate)
		}
		if !input.EndDate.IsZero() {
			input.EndDate = clock.DateOf(input.EndDate)
		}
		if input.External != nil {
			ext := *input.External
			ext.Serial = strings.TrimSpace(ext.Serial)
			input.External = &ext
		}
		out[i] = input
	}
	return out
}

func lineLookupError(id snowflake.ID, frozen []domain.RentalLineItem) error {
	for _, line := range frozen {
		if line.ID != id {
			continue
		}
		if line.Status == domain.LineStatusFinalized {
			return domain.ErrAlreadyFinalized
		}
		return domain.ErrInvalidLineState
	}
	return domain.ErrLineNotFound
}

func inputLineID(input domain.LineInput) snowflake.ID {
	if input.ID == nil {
		return 0
	}
	return *input.ID
}

// isLineFailure reports whether err rejects a single line rather than the
// whole operation.
func isLineFailure(err error) bool {
	return errors.Is(err, domain.ErrMissingReference) ||
		errors.Is(err, equipmentdomain.ErrSerialConflict) ||
		errors.Is(err, equipmentdomain.ErrInvalidSerial) ||
		errors.Is(err, equipmentdomain.ErrMissingSupplier)
}

// difference returns the ids of before missing from after, ascending.
func difference(before, after []snowflake.ID) []snowflake.ID {
	keep := make(map[snowflake.ID]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}
	out := make([]snowflake.ID, 0, len(before))
	for _, id := range before {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return uniqueSorted(out)
}
