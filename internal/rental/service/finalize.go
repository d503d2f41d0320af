package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/clock"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/internal/rental/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FinalizeLine ends an active line on end and returns its equipment. The
// receivable keeps the billed end date unless the policy recomputes it.
func (s *Service) FinalizeLine(ctx context.Context, lineID snowflake.ID, end time.Time) (domain.RentalLineItem, error) {
	if lineID == 0 {
		return domain.RentalLineItem{}, domain.ErrInvalidID
	}
	var finalized domain.RentalLineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := s.finalize(ctx, tx, lineID, end)
		if err != nil {
			return err
		}
		finalized = line
		return nil
	})
	s.recordCommit("finalize", err)
	if err != nil {
		return domain.RentalLineItem{}, err
	}
	return finalized, nil
}

// FinalizeActiveByEquipment ends the most recent active line holding the
// equipment.
func (s *Service) FinalizeActiveByEquipment(ctx context.Context, equipmentID snowflake.ID, end time.Time) (domain.RentalLineItem, error) {
	if equipmentID == 0 {
		return domain.RentalLineItem{}, domain.ErrInvalidID
	}
	var finalized domain.RentalLineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := s.repo.FindLatestActiveLine(ctx, tx, equipmentID)
		if err != nil {
			return err
		}
		if line == nil {
			return domain.ErrLineNotFound
		}
		finalized, err = s.finalize(ctx, tx, line.ID, end)
		return err
	})
	s.recordCommit("finalize", err)
	if err != nil {
		return domain.RentalLineItem{}, err
	}
	return finalized, nil
}

func (s *Service) finalize(ctx context.Context, tx *gorm.DB, lineID snowflake.ID, end time.Time) (domain.RentalLineItem, error) {
	rental, line, err := s.lockLine(ctx, tx, lineID)
	if err != nil {
		return domain.RentalLineItem{}, err
	}
	switch line.Status {
	case domain.LineStatusActive:
	case domain.LineStatusFinalized:
		return domain.RentalLineItem{}, domain.ErrAlreadyFinalized
	default:
		return domain.RentalLineItem{}, fmt.Errorf("%w: %s", domain.ErrInvalidLineState, line.Status)
	}
	end, err = endOnOrAfterStart(line, end)
	if err != nil {
		return domain.RentalLineItem{}, err
	}

	now := s.clock.Now()
	line.EndDate = end
	if s.policy.RentalPolicy().RecomputeOnFinalize {
		line.BilledEndDate = end
	}
	line.Status = domain.LineStatusFinalized
	line.FinalizedAt = &now
	line.UpdatedAt = now
	if err := s.repo.UpdateLine(ctx, tx, line); err != nil {
		return domain.RentalLineItem{}, err
	}
	if _, err := s.registry.Release(ctx, tx, line.EquipmentID); err != nil {
		return domain.RentalLineItem{}, err
	}
	if err := s.resync(ctx, tx, *rental); err != nil {
		return domain.RentalLineItem{}, err
	}

	s.log.Info("rental line finalized",
		zap.String("rental_id", rental.ID.String()),
		zap.String("line_id", line.ID.String()),
		zap.Time("end_date", end),
	)
	return *line, nil
}

// CorrectFinalizedEndDate moves the end date of a finalized line.
func (s *Service) CorrectFinalizedEndDate(ctx context.Context, lineID snowflake.ID, end time.Time) (domain.RentalLineItem, error) {
	if lineID == 0 {
		return domain.RentalLineItem{}, domain.ErrInvalidID
	}
	var corrected domain.RentalLineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rental, line, err := s.lockLine(ctx, tx, lineID)
		if err != nil {
			return err
		}
		if line.Status != domain.LineStatusFinalized {
			return domain.ErrNotFinalized
		}
		end, err := endOnOrAfterStart(line, end)
		if err != nil {
			return err
		}

		line.EndDate = end
		if s.policy.RentalPolicy().RecomputeOnFinalize {
			line.BilledEndDate = end
		}
		line.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateLine(ctx, tx, line); err != nil {
			return err
		}
		corrected = *line
		return s.resync(ctx, tx, *rental)
	})
	if err != nil {
		return domain.RentalLineItem{}, err
	}
	return corrected, nil
}

// UndoFinalize reopens a finalized line. Owned equipment must still be
// idle and is reserved again; external equipment is left as it is.
func (s *Service) UndoFinalize(ctx context.Context, lineID snowflake.ID) (domain.RentalLineItem, error) {
	if lineID == 0 {
		return domain.RentalLineItem{}, domain.ErrInvalidID
	}
	var reopened domain.RentalLineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rental, line, err := s.lockLine(ctx, tx, lineID)
		if err != nil {
			return err
		}
		if line.Status != domain.LineStatusFinalized {
			return domain.ErrNotFinalized
		}

		equipment, err := s.registry.Load(ctx, tx, line.EquipmentID)
		if err != nil {
			return err
		}
		if !equipment.IsExternal() {
			if equipment.Status != equipmentdomain.StatusIdle {
				return fmt.Errorf("%w: %s is %s", domain.ErrEquipmentNotAvailable, equipment.Code, equipment.Status)
			}
			if _, err := s.registry.Reserve(ctx, tx, equipment.ID, rental.ID); err != nil {
				return fmt.Errorf("%w: %w", domain.ErrEquipmentNotAvailable, err)
			}
		}

		line.Status = domain.LineStatusActive
		line.EndDate = line.BilledEndDate
		line.FinalizedAt = nil
		line.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateLine(ctx, tx, line); err != nil {
			return err
		}
		reopened = *line
		return s.resync(ctx, tx, *rental)
	})
	s.recordCommit("undo_finalize", err)
	if err != nil {
		return domain.RentalLineItem{}, err
	}
	return reopened, nil
}

// CancelLine withdraws an active line; it stops counting towards the
// receivable and its equipment is released.
func (s *Service) CancelLine(ctx context.Context, lineID snowflake.ID) (domain.RentalLineItem, error) {
	if lineID == 0 {
		return domain.RentalLineItem{}, domain.ErrInvalidID
	}
	var cancelled domain.RentalLineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rental, line, err := s.lockLine(ctx, tx, lineID)
		if err != nil {
			return err
		}
		switch line.Status {
		case domain.LineStatusActive, domain.LineStatusDraft:
		case domain.LineStatusFinalized:
			return domain.ErrAlreadyFinalized
		default:
			return fmt.Errorf("%w: %s", domain.ErrInvalidLineState, line.Status)
		}

		wasActive := line.Status == domain.LineStatusActive
		line.Status = domain.LineStatusCancelled
		line.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateLine(ctx, tx, line); err != nil {
			return err
		}
		if wasActive {
			if _, err := s.registry.Release(ctx, tx, line.EquipmentID); err != nil {
				return err
			}
		}
		cancelled = *line
		return s.resync(ctx, tx, *rental)
	})
	s.recordCommit("cancel", err)
	if err != nil {
		return domain.RentalLineItem{}, err
	}
	return cancelled, nil
}

// lockLine locks the owning rental before the line so line operations
// take locks in the same order as rental edits.
func (s *Service) lockLine(ctx context.Context, tx *gorm.DB, lineID snowflake.ID) (*domain.Rental, *domain.RentalLineItem, error) {
	peek, err := s.repo.FindLine(ctx, tx, lineID)
	if err != nil {
		return nil, nil, err
	}
	if peek == nil {
		return nil, nil, domain.ErrLineNotFound
	}
	rental, err := s.repo.FindByIDForUpdate(ctx, tx, peek.RentalID)
	if err != nil {
		return nil, nil, err
	}
	if rental == nil {
		return nil, nil, domain.ErrNotFound
	}
	line, err := s.repo.FindLineForUpdate(ctx, tx, lineID)
	if err != nil {
		return nil, nil, err
	}
	if line == nil {
		return nil, nil, domain.ErrLineNotFound
	}
	return rental, line, nil
}

func endOnOrAfterStart(line *domain.RentalLineItem, end time.Time) (time.Time, error) {
	if end.IsZero() {
		return time.Time{}, fmt.Errorf("%w: end date is required", domain.ErrInvalidDateRange)
	}
	end = clock.DateOf(end)
	if end.Before(clock.DateOf(line.StartDate)) {
		return time.Time{}, fmt.Errorf("%w: end %s before start %s", domain.ErrInvalidDateRange,
			end.Format("2006-01-02"), line.StartDate.Format("2006-01-02"))
	}
	return end, nil
}
