package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/equipment/domain"
	obsmetrics "github.com/smallbiznis/equiprent/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Equipment, error) {
	if id == 0 {
		return domain.Equipment{}, domain.ErrInvalidID
	}
	equipment, err := s.repo.FindByID(ctx, s.conn(tx), id)
	if err != nil {
		return domain.Equipment{}, err
	}
	if equipment == nil {
		return domain.Equipment{}, domain.ErrNotFound
	}
	return *equipment, nil
}

// Reserve marks equipment as rented for rentalID. Owned equipment must be
// idle unless rentalID already holds it through an active line item, in
// which case the call is a no-op. External equipment can be rented by
// several contracts and only leaves the external status.
func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, id, rentalID snowflake.ID) (domain.Equipment, error) {
	equipment, err := s.Load(ctx, tx, id)
	if err != nil {
		return domain.Equipment{}, err
	}

	switch {
	case equipment.IsExternal() && equipment.Status == domain.StatusRented:
		return equipment, nil
	case equipment.IsExternal() && equipment.Status == domain.StatusExternal:
		return s.swapStatus(ctx, tx, equipment, domain.StatusRented, true)
	case !equipment.IsExternal() && equipment.Status == domain.StatusIdle:
		return s.swapStatus(ctx, tx, equipment, domain.StatusRented, true)
	case !equipment.IsExternal() && equipment.Status == domain.StatusRented:
		held, err := s.repo.CountActiveAllocations(ctx, s.conn(tx), id, &rentalID)
		if err != nil {
			return domain.Equipment{}, err
		}
		if held > 0 {
			return equipment, nil
		}
	}

	s.metrics.RecordReservation(obsmetrics.ResultRejected)
	s.log.Info("reservation rejected",
		zap.String("equipment_id", id.String()),
		zap.String("rental_id", rentalID.String()),
		zap.String("status", string(equipment.Status)),
	)
	return domain.Equipment{}, fmt.Errorf("%w: %s is %s", domain.ErrNotAvailable, equipment.Code, equipment.Status)
}

// Release returns owned equipment to idle. External equipment goes back to
// external once no active line item references it; otherwise it is left
// untouched. Releasing equipment that is not rented is a no-op.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Equipment, error) {
	equipment, err := s.Load(ctx, tx, id)
	if err != nil {
		return domain.Equipment{}, err
	}
	if equipment.Status != domain.StatusRented {
		return equipment, nil
	}

	if !equipment.IsExternal() {
		return s.swapStatus(ctx, tx, equipment, domain.StatusIdle, false)
	}

	active, err := s.repo.CountActiveAllocations(ctx, s.conn(tx), id, nil)
	if err != nil {
		return domain.Equipment{}, err
	}
	if active > 0 {
		return equipment, nil
	}
	return s.swapStatus(ctx, tx, equipment, domain.StatusExternal, false)
}

// Transition applies an explicit state machine edge.
func (s *Service) Transition(ctx context.Context, tx *gorm.DB, id snowflake.ID, to domain.Status) (domain.Equipment, error) {
	if !to.Valid() {
		return domain.Equipment{}, domain.ErrInvalidStatus
	}
	equipment, err := s.Load(ctx, tx, id)
	if err != nil {
		return domain.Equipment{}, err
	}
	if equipment.Status == to {
		return equipment, nil
	}
	if !domain.CanTransition(equipment.IsExternal(), equipment.Status, to) {
		return domain.Equipment{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, equipment.Status, to)
	}
	return s.swapStatus(ctx, tx, equipment, to, to == domain.StatusRented)
}

func (s *Service) swapStatus(ctx context.Context, tx *gorm.DB, equipment domain.Equipment, to domain.Status, reservation bool) (domain.Equipment, error) {
	if !domain.CanTransition(equipment.IsExternal(), equipment.Status, to) {
		return domain.Equipment{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, equipment.Status, to)
	}

	now := s.clock.Now()
	ok, err := s.repo.CompareAndSetStatus(ctx, s.conn(tx), equipment.ID, equipment.Status, equipment.Version, to, now)
	if err != nil {
		if reservation {
			s.metrics.RecordReservation(obsmetrics.ResultError)
		}
		return domain.Equipment{}, err
	}
	if !ok {
		if reservation {
			s.metrics.RecordReservation(obsmetrics.ResultRejected)
		}
		return domain.Equipment{}, fmt.Errorf("%w: %s changed concurrently", domain.ErrNotAvailable, equipment.Code)
	}
	if reservation {
		s.metrics.RecordReservation(obsmetrics.ResultOK)
	}

	s.log.Debug("equipment status changed",
		zap.String("equipment_id", equipment.ID.String()),
		zap.String("from", string(equipment.Status)),
		zap.String("to", string(to)),
	)

	equipment.Status = to
	equipment.Version++
	equipment.UpdatedAt = now
	return equipment, nil
}
