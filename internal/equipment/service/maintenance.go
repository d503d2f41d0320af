package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/clock"
	"github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/pkg/db/option"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errNoOpenMaintenance = errors.New("no_open_maintenance")

// StartService takes idle owned equipment out of the rentable pool and opens
// a maintenance record.
func (s *Service) StartService(ctx context.Context, id snowflake.ID, req domain.StartServiceRequest) (domain.MaintenanceRecord, error) {
	var record domain.MaintenanceRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.Load(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusInService {
			return fmt.Errorf("%w: already in service", domain.ErrInvalidTransition)
		}
		if _, err := s.Transition(ctx, tx, id, domain.StatusInService); err != nil {
			return err
		}

		now := s.clock.Now()
		serviceDate := req.ServiceDate
		if serviceDate.IsZero() {
			serviceDate = now
		}
		record = domain.MaintenanceRecord{
			ID:           s.genID.Generate(),
			EquipmentID:  id,
			ServiceDate:  clock.DateOf(serviceDate),
			Description:  strings.TrimSpace(req.Description),
			WorkingHours: req.WorkingHours,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.maintenance.WithTrx(tx).Create(ctx, &record)
	})
	if err != nil {
		return domain.MaintenanceRecord{}, err
	}

	s.log.Info("equipment sent to service",
		zap.String("equipment_id", id.String()),
		zap.String("maintenance_id", record.ID.String()),
	)
	return record, nil
}

// CompleteService closes the open maintenance record and returns the
// equipment to idle.
func (s *Service) CompleteService(ctx context.Context, id snowflake.ID) (domain.Equipment, error) {
	var out domain.Equipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.Load(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusInService {
			return fmt.Errorf("%w: %s is not in service", domain.ErrInvalidTransition, current.Code)
		}
		equipment, err := s.Transition(ctx, tx, id, domain.StatusIdle)
		if err != nil {
			return err
		}

		records, err := s.maintenance.WithTrx(tx).Find(ctx, &domain.MaintenanceRecord{EquipmentID: id},
			option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB { return db.Where("completed_at IS NULL") }),
			option.WithOrder("id desc"),
		)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			s.log.Warn("service completed without open record", zap.String("equipment_id", id.String()), zap.Error(errNoOpenMaintenance))
		}
		now := s.clock.Now()
		for _, r := range records {
			if err := s.maintenance.WithTrx(tx).Update(ctx, r.ID, map[string]any{
				"completed_at": now,
				"updated_at":   now,
			}); err != nil {
				return err
			}
		}
		out = equipment
		return nil
	})
	if err != nil {
		return domain.Equipment{}, err
	}
	return out, nil
}

func (s *Service) ListMaintenance(ctx context.Context, id snowflake.ID) ([]domain.MaintenanceRecord, error) {
	if _, err := s.Load(ctx, nil, id); err != nil {
		return nil, err
	}
	records, err := s.maintenance.Find(ctx, &domain.MaintenanceRecord{EquipmentID: id}, option.WithOrder("service_date desc, id desc"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.MaintenanceRecord, 0, len(records))
	for _, r := range records {
		out = append(out, *r)
	}
	return out, nil
}
