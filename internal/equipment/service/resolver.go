package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const externalCodePrefix = "EXT-"

// ResolveOrCreate returns the supplier's machine with the given serial,
// refreshing its attributes and reactivating it when it was inactive. A new
// record in status external is registered when none exists. The serial must
// not already belong to the owned fleet or to another supplier.
func (s *Service) ResolveOrCreate(ctx context.Context, tx *gorm.DB, req domain.ExternalSupply) (domain.Equipment, error) {
	if req.SupplierID == 0 {
		return domain.Equipment{}, domain.ErrMissingSupplier
	}
	serial := strings.TrimSpace(req.Serial)
	if serial == "" {
		return domain.Equipment{}, domain.ErrInvalidSerial
	}
	conn := s.conn(tx)

	supplier, err := s.companyRepo.FindByID(ctx, conn, req.SupplierID)
	if err != nil {
		return domain.Equipment{}, err
	}
	if supplier == nil || !supplier.IsSupplier {
		return domain.Equipment{}, fmt.Errorf("%w: supplier %s", domain.ErrMissingReference, req.SupplierID)
	}

	matches, err := s.repo.FindBySerial(ctx, conn, serial)
	if err != nil {
		return domain.Equipment{}, err
	}
	var existing *domain.Equipment
	for _, m := range matches {
		if !m.IsExternal() || *m.OwningSupplierID != req.SupplierID {
			return domain.Equipment{}, fmt.Errorf("%w: serial %s is registered elsewhere", domain.ErrSerialConflict, serial)
		}
		existing = m
	}

	if existing != nil {
		return s.refreshExternal(ctx, conn, *existing, req.Attributes)
	}

	code, err := s.externalCode(ctx, conn, serial, req)
	if err != nil {
		return domain.Equipment{}, err
	}

	now := s.clock.Now()
	supplierID := req.SupplierID
	equipment := domain.Equipment{
		ID:               s.genID.Generate(),
		Code:             code,
		SerialNumber:     serial,
		OwningSupplierID: &supplierID,
		Brand:            "External",
		Status:           domain.StatusExternal,
		Currency:         "TRY",
		EntryCost:        decimal.Zero,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applyAttributes(&equipment, req.Attributes)

	if err := s.repo.Insert(ctx, conn, &equipment); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Equipment{}, fmt.Errorf("%w: serial %s", domain.ErrSerialConflict, serial)
		}
		return domain.Equipment{}, err
	}

	s.log.Info("external equipment registered",
		zap.String("equipment_id", equipment.ID.String()),
		zap.String("supplier_id", supplierID.String()),
		zap.String("code", code),
	)
	return equipment, nil
}

func (s *Service) refreshExternal(ctx context.Context, conn *gorm.DB, equipment domain.Equipment, attrs domain.Attributes) (domain.Equipment, error) {
	applyAttributes(&equipment, attrs)
	equipment.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateAttributes(ctx, conn, &equipment); err != nil {
		return domain.Equipment{}, err
	}
	if equipment.Status != domain.StatusInactive {
		return equipment, nil
	}

	reactivated, err := s.swapStatus(ctx, conn, equipment, domain.StatusExternal, false)
	if err != nil {
		return domain.Equipment{}, err
	}
	s.log.Info("external equipment reactivated", zap.String("equipment_id", equipment.ID.String()))
	return reactivated, nil
}

// externalCode derives EXT-<SERIAL>; on a clash with an unrelated code the
// supplier id suffix keeps it unique.
func (s *Service) externalCode(ctx context.Context, conn *gorm.DB, serial string, req domain.ExternalSupply) (string, error) {
	base := externalCodePrefix + strings.ToUpper(slug.Make(serial))
	if base == externalCodePrefix {
		base = externalCodePrefix + req.SupplierID.String()
	}
	existing, err := s.repo.FindByCode(ctx, conn, base)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return base, nil
	}
	return fmt.Sprintf("%s-%s", base, req.SupplierID.String()), nil
}
