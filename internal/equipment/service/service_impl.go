package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/clock"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	"github.com/smallbiznis/equiprent/internal/equipment/domain"
	obsmetrics "github.com/smallbiznis/equiprent/internal/observability/metrics"
	"github.com/smallbiznis/equiprent/pkg/db"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"github.com/smallbiznis/equiprent/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	CompanyRepo companydomain.Repository
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	companyRepo companydomain.Repository
	maintenance repository.Repository[domain.MaintenanceRecord]
	metrics     *obsmetrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("equipment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		companyRepo: p.CompanyRepo,
		maintenance: repository.ProvideStore[domain.MaintenanceRecord](p.DB),
		metrics:     p.Metrics,
	}
}

// conn returns tx when the caller supplied one, otherwise the root handle.
func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *Service) Create(ctx context.Context, req domain.CreateEquipmentRequest) (domain.Equipment, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.Equipment{}, domain.ErrInvalidCode
	}
	serial := strings.TrimSpace(req.SerialNumber)
	if serial == "" {
		return domain.Equipment{}, domain.ErrInvalidSerial
	}

	now := s.clock.Now()
	equipment := domain.Equipment{
		ID:             s.genID.Generate(),
		Code:           code,
		SerialNumber:   serial,
		Brand:          strings.TrimSpace(req.Brand),
		Model:          strings.TrimSpace(req.Model),
		Type:           strings.TrimSpace(req.Type),
		Fuel:           strings.TrimSpace(req.Fuel),
		WorkingHeight:  req.WorkingHeight,
		LiftCapacity:   req.LiftCapacity,
		ProductionYear: req.ProductionYear,
		Status:         domain.StatusIdle,
		Currency:       normalizeCurrency(req.Currency),
		EntryCost:      req.EntryCost,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureCodeFree(ctx, tx, code, 0); err != nil {
			return err
		}
		if err := s.ensureOwnedSerialFree(ctx, tx, serial, 0); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &equipment); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCode
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Equipment{}, err
	}

	s.log.Info("equipment registered",
		zap.String("equipment_id", equipment.ID.String()),
		zap.String("code", equipment.Code),
	)
	return equipment, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateEquipmentRequest) (domain.Equipment, error) {
	if id == 0 {
		return domain.Equipment{}, domain.ErrInvalidID
	}

	var updated domain.Equipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		equipment, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if equipment == nil {
			return domain.ErrNotFound
		}

		if req.Code != nil {
			code := strings.TrimSpace(*req.Code)
			if code == "" {
				return domain.ErrInvalidCode
			}
			if err := s.ensureCodeFree(ctx, tx, code, id); err != nil {
				return err
			}
			equipment.Code = code
		}
		if req.SerialNumber != nil {
			serial := strings.TrimSpace(*req.SerialNumber)
			if serial == "" {
				return domain.ErrInvalidSerial
			}
			if serial != equipment.SerialNumber {
				if equipment.IsExternal() {
					return domain.ErrExternalSerialImmutable
				}
				if err := s.ensureOwnedSerialFree(ctx, tx, serial, id); err != nil {
					return err
				}
				equipment.SerialNumber = serial
			}
		}
		if req.Attributes != nil {
			applyAttributes(equipment, *req.Attributes)
		}
		if req.Currency != nil {
			equipment.Currency = normalizeCurrency(*req.Currency)
		}
		if req.EntryCost != nil {
			equipment.EntryCost = *req.EntryCost
		}

		equipment.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateAttributes(ctx, tx, equipment); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCode
			}
			return err
		}
		updated = *equipment
		return nil
	})
	if err != nil {
		return domain.Equipment{}, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Equipment, error) {
	return s.Load(ctx, nil, id)
}

func (s *Service) List(ctx context.Context, req domain.ListEquipmentRequest) (domain.ListEquipmentResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListEquipmentResponse{}, domain.ErrInvalidStatus
	}
	pageSize := pagination.ClampPageSize(req.PageSize, 25, 250)

	items, err := s.repo.List(ctx, s.db, domain.ListEquipmentFilter{
		Query:  strings.TrimSpace(req.Query),
		Status: req.Status,
		Scope:  req.Scope,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListEquipmentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(e *domain.Equipment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	resp := domain.ListEquipmentResponse{Equipment: make([]domain.Equipment, 0, len(items))}
	for _, item := range items {
		resp.Equipment = append(resp.Equipment, *item)
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// ListAvailable returns idle owned equipment for line-item pickers.
// includeID keeps an already selected machine in the list while editing.
func (s *Service) ListAvailable(ctx context.Context, includeID snowflake.ID) ([]domain.Equipment, error) {
	items, err := s.repo.ListAvailable(ctx, s.db, includeID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Equipment, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) (domain.Equipment, error) {
	var out domain.Equipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.Transition(ctx, tx, id, domain.StatusInactive)
		return err
	})
	return out, err
}

func (s *Service) Restore(ctx context.Context, id snowflake.ID) (domain.Equipment, error) {
	var out domain.Equipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		equipment, err := s.Load(ctx, tx, id)
		if err != nil {
			return err
		}
		target := domain.StatusIdle
		if equipment.IsExternal() {
			target = domain.StatusExternal
		}
		out, err = s.Transition(ctx, tx, id, target)
		return err
	})
	return out, err
}

// Delete removes equipment that no line item has ever referenced.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.Load(ctx, tx, id); err != nil {
			return err
		}
		count, err := s.repo.CountLineItems(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrInUse
		}
		return s.repo.Delete(ctx, tx, id)
	})
}

func (s *Service) ensureCodeFree(ctx context.Context, tx *gorm.DB, code string, self snowflake.ID) error {
	existing, err := s.repo.FindByCode(ctx, tx, code)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return domain.ErrDuplicateCode
	}
	return nil
}

func (s *Service) ensureOwnedSerialFree(ctx context.Context, tx *gorm.DB, serial string, self snowflake.ID) error {
	matches, err := s.repo.FindBySerial(ctx, tx, serial)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m.ID != self && !m.IsExternal() {
			return domain.ErrSerialConflict
		}
	}
	return nil
}

func applyAttributes(e *domain.Equipment, attrs domain.Attributes) {
	if v := strings.TrimSpace(attrs.Brand); v != "" {
		e.Brand = v
	}
	if v := strings.TrimSpace(attrs.Model); v != "" {
		e.Model = v
	}
	if v := strings.TrimSpace(attrs.Type); v != "" {
		e.Type = v
	}
	if v := strings.TrimSpace(attrs.Fuel); v != "" {
		e.Fuel = v
	}
	if attrs.WorkingHeight > 0 {
		e.WorkingHeight = attrs.WorkingHeight
	}
	if attrs.LiftCapacity > 0 {
		e.LiftCapacity = attrs.LiftCapacity
	}
	if attrs.ProductionYear > 0 {
		e.ProductionYear = attrs.ProductionYear
	}
}

func normalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return "TRY"
	}
	return c
}
