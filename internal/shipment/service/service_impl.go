package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/clock"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/internal/shipment/domain"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultVATRate = 20

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Reconciler ledgerdomain.Reconciler
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	reconciler ledgerdomain.Reconciler
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("shipment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		reconciler: p.Reconciler,
	}
}

func (s *Service) Create(ctx context.Context, req domain.ShipmentRequest) (domain.Shipment, error) {
	now := s.clock.Now()
	shipment := domain.Shipment{
		ID:        s.genID.Generate(),
		IsActive:  true,
		CreatedAt: now,
	}
	if err := apply(&shipment, req, now); err != nil {
		return domain.Shipment{}, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &shipment); err != nil {
			return err
		}
		return s.post(ctx, tx, &shipment)
	})
	if err != nil {
		return domain.Shipment{}, err
	}

	s.log.Info("shipment created",
		zap.String("shipment_id", shipment.ID.String()),
		zap.String("company_id", shipment.CompanyID.String()),
		zap.String("gross", shipment.GrossAmount.StringFixed(2)),
	)
	return shipment, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.ShipmentRequest) (domain.Shipment, error) {
	if id == 0 {
		return domain.Shipment{}, domain.ErrInvalidID
	}
	var updated domain.Shipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipment, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if shipment == nil {
			return domain.ErrNotFound
		}
		if err := apply(shipment, req, s.clock.Now()); err != nil {
			return err
		}
		if shipment.IsActive {
			if err := s.post(ctx, tx, shipment); err != nil {
				return err
			}
		}
		if err := s.repo.Update(ctx, tx, shipment); err != nil {
			return err
		}
		updated = *shipment
		return nil
	})
	if err != nil {
		return domain.Shipment{}, err
	}
	return updated, nil
}

// Delete removes the shipment together with its service record.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipment, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if shipment == nil {
			return domain.ErrNotFound
		}
		if err := s.reconciler.RemoveShipment(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (domain.Shipment, error) {
	if id == 0 {
		return domain.Shipment{}, domain.ErrInvalidID
	}
	var updated domain.Shipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipment, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if shipment == nil {
			return domain.ErrNotFound
		}
		if shipment.IsActive == active {
			updated = *shipment
			return nil
		}

		shipment.IsActive = active
		shipment.UpdatedAt = s.clock.Now()
		if active {
			if err := s.post(ctx, tx, shipment); err != nil {
				return err
			}
		} else {
			if err := s.reconciler.RemoveShipment(ctx, tx, id); err != nil {
				return err
			}
			shipment.ServiceRecordID = nil
		}
		if err := s.repo.Update(ctx, tx, shipment); err != nil {
			return err
		}
		updated = *shipment
		return nil
	})
	if err != nil {
		return domain.Shipment{}, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Shipment, error) {
	if id == 0 {
		return domain.Shipment{}, domain.ErrInvalidID
	}
	shipment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Shipment{}, err
	}
	if shipment == nil {
		return domain.Shipment{}, domain.ErrNotFound
	}
	return *shipment, nil
}

func (s *Service) List(ctx context.Context, req domain.ListShipmentRequest) (domain.ListShipmentResponse, error) {
	pageSize := pagination.ClampPageSize(req.PageSize, 25, 250)
	items, err := s.repo.List(ctx, s.db, domain.ListShipmentFilter{
		CompanyID:  req.CompanyID,
		ActiveOnly: req.ActiveOnly,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListShipmentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(sh *domain.Shipment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        sh.ID.String(),
			CreatedAt: sh.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	shipments := make([]domain.Shipment, 0, len(items))
	for _, item := range items {
		shipments = append(shipments, *item)
	}
	resp := domain.ListShipmentResponse{Shipments: shipments}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) post(ctx context.Context, tx *gorm.DB, shipment *domain.Shipment) error {
	description := shipment.Route
	if shipment.Plate != "" {
		description = strings.TrimSpace(description + " " + shipment.Plate)
	}
	if shipment.Description != "" {
		description = strings.TrimSpace(description + " " + shipment.Description)
	}
	recordID, err := s.reconciler.SyncShipment(ctx, tx, ledgerdomain.ShipmentPosting{
		ShipmentID:  shipment.ID,
		CompanyID:   shipment.CompanyID,
		Date:        shipment.Date,
		Amount:      shipment.GrossAmount,
		Direction:   shipment.Direction,
		ReferenceNo: domain.ReferenceNo(shipment.Date),
		Description: description,
	})
	if err != nil {
		return err
	}
	if shipment.ServiceRecordID == nil || *shipment.ServiceRecordID != recordID {
		shipment.ServiceRecordID = &recordID
		return s.repo.Update(ctx, tx, shipment)
	}
	return nil
}

// apply validates req and copies it onto shipment, deriving the gross
// amount.
func apply(shipment *domain.Shipment, req domain.ShipmentRequest, now time.Time) error {
	if req.CompanyID == 0 {
		return domain.ErrInvalidCompany
	}
	if req.Date.IsZero() {
		return domain.ErrInvalidDate
	}
	if !req.NetAmount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	rate := defaultVATRate
	if req.VATRate != nil {
		rate = *req.VATRate
	}
	if rate < 0 || rate > 100 {
		return domain.ErrInvalidVATRate
	}
	direction := req.Direction
	if direction == "" {
		direction = ledgerdomain.RecordDirectionOutgoing
	}
	if direction != ledgerdomain.RecordDirectionOutgoing && direction != ledgerdomain.RecordDirectionIncoming {
		return domain.ErrInvalidDirection
	}

	shipment.CompanyID = req.CompanyID
	shipment.Date = clock.DateOf(req.Date)
	shipment.Route = strings.TrimSpace(req.Route)
	shipment.Plate = strings.ToUpper(strings.TrimSpace(req.Plate))
	shipment.Description = strings.TrimSpace(req.Description)
	shipment.NetAmount = req.NetAmount.Round(2)
	shipment.VATRate = rate
	shipment.GrossAmount = domain.Gross(shipment.NetAmount, rate)
	shipment.Direction = direction
	shipment.UpdatedAt = now
	return nil
}
