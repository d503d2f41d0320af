package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/company/domain"
	"github.com/smallbiznis/equiprent/pkg/db"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("company.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCompanyRequest) (domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Company{}, domain.ErrInvalidName
	}
	taxNumber := strings.TrimSpace(req.TaxNumber)
	if taxNumber == "" {
		return domain.Company{}, domain.ErrInvalidTaxNumber
	}
	if !req.IsCustomer && !req.IsSupplier {
		return domain.Company{}, domain.ErrInvalidRole
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	now := time.Now().UTC()
	company := domain.Company{
		ID:          s.genID.Generate(),
		Name:        name,
		ContactName: strings.TrimSpace(req.ContactName),
		ContactInfo: strings.TrimSpace(req.ContactInfo),
		Address:     strings.TrimSpace(req.Address),
		TaxOffice:   strings.TrimSpace(req.TaxOffice),
		TaxNumber:   taxNumber,
		IsCustomer:  req.IsCustomer,
		IsSupplier:  req.IsSupplier,
		IsActive:    true,
		Balance:     decimal.Zero,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByTaxNumber(ctx, tx, taxNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateTaxNumber
		}
		if err := s.repo.Insert(ctx, tx, &company); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateTaxNumber
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Company{}, err
	}

	s.log.Info("company created",
		zap.String("company_id", company.ID.String()),
		zap.Bool("customer", company.IsCustomer),
		zap.Bool("supplier", company.IsSupplier),
	)
	return company, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateCompanyRequest) (domain.Company, error) {
	if id == 0 {
		return domain.Company{}, domain.ErrInvalidID
	}

	var updated domain.Company
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			company.Name = name
		}
		if req.TaxNumber != nil {
			taxNumber := strings.TrimSpace(*req.TaxNumber)
			if taxNumber == "" {
				return domain.ErrInvalidTaxNumber
			}
			if taxNumber != company.TaxNumber {
				other, err := s.repo.FindByTaxNumber(ctx, tx, taxNumber)
				if err != nil {
					return err
				}
				if other != nil {
					return domain.ErrDuplicateTaxNumber
				}
			}
			company.TaxNumber = taxNumber
		}
		if req.ContactName != nil {
			company.ContactName = strings.TrimSpace(*req.ContactName)
		}
		if req.ContactInfo != nil {
			company.ContactInfo = strings.TrimSpace(*req.ContactInfo)
		}
		if req.Address != nil {
			company.Address = strings.TrimSpace(*req.Address)
		}
		if req.TaxOffice != nil {
			company.TaxOffice = strings.TrimSpace(*req.TaxOffice)
		}
		if req.IsCustomer != nil {
			company.IsCustomer = *req.IsCustomer
		}
		if req.IsSupplier != nil {
			company.IsSupplier = *req.IsSupplier
		}
		if !company.IsCustomer && !company.IsSupplier {
			return domain.ErrInvalidRole
		}

		company.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, company); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateTaxNumber
			}
			return err
		}
		updated = *company
		return nil
	})
	if err != nil {
		return domain.Company{}, err
	}
	return updated, nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) (domain.Company, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) Activate(ctx context.Context, id snowflake.ID) (domain.Company, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id snowflake.ID, active bool) (domain.Company, error) {
	if id == 0 {
		return domain.Company{}, domain.ErrInvalidID
	}

	var updated domain.Company
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		if company.IsActive == active {
			updated = *company
			return nil
		}
		company.IsActive = active
		company.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, company); err != nil {
			return err
		}
		updated = *company
		return nil
	})
	if err != nil {
		return domain.Company{}, err
	}

	s.log.Info("company activity changed",
		zap.String("company_id", id.String()),
		zap.Bool("active", active),
	)
	return updated, nil
}

// Delete removes a company that has never been referenced by any rental,
// payment, service record, supplied equipment, transport line or shipment.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}

		count, err := s.repo.CountFinancialHistory(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 || !company.Balance.IsZero() {
			return domain.ErrHasFinancialHistory
		}

		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		s.log.Info("company deleted", zap.String("company_id", id.String()))
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Company, error) {
	if id == 0 {
		return domain.Company{}, domain.ErrInvalidID
	}
	company, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Company{}, err
	}
	if company == nil {
		return domain.Company{}, domain.ErrNotFound
	}
	return *company, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCompanyRequest) (domain.ListCompanyResponse, error) {
	pageSize := pagination.ClampPageSize(req.PageSize, 25, 250)

	items, err := s.repo.List(ctx, s.db, domain.ListCompanyFilter{
		Query:        strings.TrimSpace(req.Query),
		CustomerOnly: req.CustomerOnly,
		SupplierOnly: req.SupplierOnly,
		ActiveOnly:   req.ActiveOnly,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListCompanyResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(c *domain.Company) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	companies := make([]domain.Company, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		companies = append(companies, *item)
	}

	resp := domain.ListCompanyResponse{Companies: companies}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
