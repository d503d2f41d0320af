package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/clock"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	"github.com/smallbiznis/equiprent/internal/config"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
	"github.com/smallbiznis/equiprent/internal/exchangerate"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/equiprent/internal/observability/metrics"
	"github.com/smallbiznis/equiprent/internal/rental/domain"
	"github.com/smallbiznis/equiprent/pkg/db"
	"github.com/smallbiznis/equiprent/pkg/db/pagination"
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
	Registry    equipmentdomain.Registry
	Resolver    equipmentdomain.Resolver
	CompanyRepo companydomain.Repository
	Reconciler  ledgerdomain.Reconciler
	Policy      config.RentalPolicySource
	Rates       exchangerate.Provider `optional:"true"`
	Metrics     *obsmetrics.Metrics   `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	registry    equipmentdomain.Registry
	resolver    equipmentdomain.Resolver
	companyRepo companydomain.Repository
	reconciler  ledgerdomain.Reconciler
	policy      config.RentalPolicySource
	rates       exchangerate.Provider
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	policy := p.Policy
	if policy == nil {
		policy = config.StaticRentalPolicy(config.DefaultRentalPolicy())
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("rental.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		registry:    p.Registry,
		resolver:    p.Resolver,
		companyRepo: p.CompanyRepo,
		reconciler:  p.Reconciler,
		policy:      policy,
		rates:       p.Rates,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRentalRequest) (domain.Rental, error) {
	if req.CustomerID == 0 {
		return domain.Rental{}, domain.ErrInvalidCustomer
	}
	if len(req.Lines) == 0 {
		return domain.Rental{}, domain.ErrNoLineItems
	}
	policy := s.policy.RentalPolicy()
	vat, err := vatRate(req.VATRate, policy.DefaultVATRate)
	if err != nil {
		return domain.Rental{}, err
	}

	// Rates come from the network; fetch them before any row is locked.
	rates := s.latestRates(ctx)

	now := s.clock.Now()
	rental := domain.Rental{
		ID:         s.genID.Generate(),
		CustomerID: req.CustomerID,
		VATRate:    vat,
		USDRate:    rates.USD,
		EURRate:    rates.EUR,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	requested := strings.TrimSpace(req.FormNumber)
	for attempt := 1; ; attempt++ {
		err = s.createTx(ctx, &rental, req, requested, policy.FormPrefix)
		if requested != "" || attempt >= maxFormNumberAttempts || !errors.Is(err, domain.ErrDuplicateFormNumber) {
			break
		}
		s.log.Debug("generated form number taken, retrying",
			zap.String("form_number", rental.FormNumber),
			zap.Int("attempt", attempt),
		)
	}
	s.recordCommit("create", err)
	if err != nil {
		return domain.Rental{}, err
	}

	s.log.Info("rental created",
		zap.String("rental_id", rental.ID.String()),
		zap.String("form_number", rental.FormNumber),
		zap.String("customer_id", rental.CustomerID.String()),
		zap.Int("lines", len(rental.Lines)),
	)
	return rental, nil
}

// createTx inserts the rental and allocates its lines. A generated form
// number is computed inside the transaction, so a concurrent create can
// take it first; the insert then fails with ErrDuplicateFormNumber.
func (s *Service) createTx(ctx context.Context, rental *domain.Rental, req domain.CreateRentalRequest, formNumber, prefix string) error {
	rental.FormNumber = ""
	rental.Lines = nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureCustomer(ctx, tx, req.CustomerID); err != nil {
			return err
		}

		if formNumber == "" {
			next, err := s.nextFormNumber(ctx, tx, prefix)
			if err != nil {
				return err
			}
			formNumber = next
		} else if err := s.ensureFormNumberFree(ctx, tx, formNumber); err != nil {
			return err
		}
		rental.FormNumber = formNumber

		if err := s.repo.Insert(ctx, tx, rental); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateFormNumber
			}
			return err
		}

		lines, err := s.allocate(ctx, tx, *rental, nil, req.Lines)
		if err != nil {
			return err
		}
		rental.Lines = lines
		return s.sync(ctx, tx, *rental, lines)
	})
}

// Update rewrites the header and the editable lines of a rental in one
// transaction. Equipment that stays on the rental is re-affirmed rather
// than released and reserved again.
func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRentalRequest) (domain.Rental, error) {
	if id == 0 {
		return domain.Rental{}, domain.ErrInvalidID
	}

	var updated domain.Rental
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rental, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if rental == nil {
			return domain.ErrNotFound
		}

		if req.CustomerID != 0 && req.CustomerID != rental.CustomerID {
			if err := s.ensureCustomer(ctx, tx, req.CustomerID); err != nil {
				return err
			}
			rental.CustomerID = req.CustomerID
		}
		if formNumber := strings.TrimSpace(req.FormNumber); formNumber != "" && formNumber != rental.FormNumber {
			if err := s.ensureFormNumberFree(ctx, tx, formNumber); err != nil {
				return err
			}
			rental.FormNumber = formNumber
		}
		if req.VATRate != nil {
			vat, err := vatRate(req.VATRate, rental.VATRate)
			if err != nil {
				return err
			}
			rental.VATRate = vat
		}
		rental.Notes = strings.TrimSpace(req.Notes)
		rental.UpdatedAt = s.clock.Now()

		current, err := s.repo.ListLinesForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(req.Lines) == 0 && !hasFrozenLine(current) {
			return domain.ErrNoLineItems
		}

		lines, err := s.allocate(ctx, tx, *rental, current, req.Lines)
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, rental); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateFormNumber
			}
			return err
		}
		rental.Lines = lines
		updated = *rental
		return s.sync(ctx, tx, updated, lines)
	})
	s.recordCommit("update", err)
	if err != nil {
		return domain.Rental{}, err
	}

	s.log.Info("rental updated",
		zap.String("rental_id", updated.ID.String()),
		zap.Int("lines", len(updated.Lines)),
	)
	return updated, nil
}

// Delete removes the rental, its lines and every ledger record derived
// from it. Equipment held by active lines is released.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rental, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if rental == nil {
			return domain.ErrNotFound
		}
		lines, err := s.repo.ListLinesForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		held := make([]snowflake.ID, 0, len(lines))
		for _, line := range lines {
			if line.Status == domain.LineStatusActive {
				held = append(held, line.EquipmentID)
			}
		}

		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		for _, equipmentID := range uniqueSorted(held) {
			if _, err := s.registry.Release(ctx, tx, equipmentID); err != nil {
				return err
			}
		}
		return s.reconciler.RemoveRental(ctx, tx, id)
	})
	s.recordCommit("delete", err)
	if err != nil {
		return err
	}
	s.log.Info("rental deleted", zap.String("rental_id", id.String()))
	return nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.RentalView, error) {
	if id == 0 {
		return domain.RentalView{}, domain.ErrInvalidID
	}
	rental, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.RentalView{}, err
	}
	if rental == nil {
		return domain.RentalView{}, domain.ErrNotFound
	}
	lines, err := s.repo.ListLines(ctx, s.db, id)
	if err != nil {
		return domain.RentalView{}, err
	}
	return s.view(ctx, *rental, lines, map[snowflake.ID]string{}, map[snowflake.ID]string{})
}

func (s *Service) List(ctx context.Context, req domain.ListRentalRequest) (domain.ListRentalResponse, error) {
	pageSize := pagination.ClampPageSize(req.PageSize, 25, 250)

	items, err := s.repo.List(ctx, s.db, domain.ListRentalFilter{
		Query:      strings.TrimSpace(req.Query),
		CustomerID: req.CustomerID,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListRentalResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(r *domain.Rental) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        r.ID.String(),
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	lines, err := s.repo.ListLinesByRentals(ctx, s.db, ids)
	if err != nil {
		return domain.ListRentalResponse{}, err
	}
	byRental := make(map[snowflake.ID][]*domain.RentalLineItem, len(items))
	for _, line := range lines {
		byRental[line.RentalID] = append(byRental[line.RentalID], line)
	}

	customers := map[snowflake.ID]string{}
	labels := map[snowflake.ID]string{}
	rentals := make([]domain.RentalView, 0, len(items))
	for _, item := range items {
		view, err := s.view(ctx, *item, byRental[item.ID], customers, labels)
		if err != nil {
			return domain.ListRentalResponse{}, err
		}
		rentals = append(rentals, view)
	}

	resp := domain.ListRentalResponse{Rentals: rentals}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) view(ctx context.Context, rental domain.Rental, lines []*domain.RentalLineItem, customers, labels map[snowflake.ID]string) (domain.RentalView, error) {
	name, ok := customers[rental.CustomerID]
	if !ok {
		customer, err := s.companyRepo.FindByID(ctx, s.db, rental.CustomerID)
		if err != nil {
			return domain.RentalView{}, err
		}
		if customer != nil {
			name = customer.Name
		}
		customers[rental.CustomerID] = name
	}

	today := clock.Today(s.clock)
	soon := s.policy.RentalPolicy().DueSoonDays
	view := domain.RentalView{
		Rental:       rental,
		CustomerName: name,
		Total:        decimal.Zero,
		Items:        make([]domain.LineView, 0, len(lines)),
	}
	for _, line := range lines {
		label, ok := labels[line.EquipmentID]
		if !ok {
			equipment, err := s.registry.Load(ctx, s.db, line.EquipmentID)
			switch {
			case err == nil:
				label = equipment.Label()
			case errors.Is(err, equipmentdomain.ErrNotFound):
				label = line.EquipmentID.String()
			default:
				return domain.RentalView{}, err
			}
			labels[line.EquipmentID] = label
		}

		item := domain.LineView{
			RentalLineItem: *line,
			Equipment:      label,
			Total:          line.Total(),
			Due:            domain.DueStatusOf(*line, today, soon),
		}
		if line.Billable() {
			view.Total = view.Total.Add(item.Total)
		}
		view.Items = append(view.Items, item)
		view.Lines = append(view.Lines, *line)
	}
	return view, nil
}

func (s *Service) ensureCustomer(ctx context.Context, tx *gorm.DB, customerID snowflake.ID) error {
	customer, err := s.companyRepo.FindByID(ctx, tx, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return domain.ErrMissingReference
	}
	if !customer.IsCustomer {
		return domain.ErrInvalidCustomer
	}
	return nil
}

func (s *Service) ensureFormNumberFree(ctx context.Context, tx *gorm.DB, formNumber string) error {
	existing, err := s.repo.FindByFormNumber(ctx, tx, formNumber)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrDuplicateFormNumber
	}
	return nil
}

func (s *Service) latestRates(ctx context.Context) exchangerate.Rates {
	if s.rates == nil {
		return exchangerate.Rates{}
	}
	return s.rates.Latest(ctx)
}

func (s *Service) recordCommit(operation string, err error) {
	var allocErr *domain.AllocationError
	switch {
	case err == nil:
		s.metrics.RecordRentalCommit(operation, obsmetrics.ResultOK)
	case errors.As(err, &allocErr):
		s.metrics.RecordRentalCommit(operation, obsmetrics.ResultRejected)
		s.log.Info("rental commit rejected",
			zap.String("operation", operation),
			zap.Int("failed_lines", len(allocErr.Lines)),
			zap.Error(err),
		)
	default:
		s.metrics.RecordRentalCommit(operation, obsmetrics.ResultError)
	}
}

func vatRate(requested *int, fallback int) (int, error) {
	if requested == nil {
		return fallback, nil
	}
	if *requested < 0 || *requested > 100 {
		return 0, domain.ErrInvalidVATRate
	}
	return *requested, nil
}

func hasFrozenLine(lines []*domain.RentalLineItem) bool {
	for _, line := range lines {
		if line.Status == domain.LineStatusFinalized || line.Status == domain.LineStatusCancelled {
			return true
		}
	}
	return false
}

func uniqueSorted(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
