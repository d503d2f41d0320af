package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/clock"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	"github.com/smallbiznis/equiprent/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/equiprent/internal/observability/metrics"
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
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ledger.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		companyRepo: p.CompanyRepo,
		metrics:     p.Metrics,
	}
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// adjustCompany adds delta to the company balance under a row lock.
func (s *Service) adjustCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID, delta decimal.Decimal, at time.Time) error {
	company, err := s.companyRepo.FindByIDForUpdate(ctx, db, companyID)
	if err != nil {
		return err
	}
	if company == nil {
		return fmt.Errorf("%w: %w: company %s", domain.ErrReconciliationFailure, domain.ErrMissingReference, companyID)
	}
	if delta.IsZero() {
		return nil
	}
	return s.companyRepo.UpdateBalance(ctx, db, companyID, company.Balance.Add(delta), at)
}

// adjustCash adds delta to the cash account balance under a row lock.
func (s *Service) adjustCash(ctx context.Context, db *gorm.DB, accountID snowflake.ID, delta decimal.Decimal, at time.Time) error {
	account, err := s.repo.FindCashAccountForUpdate(ctx, db, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: %w: cash account %s", domain.ErrReconciliationFailure, domain.ErrMissingReference, accountID)
	}
	if delta.IsZero() {
		return nil
	}
	return s.repo.UpdateCashBalance(ctx, db, accountID, account.Balance.Add(delta), at)
}

// putRecord writes next in place of prev. The effect of prev is taken off
// its company before the effect of next is applied. An unchanged record is
// left alone.
func (s *Service) putRecord(ctx context.Context, db *gorm.DB, prev *domain.ServiceRecord, next domain.ServiceRecord) (domain.ServiceRecord, error) {
	next.Amount = next.Amount.Round(2)
	next.Date = clock.DateOf(next.Date)
	if next.DueDate != nil {
		due := clock.DateOf(*next.DueDate)
		next.DueDate = &due
	}

	if prev != nil && sameRecord(*prev, next) {
		return *prev, nil
	}

	now := s.clock.Now()
	if prev != nil {
		if err := s.adjustCompany(ctx, db, prev.CompanyID, prev.Effect().Neg(), now); err != nil {
			return domain.ServiceRecord{}, err
		}
		next.ID = prev.ID
		next.CreatedAt = prev.CreatedAt
	} else {
		next.ID = s.genID.Generate()
		next.CreatedAt = now
	}
	next.UpdatedAt = now

	if err := s.adjustCompany(ctx, db, next.CompanyID, next.Effect(), now); err != nil {
		return domain.ServiceRecord{}, err
	}

	var err error
	if prev != nil {
		err = s.repo.UpdateRecord(ctx, db, &next)
	} else {
		err = s.repo.InsertRecord(ctx, db, &next)
	}
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	s.metrics.RecordLedgerPosting(string(next.SourceType))
	s.log.Debug("service record posted",
		zap.String("record_id", next.ID.String()),
		zap.String("company_id", next.CompanyID.String()),
		zap.String("kind", string(next.Kind)),
		zap.String("amount", next.Amount.StringFixed(2)),
		zap.Bool("replaced", prev != nil),
	)
	return next, nil
}

func (s *Service) removeRecord(ctx context.Context, db *gorm.DB, record *domain.ServiceRecord) error {
	if err := s.adjustCompany(ctx, db, record.CompanyID, record.Effect().Neg(), s.clock.Now()); err != nil {
		return err
	}
	if err := s.repo.DeleteRecord(ctx, db, record.ID); err != nil {
		return err
	}
	s.log.Debug("service record removed",
		zap.String("record_id", record.ID.String()),
		zap.String("company_id", record.CompanyID.String()),
		zap.String("kind", string(record.Kind)),
	)
	return nil
}

func (s *Service) applyPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	if err := s.adjustCompany(ctx, db, payment.CompanyID, payment.CompanyEffect(), payment.UpdatedAt); err != nil {
		return err
	}
	if payment.CashAccountID != nil {
		if err := s.adjustCash(ctx, db, *payment.CashAccountID, payment.CashEffect(), payment.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reversePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment, at time.Time) error {
	if err := s.adjustCompany(ctx, db, payment.CompanyID, payment.CompanyEffect().Neg(), at); err != nil {
		return err
	}
	if payment.CashAccountID != nil {
		if err := s.adjustCash(ctx, db, *payment.CashAccountID, payment.CashEffect().Neg(), at); err != nil {
			return err
		}
	}
	return nil
}

func sameRecord(a, b domain.ServiceRecord) bool {
	return a.CompanyID == b.CompanyID &&
		a.Direction == b.Direction &&
		a.Amount.Equal(b.Amount) &&
		a.Date.Equal(b.Date) &&
		a.ReferenceNo == b.ReferenceNo &&
		a.Description == b.Description &&
		sameID(a.RentalID, b.RentalID) &&
		sameTime(a.DueDate, b.DueDate)
}

func sameID(a, b *snowflake.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func dateOrNil(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := clock.DateOf(*t)
	return &d
}
