package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/internal/statement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	LedgerRepo  ledgerdomain.Repository
	CompanyRepo companydomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	ledgerRepo  ledgerdomain.Repository
	companyRepo companydomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("statement.service"),
		ledgerRepo:  p.LedgerRepo,
		companyRepo: p.CompanyRepo,
	}
}

// Build reads service records and payments of a company in one snapshot
// and folds them into a running balance ordered by date, then id.
func (s *Service) Build(ctx context.Context, companyID snowflake.ID) (domain.Statement, error) {
	if companyID == 0 {
		return domain.Statement{}, domain.ErrInvalidCompany
	}

	var (
		company  *companydomain.Company
		records  []*ledgerdomain.ServiceRecord
		payments []*ledgerdomain.Payment
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		company, err = s.companyRepo.FindByID(ctx, tx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		if records, err = s.ledgerRepo.ListRecordsByCompany(ctx, tx, companyID); err != nil {
			return err
		}
		payments, err = s.ledgerRepo.ListPaymentsByCompany(ctx, tx, companyID)
		return err
	})
	if err != nil {
		return domain.Statement{}, err
	}

	rows := make([]domain.Row, 0, len(records)+len(payments))
	for _, r := range records {
		rows = append(rows, recordRow(*r))
	}
	for _, p := range payments {
		rows = append(rows, paymentRow(*p))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].ID < rows[j].ID
	})

	stmt := domain.Statement{
		CompanyID:     company.ID,
		CompanyName:   company.Name,
		Rows:          rows,
		TotalDebit:    decimal.Zero,
		TotalCredit:   decimal.Zero,
		CachedBalance: company.Balance,
	}
	running := decimal.Zero
	for i := range stmt.Rows {
		row := &stmt.Rows[i]
		running = running.Add(row.Debit).Sub(row.Credit)
		row.RunningBalance = running
		stmt.TotalDebit = stmt.TotalDebit.Add(row.Debit)
		stmt.TotalCredit = stmt.TotalCredit.Add(row.Credit)
	}
	stmt.FinalBalance = running
	stmt.Status = companydomain.StatusOf(running)

	if !stmt.Reconciled() {
		s.log.Warn("statement does not match company balance",
			zap.String("company_id", companyID.String()),
			zap.String("statement", stmt.FinalBalance.StringFixed(2)),
			zap.String("cached", stmt.CachedBalance.StringFixed(2)),
		)
	}
	return stmt, nil
}

func recordRow(r ledgerdomain.ServiceRecord) domain.Row {
	row := domain.Row{
		ID:          r.ID,
		Type:        domain.EntryTypeRecord,
		Date:        r.Date,
		ReferenceNo: r.ReferenceNo,
		Description: r.Description,
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
	}
	if row.Description == "" {
		row.Description = fmt.Sprintf("Service record (%s)", r.Direction)
	}
	if r.Direction == ledgerdomain.RecordDirectionIncoming {
		row.Credit = r.Amount
	} else {
		row.Debit = r.Amount
	}
	return row
}

func paymentRow(p ledgerdomain.Payment) domain.Row {
	row := domain.Row{
		ID:          p.ID,
		Type:        domain.EntryTypePayment,
		Date:        p.Date,
		ReferenceNo: p.ReferenceNo,
		Description: p.Description,
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
	}
	if row.Description == "" {
		row.Description = fmt.Sprintf("Cash %s", p.Direction)
	}
	if p.Direction == ledgerdomain.PaymentDirectionCollection {
		row.Credit = p.Amount
	} else {
		row.Debit = p.Amount
	}
	return row
}
