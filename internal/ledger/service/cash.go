package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/clock"
	"github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApplyCashMovement records a payment or collection against a company and,
// when given, a cash account. Both balances move in the same transaction.
func (s *Service) ApplyCashMovement(ctx context.Context, req domain.CashMovementRequest) (domain.Payment, error) {
	if err := validateMovement(req); err != nil {
		return domain.Payment{}, err
	}

	now := s.clock.Now()
	payment := newPayment(req, now)
	payment.ID = s.genID.Generate()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyPayment(ctx, tx, &payment); err != nil {
			return err
		}
		return s.repo.InsertPayment(ctx, tx, &payment)
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.metrics.RecordCashMovement(string(payment.Direction))
	s.log.Info("cash movement applied",
		zap.String("payment_id", payment.ID.String()),
		zap.String("company_id", payment.CompanyID.String()),
		zap.String("direction", string(payment.Direction)),
		zap.String("amount", payment.Amount.StringFixed(2)),
	)
	return payment, nil
}

// UpdatePayment reverses the stored effect of the payment on its old
// company and cash account, then applies the edited one.
func (s *Service) UpdatePayment(ctx context.Context, id snowflake.ID, req domain.CashMovementRequest) (domain.Payment, error) {
	if id == 0 {
		return domain.Payment{}, domain.ErrInvalidID
	}
	if err := validateMovement(req); err != nil {
		return domain.Payment{}, err
	}

	var updated domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := s.repo.FindPaymentForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if prev == nil {
			return domain.ErrPaymentNotFound
		}
		if prev.TransferID != nil {
			return domain.ErrTransferLeg
		}

		now := s.clock.Now()
		if err := s.reversePayment(ctx, tx, prev, now); err != nil {
			return err
		}

		next := newPayment(req, now)
		next.ID = prev.ID
		next.CreatedAt = prev.CreatedAt
		if err := s.applyPayment(ctx, tx, &next); err != nil {
			return err
		}
		if err := s.repo.UpdatePayment(ctx, tx, &next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return updated, nil
}

// DeletePayment reverses and removes a payment. Deleting either leg of a
// transfer removes both legs.
func (s *Service) DeletePayment(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindPaymentForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrPaymentNotFound
		}

		legs := []*domain.Payment{payment}
		if payment.TransferID != nil {
			legs, err = s.repo.ListPaymentsByTransfer(ctx, tx, *payment.TransferID)
			if err != nil {
				return err
			}
		}

		now := s.clock.Now()
		for _, leg := range legs {
			if err := s.reversePayment(ctx, tx, leg, now); err != nil {
				return err
			}
			if err := s.repo.DeletePayment(ctx, tx, leg.ID); err != nil {
				return err
			}
		}
		s.log.Info("payment deleted",
			zap.String("payment_id", id.String()),
			zap.Int("legs", len(legs)),
		)
		return nil
	})
}

// Transfer moves money between two cash accounts of the same currency as a
// payment out of the source and a collection into the target.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (domain.Transfer, error) {
	if req.CompanyID == 0 {
		return domain.Transfer{}, domain.ErrInvalidCompany
	}
	if req.FromAccountID == 0 || req.ToAccountID == 0 {
		return domain.Transfer{}, domain.ErrInvalidID
	}
	if req.FromAccountID == req.ToAccountID {
		return domain.Transfer{}, domain.ErrSameAccount
	}
	if !positiveMoney(req.Amount) {
		return domain.Transfer{}, domain.ErrInvalidAmount
	}
	if req.Date.IsZero() {
		return domain.Transfer{}, domain.ErrInvalidDate
	}

	now := s.clock.Now()
	transferID := s.genID.Generate()
	from, to := req.FromAccountID, req.ToAccountID
	base := domain.CashMovementRequest{
		CompanyID:   req.CompanyID,
		Date:        req.Date,
		Amount:      req.Amount,
		Description: req.Description,
	}

	out := newPayment(base, now)
	out.ID = s.genID.Generate()
	out.Direction = domain.PaymentDirectionPayment
	out.CashAccountID = &from
	out.TransferID = &transferID

	in := newPayment(base, now)
	in.ID = s.genID.Generate()
	in.Direction = domain.PaymentDirectionCollection
	in.CashAccountID = &to
	in.TransferID = &transferID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := s.repo.FindCashAccount(ctx, tx, from)
		if err != nil {
			return err
		}
		target, err := s.repo.FindCashAccount(ctx, tx, to)
		if err != nil {
			return err
		}
		if source == nil || target == nil {
			return fmt.Errorf("%w: %w: cash account", domain.ErrReconciliationFailure, domain.ErrMissingReference)
		}
		if source.Currency != target.Currency {
			return fmt.Errorf("%w: %s -> %s", domain.ErrCurrencyMismatch, source.Currency, target.Currency)
		}

		for _, leg := range []*domain.Payment{&out, &in} {
			if err := s.applyPayment(ctx, tx, leg); err != nil {
				return err
			}
			if err := s.repo.InsertPayment(ctx, tx, leg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Transfer{}, err
	}

	s.metrics.RecordCashMovement("transfer")
	s.log.Info("cash transfer applied",
		zap.String("transfer_id", transferID.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("amount", out.Amount.StringFixed(2)),
	)
	return domain.Transfer{ID: transferID, Out: out, In: in}, nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (domain.Payment, error) {
	if id == 0 {
		return domain.Payment{}, domain.ErrInvalidID
	}
	payment, err := s.repo.FindPayment(ctx, s.db, id)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment == nil {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return *payment, nil
}

func (s *Service) ListPayments(ctx context.Context, companyID snowflake.ID) ([]domain.Payment, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	rows, err := s.repo.ListPaymentsByCompany(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, 0, len(rows))
	for _, p := range rows {
		payments = append(payments, *p)
	}
	return payments, nil
}

func (s *Service) CreateCashAccount(ctx context.Context, req domain.CreateCashAccountRequest) (domain.CashAccount, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.CashAccount{}, domain.ErrInvalidName
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.CashAccountKindCash
	}
	if kind != domain.CashAccountKindCash && kind != domain.CashAccountKindBank {
		return domain.CashAccount{}, domain.ErrInvalidAccountKind
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "TRY"
	}

	now := s.clock.Now()
	account := domain.CashAccount{
		ID:        s.genID.Generate(),
		Name:      name,
		Kind:      kind,
		Currency:  currency,
		Balance:   req.OpeningBalance.Round(2),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertCashAccount(ctx, s.db.WithContext(ctx), &account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.CashAccount{}, domain.ErrDuplicateAccountName
		}
		return domain.CashAccount{}, err
	}
	return account, nil
}

func (s *Service) GetCashAccount(ctx context.Context, id snowflake.ID) (domain.CashAccount, error) {
	if id == 0 {
		return domain.CashAccount{}, domain.ErrInvalidID
	}
	account, err := s.repo.FindCashAccount(ctx, s.db, id)
	if err != nil {
		return domain.CashAccount{}, err
	}
	if account == nil {
		return domain.CashAccount{}, domain.ErrCashAccountNotFound
	}
	return *account, nil
}

func (s *Service) ListCashAccounts(ctx context.Context) ([]domain.CashAccount, error) {
	rows, err := s.repo.ListCashAccounts(ctx, s.db)
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.CashAccount, 0, len(rows))
	for _, a := range rows {
		accounts = append(accounts, *a)
	}
	return accounts, nil
}

func validateMovement(req domain.CashMovementRequest) error {
	if req.CompanyID == 0 {
		return domain.ErrInvalidCompany
	}
	if !positiveMoney(req.Amount) {
		return domain.ErrInvalidAmount
	}
	if req.Date.IsZero() {
		return domain.ErrInvalidDate
	}
	switch req.Direction {
	case domain.PaymentDirectionCollection, domain.PaymentDirectionPayment:
	default:
		return domain.ErrInvalidDirection
	}
	if req.CashAccountID != nil && *req.CashAccountID == 0 {
		return domain.ErrInvalidID
	}
	return nil
}

// positiveMoney reports whether d is still positive once rounded to cents.
func positiveMoney(d decimal.Decimal) bool {
	return d.Round(2).IsPositive()
}

func newPayment(req domain.CashMovementRequest, now time.Time) domain.Payment {
	return domain.Payment{
		CompanyID:     req.CompanyID,
		CashAccountID: req.CashAccountID,
		Date:          clock.DateOf(req.Date),
		Amount:        req.Amount.Round(2),
		Direction:     req.Direction,
		DueDate:       dateOrNil(req.DueDate),
		ReferenceNo:   strings.TrimSpace(req.ReferenceNo),
		Description:   strings.TrimSpace(req.Description),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
