package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/company/domain"
	"github.com/smallbiznis/equiprent/internal/company/repository"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCompanyLifecycle(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
	ctx := context.Background()

	acme, err := svc.Create(ctx, domain.CreateCompanyRequest{
		Name:       "  Acme Construction ",
		TaxNumber:  "1234567890",
		IsCustomer: true,
		Metadata:   map[string]any{"region": "north"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Construction", acme.Name)
	assert.True(t, acme.IsActive)
	assert.True(t, acme.Balance.IsZero())

	_, err = svc.Create(ctx, domain.CreateCompanyRequest{Name: "Copy", TaxNumber: "1234567890", IsSupplier: true})
	assert.ErrorIs(t, err, domain.ErrDuplicateTaxNumber)

	_, err = svc.Create(ctx, domain.CreateCompanyRequest{Name: "Nobody", TaxNumber: "555"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = svc.Create(ctx, domain.CreateCompanyRequest{Name: " ", TaxNumber: "556", IsCustomer: true})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	supplier, err := svc.Create(ctx, domain.CreateCompanyRequest{Name: "Lift Supply", TaxNumber: "999", IsSupplier: true})
	require.NoError(t, err)

	t.Run("list filters by role", func(t *testing.T) {
		resp, err := svc.List(ctx, domain.ListCompanyRequest{SupplierOnly: true})
		require.NoError(t, err)
		require.Len(t, resp.Companies, 1)
		assert.Equal(t, supplier.ID, resp.Companies[0].ID)

		resp, err = svc.List(ctx, domain.ListCompanyRequest{Query: "acme"})
		require.NoError(t, err)
		require.Len(t, resp.Companies, 1)
		assert.Equal(t, acme.ID, resp.Companies[0].ID)
	})

	t.Run("deactivate and activate", func(t *testing.T) {
		out, err := svc.Deactivate(ctx, acme.ID)
		require.NoError(t, err)
		assert.False(t, out.IsActive)

		out, err = svc.Activate(ctx, acme.ID)
		require.NoError(t, err)
		assert.True(t, out.IsActive)
	})

	t.Run("delete is refused once money moved", func(t *testing.T) {
		now := time.Now().UTC()
		payment := ledgerdomain.Payment{
			ID:        node.Generate(),
			CompanyID: acme.ID,
			Date:      testutil.Date(2024, 1, 2),
			Amount:    decimal.NewFromInt(10),
			Direction: ledgerdomain.PaymentDirectionCollection,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, db.Create(&payment).Error)

		assert.ErrorIs(t, svc.Delete(ctx, acme.ID), domain.ErrHasFinancialHistory)
		require.NoError(t, svc.Delete(ctx, supplier.ID))

		_, err := svc.Get(ctx, supplier.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, domain.BalanceDebtor, domain.StatusOf(decimal.NewFromInt(5)))
	assert.Equal(t, domain.BalanceCreditor, domain.StatusOf(decimal.NewFromInt(-5)))
	assert.Equal(t, domain.BalanceSettled, domain.StatusOf(decimal.Zero))
}
