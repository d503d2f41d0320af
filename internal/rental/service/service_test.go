package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/clock"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	companyrepo "github.com/smallbiznis/equiprent/internal/company/repository"
	"github.com/smallbiznis/equiprent/internal/config"
	equipmentdomain "github.com/smallbiznis/equiprent/internal/equipment/domain"
	equipmentrepo "github.com/smallbiznis/equiprent/internal/equipment/repository"
	equipmentservice "github.com/smallbiznis/equiprent/internal/equipment/service"
	"github.com/smallbiznis/equiprent/internal/exchangerate"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/equiprent/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/equiprent/internal/ledger/service"
	"github.com/smallbiznis/equiprent/internal/rental/domain"
	"github.com/smallbiznis/equiprent/internal/rental/repository"
	"github.com/smallbiznis/equiprent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) SyncRental(ctx context.Context, tx *gorm.DB, posting ledgerdomain.RentalPosting) error {
	args := m.Called(ctx, tx, posting)
	return args.Error(0)
}

func (m *mockReconciler) RemoveRental(ctx context.Context, tx *gorm.DB, rentalID snowflake.ID) error {
	args := m.Called(ctx, tx, rentalID)
	return args.Error(0)
}

func (m *mockReconciler) SyncShipment(ctx context.Context, tx *gorm.DB, posting ledgerdomain.ShipmentPosting) (snowflake.ID, error) {
	args := m.Called(ctx, tx, posting)
	return args.Get(0).(snowflake.ID), args.Error(1)
}

func (m *mockReconciler) RemoveShipment(ctx context.Context, tx *gorm.DB, shipmentID snowflake.ID) error {
	args := m.Called(ctx, tx, shipmentID)
	return args.Error(0)
}

func (m *mockReconciler) ApplyCashMovement(ctx context.Context, req ledgerdomain.CashMovementRequest) (ledgerdomain.Payment, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ledgerdomain.Payment), args.Error(1)
}

func (m *mockReconciler) UpdatePayment(ctx context.Context, id snowflake.ID, req ledgerdomain.CashMovementRequest) (ledgerdomain.Payment, error) {
	args := m.Called(ctx, id, req)
	return args.Get(0).(ledgerdomain.Payment), args.Error(1)
}

func (m *mockReconciler) DeletePayment(ctx context.Context, id snowflake.ID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReconciler) Transfer(ctx context.Context, req ledgerdomain.TransferRequest) (ledgerdomain.Transfer, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ledgerdomain.Transfer), args.Error(1)
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	equipment *equipmentservice.Service
	ledger    ledgerdomain.Service
	svc       domain.Service
	customer  companydomain.Company
	supplier  companydomain.Company
	carrier   companydomain.Company
}

type fixtureOption func(*Params)

func withReconciler(r ledgerdomain.Reconciler) fixtureOption {
	return func(p *Params) { p.Reconciler = r }
}

func withRepo(r domain.Repository) fixtureOption {
	return func(p *Params) { p.Repo = r }
}

func withPolicy(policy config.RentalPolicy) fixtureOption {
	return func(p *Params) { p.Policy = config.StaticRentalPolicy(policy) }
}

func newFixture(t *testing.T, opts ...fixtureOption) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	equipment := equipmentservice.New(equipmentservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        equipmentrepo.Provide(),
		CompanyRepo: companyrepo.Provide(),
	})
	ledger := ledgerservice.New(ledgerservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        ledgerrepo.Provide(),
		CompanyRepo: companyrepo.Provide(),
	})

	params := Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		Registry:    equipment,
		Resolver:    equipment,
		CompanyRepo: companyrepo.Provide(),
		Reconciler:  ledger,
		Rates:       exchangerate.Static{USD: testutil.Dec("30.1234"), EUR: testutil.Dec("33.5")},
	}
	for _, opt := range opts {
		opt(&params)
	}

	return fixture{
		db:        db,
		node:      node,
		clock:     clk,
		equipment: equipment,
		ledger:    ledger,
		svc:       New(params),
		customer:  testutil.SeedCompany(t, db, node, "Acme Construction", testutil.Customer),
		supplier:  testutil.SeedCompany(t, db, node, "Lift Supply", testutil.Supplier),
		carrier:   testutil.SeedCompany(t, db, node, "Road Carrier", testutil.Supplier),
	}
}

func (f fixture) ownedLine(equipmentID snowflake.ID, start, end time.Time, sell, transport string) domain.LineInput {
	return domain.LineInput{
		EquipmentID:        equipmentID,
		StartDate:          start,
		EndDate:            end,
		SellPricePerDay:    testutil.Dec(sell),
		CostPricePerDay:    decimal.Zero,
		TransportSellPrice: testutil.Dec(transport),
		TransportCostPrice: decimal.Zero,
	}
}

func (f fixture) assertBalance(t *testing.T, id snowflake.ID, want string) {
	t.Helper()
	got := testutil.Balance(t, f.db, id)
	assert.True(t, got.Equal(testutil.Dec(want)), "balance %s, want %s", got.String(), want)
}

func (f fixture) rentalCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&domain.Rental{}).Count(&count).Error)
	return count
}

func jan(day int) time.Time {
	return testutil.Date(2024, 1, day)
}

func TestRentalLifecycle_FinalizeKeepsReceivable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "50")},
	})
	require.NoError(t, err)
	assert.Equal(t, "PF-2024/1", rental.FormNumber)
	assert.Equal(t, 20, rental.VATRate)
	assert.True(t, rental.USDRate.Equal(testutil.Dec("30.1234")))
	require.Len(t, rental.Lines, 1)
	line := rental.Lines[0]
	assert.Equal(t, domain.LineStatusActive, line.Status)
	assert.True(t, line.Total().Equal(testutil.Dec("550")))

	assert.Equal(t, equipmentdomain.StatusRented, testutil.EquipmentStatus(t, f.db, e1.ID))
	f.assertBalance(t, f.customer.ID, "550")

	view, err := f.svc.Get(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Construction", view.CustomerName)
	assert.True(t, view.Total.Equal(testutil.Dec("550")))
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Genie GS-1932 (E1)", view.Items[0].Equipment)

	_, err = f.svc.FinalizeLine(ctx, line.ID, testutil.Date(2023, 12, 31))
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
	assert.Equal(t, equipmentdomain.StatusRented, testutil.EquipmentStatus(t, f.db, e1.ID))

	finalized, err := f.svc.FinalizeLine(ctx, line.ID, jan(5))
	require.NoError(t, err)
	assert.Equal(t, domain.LineStatusFinalized, finalized.Status)
	assert.NotNil(t, finalized.FinalizedAt)
	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e1.ID))
	f.assertBalance(t, f.customer.ID, "550")

	records, err := f.ledger.ListRentalRecords(ctx, rental.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Amount.Equal(testutil.Dec("550")))

	_, err = f.svc.FinalizeLine(ctx, line.ID, jan(5))
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)

	t.Run("early return still bills the agreed period", func(t *testing.T) {
		corrected, err := f.svc.CorrectFinalizedEndDate(ctx, line.ID, jan(3))
		require.NoError(t, err)
		assert.True(t, corrected.EndDate.Equal(jan(3)))
		f.assertBalance(t, f.customer.ID, "550")
	})
}

func TestFinalize_RecomputePolicy(t *testing.T) {
	policy := config.DefaultRentalPolicy()
	policy.RecomputeOnFinalize = true
	f := newFixture(t, withPolicy(policy))
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "50")},
	})
	require.NoError(t, err)

	_, err = f.svc.FinalizeActiveByEquipment(ctx, e1.ID, jan(3))
	require.NoError(t, err)
	f.assertBalance(t, f.customer.ID, "350")
	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e1.ID))

	_, err = f.svc.FinalizeActiveByEquipment(ctx, e1.ID, jan(3))
	assert.ErrorIs(t, err, domain.ErrLineNotFound)

	snap, err := f.svc.Snapshot(ctx, rental.ID)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int64(3), snap.Lines[0].Days)
}

func TestCreate_RejectsEquipmentHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)
	e2 := testutil.SeedEquipment(t, f.db, f.node, "E2", equipmentdomain.StatusIdle)

	_, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "0")},
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines: []domain.LineInput{
			f.ownedLine(e2.ID, jan(2), jan(3), "80", "0"),
			f.ownedLine(e1.ID, jan(2), jan(3), "80", "0"),
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEquipmentNotAvailable)
	assert.ErrorIs(t, err, equipmentdomain.ErrNotAvailable)

	var allocErr *domain.AllocationError
	require.True(t, errors.As(err, &allocErr))
	require.Len(t, allocErr.Lines, 1)
	assert.Equal(t, 1, allocErr.Lines[0].Index)
	assert.Equal(t, e1.ID, allocErr.Lines[0].EquipmentID)

	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e2.ID))
	assert.Equal(t, int64(1), f.rentalCount(t))
	f.assertBalance(t, f.customer.ID, "500")
}

func TestCreate_AggregatesLineErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)

	negative := f.ownedLine(e1.ID, jan(1), jan(2), "100", "0")
	negative.SellPricePerDay = testutil.Dec("-1")

	_, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines: []domain.LineInput{
			f.ownedLine(e1.ID, jan(5), jan(1), "100", "0"),
			f.ownedLine(0, jan(1), jan(2), "100", "0"),
			negative,
			{External: &equipmentdomain.ExternalSupply{Serial: "X-1"}, StartDate: jan(1), EndDate: jan(2)},
		},
	})
	require.Error(t, err)

	var allocErr *domain.AllocationError
	require.True(t, errors.As(err, &allocErr))
	assert.Len(t, allocErr.Lines, 4)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
	assert.ErrorIs(t, err, domain.ErrMissingReference)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	assert.ErrorIs(t, err, domain.ErrMissingSupplierForExternal)

	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e1.ID))
	assert.Equal(t, int64(0), f.rentalCount(t))
}

func TestCreate_RequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)
	line := f.ownedLine(e1.ID, jan(1), jan(2), "100", "0")

	_, err := f.svc.Create(ctx, domain.CreateRentalRequest{CustomerID: f.customer.ID})
	assert.ErrorIs(t, err, domain.ErrNoLineItems)

	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{Lines: []domain.LineInput{line}})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{CustomerID: f.supplier.ID, Lines: []domain.LineInput{line}})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	vat := 120
	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{CustomerID: f.customer.ID, VATRate: &vat, Lines: []domain.LineInput{line}})
	assert.ErrorIs(t, err, domain.ErrInvalidVATRate)

	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{line, line},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateEquipmentInRental)

	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(f.node.Generate(), jan(1), jan(2), "100", "0")},
	})
	assert.ErrorIs(t, err, domain.ErrMissingReference)

	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{FormNumber: "PF-2024/9", CustomerID: f.customer.ID, Lines: []domain.LineInput{line}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{FormNumber: "PF-2024/9", CustomerID: f.customer.ID, Lines: []domain.LineInput{line}})
	assert.ErrorIs(t, err, domain.ErrDuplicateFormNumber)

	next, err := f.svc.NextFormNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PF-2024/10", next)
}

func TestUpdate_SameLinesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "50")},
	})
	require.NoError(t, err)
	before, err := f.ledger.ListRentalRecords(ctx, rental.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		input := f.ownedLine(e1.ID, jan(1), jan(5), "100", "50")
		id := rental.Lines[0].ID
		input.ID = &id
		updated, err := f.svc.Update(ctx, rental.ID, domain.UpdateRentalRequest{
			Lines: []domain.LineInput{input},
		})
		require.NoError(t, err)
		require.Len(t, updated.Lines, 1)
		assert.Equal(t, rental.Lines[0].ID, updated.Lines[0].ID)
	}

	assert.Equal(t, equipmentdomain.StatusRented, testutil.EquipmentStatus(t, f.db, e1.ID))
	f.assertBalance(t, f.customer.ID, "550")
	after, err := f.ledger.ListRentalRecords(ctx, rental.ID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)

	t.Run("lines without id match by equipment", func(t *testing.T) {
		updated, err := f.svc.Update(ctx, rental.ID, domain.UpdateRentalRequest{
			Lines: []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(6), "100", "50")},
		})
		require.NoError(t, err)
		require.Len(t, updated.Lines, 1)
		assert.Equal(t, rental.Lines[0].ID, updated.Lines[0].ID)
		f.assertBalance(t, f.customer.ID, "650")
	})
}

func TestUpdate_SwapsEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)
	e2 := testutil.SeedEquipment(t, f.db, f.node, "E2", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "0")},
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, rental.ID, domain.UpdateRentalRequest{
		Notes: "swapped",
		Lines: []domain.LineInput{f.ownedLine(e2.ID, jan(1), jan(2), "120", "0")},
	})
	require.NoError(t, err)
	assert.Equal(t, "swapped", updated.Notes)
	require.Len(t, updated.Lines, 1)
	assert.Equal(t, e2.ID, updated.Lines[0].EquipmentID)

	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e1.ID))
	assert.Equal(t, equipmentdomain.StatusRented, testutil.EquipmentStatus(t, f.db, e2.ID))
	f.assertBalance(t, f.customer.ID, "240")

	_, err = f.svc.Update(ctx, rental.ID, domain.UpdateRentalRequest{})
	assert.ErrorIs(t, err, domain.ErrNoLineItems)
}

func TestUpdate_KeepsFinalizedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)
	e2 := testutil.SeedEquipment(t, f.db, f.node, "E2", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines: []domain.LineInput{
			f.ownedLine(e1.ID, jan(1), jan(5), "100", "50"),
			f.ownedLine(e2.ID, jan(1), jan(2), "10", "0"),
		},
	})
	require.NoError(t, err)
	f.assertBalance(t, f.customer.ID, "570")

	e1Line := rental.Lines[0]
	_, err = f.svc.FinalizeLine(ctx, e1Line.ID, jan(5))
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, rental.ID, domain.UpdateRentalRequest{
		Lines: []domain.LineInput{f.ownedLine(e2.ID, jan(1), jan(3), "10", "0")},
	})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 2)
	assert.Equal(t, e1Line.ID, updated.Lines[0].ID)
	assert.Equal(t, domain.LineStatusFinalized, updated.Lines[0].Status)
	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e1.ID))
	f.assertBalance(t, f.customer.ID, "580")

	id := e1Line.ID
	edit := f.ownedLine(e1.ID, jan(1), jan(9), "100", "50")
	edit.ID = &id
	_, err = f.svc.Update(ctx, rental.ID, domain.UpdateRentalRequest{Lines: []domain.LineInput{edit}})
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)

	t.Run("only finalized lines left", func(t *testing.T) {
		out, err := f.svc.Update(ctx, rental.ID, domain.UpdateRentalRequest{})
		require.NoError(t, err)
		require.Len(t, out.Lines, 1)
		assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e2.ID))
		f.assertBalance(t, f.customer.ID, "550")
	})
}

func TestUndoFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "0")},
	})
	require.NoError(t, err)
	lineID := rental.Lines[0].ID

	_, err = f.svc.UndoFinalize(ctx, lineID)
	assert.ErrorIs(t, err, domain.ErrNotFinalized)

	_, err = f.svc.FinalizeLine(ctx, lineID, jan(4))
	require.NoError(t, err)

	reopened, err := f.svc.UndoFinalize(ctx, lineID)
	require.NoError(t, err)
	assert.Equal(t, domain.LineStatusActive, reopened.Status)
	assert.True(t, reopened.EndDate.Equal(jan(5)))
	assert.Nil(t, reopened.FinalizedAt)
	assert.Equal(t, equipmentdomain.StatusRented, testutil.EquipmentStatus(t, f.db, e1.ID))
	f.assertBalance(t, f.customer.ID, "500")

	t.Run("equipment rented elsewhere blocks the undo", func(t *testing.T) {
		_, err := f.svc.FinalizeLine(ctx, lineID, jan(5))
		require.NoError(t, err)
		_, err = f.svc.Create(ctx, domain.CreateRentalRequest{
			CustomerID: f.customer.ID,
			Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(6), jan(7), "100", "0")},
		})
		require.NoError(t, err)

		_, err = f.svc.UndoFinalize(ctx, lineID)
		assert.ErrorIs(t, err, domain.ErrEquipmentNotAvailable)
	})
}

func TestCancelLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)
	e2 := testutil.SeedEquipment(t, f.db, f.node, "E2", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines: []domain.LineInput{
			f.ownedLine(e1.ID, jan(1), jan(5), "100", "50"),
			f.ownedLine(e2.ID, jan(1), jan(1), "70", "0"),
		},
	})
	require.NoError(t, err)
	f.assertBalance(t, f.customer.ID, "620")

	cancelled, err := f.svc.CancelLine(ctx, rental.Lines[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LineStatusCancelled, cancelled.Status)
	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e2.ID))
	f.assertBalance(t, f.customer.ID, "550")

	_, err = f.svc.CancelLine(ctx, rental.Lines[1].ID)
	assert.ErrorIs(t, err, domain.ErrInvalidLineState)

	_, err = f.svc.FinalizeLine(ctx, rental.Lines[1].ID, jan(1))
	assert.ErrorIs(t, err, domain.ErrInvalidLineState)

	_, err = f.svc.CancelLine(ctx, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
}

func TestExternalSupplyLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carrierID := f.carrier.ID

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines: []domain.LineInput{{
			External: &equipmentdomain.ExternalSupply{
				SupplierID: f.supplier.ID,
				Serial:     "JLG-77",
				Attributes: equipmentdomain.Attributes{Brand: "JLG", Model: "1930ES"},
			},
			StartDate:           jan(2),
			EndDate:             jan(4),
			SellPricePerDay:     testutil.Dec("200"),
			CostPricePerDay:     testutil.Dec("150"),
			TransportSellPrice:  testutil.Dec("100"),
			TransportCostPrice:  testutil.Dec("80"),
			TransportSupplierID: &carrierID,
		}},
	})
	require.NoError(t, err)
	require.Len(t, rental.Lines, 1)
	eqID := rental.Lines[0].EquipmentID

	eq, err := f.equipment.Get(ctx, eqID)
	require.NoError(t, err)
	assert.True(t, eq.IsExternal())
	assert.Equal(t, equipmentdomain.StatusRented, eq.Status)

	f.assertBalance(t, f.customer.ID, "700")
	f.assertBalance(t, f.supplier.ID, "-450")
	f.assertBalance(t, f.carrier.ID, "-80")

	t.Run("same serial from another supplier conflicts", func(t *testing.T) {
		_, err := f.svc.Create(ctx, domain.CreateRentalRequest{
			CustomerID: f.customer.ID,
			Lines: []domain.LineInput{{
				External:  &equipmentdomain.ExternalSupply{SupplierID: f.carrier.ID, Serial: "JLG-77"},
				StartDate: jan(2),
				EndDate:   jan(4),
			}},
		})
		assert.ErrorIs(t, err, domain.ErrSerialConflict)
	})

	t.Run("finalizing returns the machine to its supplier", func(t *testing.T) {
		_, err := f.svc.FinalizeLine(ctx, rental.Lines[0].ID, jan(4))
		require.NoError(t, err)
		assert.Equal(t, equipmentdomain.StatusExternal, testutil.EquipmentStatus(t, f.db, eqID))
		f.assertBalance(t, f.supplier.ID, "-450")
	})

	t.Run("deleting the rental reverses every record", func(t *testing.T) {
		require.NoError(t, f.svc.Delete(ctx, rental.ID))
		f.assertBalance(t, f.customer.ID, "0")
		f.assertBalance(t, f.supplier.ID, "0")
		f.assertBalance(t, f.carrier.ID, "0")

		_, err := f.svc.Get(ctx, rental.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestDelete_ReleasesEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "50")},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, rental.ID))
	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e1.ID))
	f.assertBalance(t, f.customer.ID, "0")
	assert.ErrorIs(t, f.svc.Delete(ctx, rental.ID), domain.ErrNotFound)
}

func TestCreate_LedgerFailureRollsBack(t *testing.T) {
	reconciler := &mockReconciler{}
	reconciler.On("SyncRental", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("ledger unavailable"))

	f := newFixture(t, withReconciler(reconciler))
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)

	_, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "50")},
	})
	require.Error(t, err)

	assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e1.ID))
	assert.Equal(t, int64(0), f.rentalCount(t))
	reconciler.AssertNumberOfCalls(t, "SyncRental", 1)
}

func TestCreate_PostsBillableLinesOnly(t *testing.T) {
	reconciler := &mockReconciler{}
	reconciler.On("SyncRental", mock.Anything, mock.Anything, mock.MatchedBy(func(p ledgerdomain.RentalPosting) bool {
		return len(p.Lines) == 1 && p.Receivable().Equal(decimal.NewFromInt(550)) && p.Lines[0].EquipmentSupplierID == nil
	})).Return(nil)

	f := newFixture(t, withReconciler(reconciler))
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)

	_, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "50")},
	})
	require.NoError(t, err)
	reconciler.AssertExpectations(t)
}

func TestSnapshotAndDueLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)
	e2 := testutil.SeedEquipment(t, f.db, f.node, "E2", equipmentdomain.StatusIdle)

	rental, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines: []domain.LineInput{
			f.ownedLine(e1.ID, jan(1), jan(5), "100", "50"),
			f.ownedLine(e2.ID, jan(1), jan(20), "10", "0"),
		},
	})
	require.NoError(t, err)

	snap, err := f.svc.Snapshot(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Construction", snap.Customer.Name)
	require.Len(t, snap.Lines, 2)
	assert.True(t, snap.Subtotal.Equal(testutil.Dec("750")))
	assert.True(t, snap.VATAmount.Equal(testutil.Dec("150")))
	assert.True(t, snap.GrandTotal.Equal(testutil.Dec("900")))

	f.clock.Set(time.Date(2024, 1, 4, 8, 0, 0, 0, time.UTC))
	due, err := f.svc.ListDueLines(ctx, 3)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, rental.Lines[0].ID, due[0].Line.ID)
	assert.Equal(t, rental.FormNumber, due[0].FormNumber)
	assert.Equal(t, domain.DueEndingSoon, due[0].Due.State)
	assert.Equal(t, 1, due[0].Due.Days)

	f.clock.Set(time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC))
	due, err = f.svc.ListDueLines(ctx, -1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.DueOverdue, due[0].Due.State)
	assert.Equal(t, 3, due[0].Due.Days)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)
	e2 := testutil.SeedEquipment(t, f.db, f.node, "E2", equipmentdomain.StatusIdle)
	other := testutil.SeedCompany(t, f.db, f.node, "Bravo Builders", testutil.Customer)

	_, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(5), "100", "50")},
	})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: other.ID,
		Lines:      []domain.LineInput{f.ownedLine(e2.ID, jan(1), jan(2), "100", "0")},
	})
	require.NoError(t, err)

	resp, err := f.svc.List(ctx, domain.ListRentalRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Rentals, 2)

	resp, err = f.svc.List(ctx, domain.ListRentalRequest{Query: "bravo"})
	require.NoError(t, err)
	require.Len(t, resp.Rentals, 1)
	assert.Equal(t, "Bravo Builders", resp.Rentals[0].CustomerName)
	assert.True(t, resp.Rentals[0].Total.Equal(testutil.Dec("200")))
}

func TestDueStatusOf(t *testing.T) {
	line := domain.RentalLineItem{Status: domain.LineStatusActive, EndDate: jan(10)}
	assert.Equal(t, domain.DueStatus{State: domain.DueEndsToday}, domain.DueStatusOf(line, jan(10), 7))
	assert.Equal(t, domain.DueStatus{State: domain.DueEndingSoon, Days: 3}, domain.DueStatusOf(line, jan(7), 7))
	assert.Equal(t, domain.DueStatus{State: domain.DueActive}, domain.DueStatusOf(line, jan(1), 7))
	assert.Equal(t, domain.DueStatus{State: domain.DueOverdue, Days: 2}, domain.DueStatusOf(line, jan(12), 7))

	line.Status = domain.LineStatusFinalized
	assert.Equal(t, domain.DueCompleted, domain.DueStatusOf(line, jan(12), 7).State)
	assert.Equal(t, "overdue 2 days", domain.DueStatus{State: domain.DueOverdue, Days: 2}.String())
}

// lateFormNumbers hides existing form numbers from the next stale reads, as
// if another create committed between the read and the insert.
type lateFormNumbers struct {
	domain.Repository
	stale int
}

func (r *lateFormNumbers) ListFormNumbers(ctx context.Context, db *gorm.DB, prefix string) ([]string, error) {
	if r.stale > 0 {
		r.stale--
		return nil, nil
	}
	return r.Repository.ListFormNumbers(ctx, db, prefix)
}

func TestCreate_RetriesTakenFormNumber(t *testing.T) {
	repo := &lateFormNumbers{Repository: repository.Provide()}
	f := newFixture(t, withRepo(repo))
	ctx := context.Background()
	e1 := testutil.SeedEquipment(t, f.db, f.node, "E1", equipmentdomain.StatusIdle)
	e2 := testutil.SeedEquipment(t, f.db, f.node, "E2", equipmentdomain.StatusIdle)
	e3 := testutil.SeedEquipment(t, f.db, f.node, "E3", equipmentdomain.StatusIdle)

	first, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e1.ID, jan(1), jan(2), "100", "0")},
	})
	require.NoError(t, err)
	require.Equal(t, "PF-2024/1", first.FormNumber)

	repo.stale = 1
	second, err := f.svc.Create(ctx, domain.CreateRentalRequest{
		CustomerID: f.customer.ID,
		Lines:      []domain.LineInput{f.ownedLine(e2.ID, jan(1), jan(2), "100", "0")},
	})
	require.NoError(t, err)
	assert.Equal(t, "PF-2024/2", second.FormNumber)
	assert.Equal(t, equipmentdomain.StatusRented, testutil.EquipmentStatus(t, f.db, e2.ID))

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		repo.stale = maxFormNumberAttempts
		_, err := f.svc.Create(ctx, domain.CreateRentalRequest{
			CustomerID: f.customer.ID,
			Lines:      []domain.LineInput{f.ownedLine(e3.ID, jan(1), jan(2), "100", "0")},
		})
		assert.ErrorIs(t, err, domain.ErrDuplicateFormNumber)
		assert.Equal(t, int64(2), f.rentalCount(t))
		assert.Equal(t, equipmentdomain.StatusIdle, testutil.EquipmentStatus(t, f.db, e3.ID))
		f.assertBalance(t, f.customer.ID, "400")
	})
}
