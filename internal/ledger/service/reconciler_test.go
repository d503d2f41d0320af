package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/equiprent/internal/clock"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	companyrepo "github.com/smallbiznis/equiprent/internal/company/repository"
	"github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/internal/ledger/repository"
	"github.com/smallbiznis/equiprent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      domain.Service
	customer companydomain.Company
	supplier companydomain.Company
	carrier  companydomain.Company
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)),
		Repo:        repository.Provide(),
		CompanyRepo: companyrepo.Provide(),
	})
	return fixture{
		db:       db,
		node:     node,
		svc:      svc,
		customer: testutil.SeedCompany(t, db, node, "Acme Construction", testutil.Customer),
		supplier: testutil.SeedCompany(t, db, node, "Lift Supply", testutil.Supplier),
		carrier:  testutil.SeedCompany(t, db, node, "Road Carrier", testutil.Supplier),
	}
}

func (f fixture) posting(rentalID snowflake.ID, withExternal bool) domain.RentalPosting {
	posting := domain.RentalPosting{
		RentalID:   rentalID,
		CompanyID:  f.customer.ID,
		FormNumber: "RF-2024/0001",
		Lines: []domain.LinePosting{{
			LineID:        f.node.Generate(),
			Label:         "Genie GS-1932 (E1)",
			Start:         testutil.Date(2024, 1, 1),
			End:           testutil.Date(2024, 1, 5),
			SellPerDay:    testutil.Dec("100"),
			CostPerDay:    decimal.Zero,
			TransportSell: testutil.Dec("50"),
			TransportCost: decimal.Zero,
		}},
	}
	if withExternal {
		supplierID, carrierID := f.supplier.ID, f.carrier.ID
		posting.Lines = append(posting.Lines, domain.LinePosting{
			LineID:              f.node.Generate(),
			Label:               "JLG 1930ES (EXT-X1)",
			Start:               testutil.Date(2024, 1, 2),
			End:                 testutil.Date(2024, 1, 3),
			SellPerDay:          testutil.Dec("200"),
			CostPerDay:          testutil.Dec("150"),
			TransportSell:       decimal.Zero,
			TransportCost:       testutil.Dec("80"),
			EquipmentSupplierID: &supplierID,
			TransportSupplierID: &carrierID,
		})
	}
	return posting
}

func assertBalance(t *testing.T, f fixture, id snowflake.ID, want string) {
	t.Helper()
	got := testutil.Balance(t, f.db, id)
	assert.True(t, got.Equal(testutil.Dec(want)), "balance %s, want %s", got.String(), want)
}

func TestBillableDays(t *testing.T) {
	assert.Equal(t, int64(5), domain.BillableDays(testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 5)))
	assert.Equal(t, int64(1), domain.BillableDays(testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 1)))
	assert.Equal(t, int64(1), domain.BillableDays(testutil.Date(2024, 1, 5), testutil.Date(2024, 1, 1)))
	assert.Equal(t, int64(29), domain.BillableDays(testutil.Date(2024, 2, 1), testutil.Date(2024, 2, 29)))
}

func TestSyncRental_PostsReceivableAndCosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rentalID := f.node.Generate()
	posting := f.posting(rentalID, true)

	require.NoError(t, f.svc.SyncRental(ctx, nil, posting))

	// 100*5 + 50 for the owned line, 200*2 for the external one.
	assertBalance(t, f, f.customer.ID, "950")
	assertBalance(t, f, f.supplier.ID, "-300")
	assertBalance(t, f, f.carrier.ID, "-80")

	records, err := f.svc.ListRentalRecords(ctx, rentalID)
	require.NoError(t, err)
	require.Len(t, records, 3)

	kinds := map[domain.RecordKind]domain.ServiceRecord{}
	for _, r := range records {
		kinds[r.Kind] = r
	}
	receivable := kinds[domain.RecordKindRentalReceivable]
	assert.Equal(t, domain.RecordDirectionOutgoing, receivable.Direction)
	assert.Equal(t, "RF-2024/0001", receivable.ReferenceNo)
	assert.True(t, receivable.Date.Equal(testutil.Date(2024, 1, 1)))
	assert.Equal(t, domain.RecordDirectionIncoming, kinds[domain.RecordKindEquipmentCost].Direction)
	assert.Equal(t, f.carrier.ID, kinds[domain.RecordKindTransportCost].CompanyID)

	t.Run("syncing the same posting changes nothing", func(t *testing.T) {
		require.NoError(t, f.svc.SyncRental(ctx, nil, posting))
		assertBalance(t, f, f.customer.ID, "950")
		assertBalance(t, f, f.supplier.ID, "-300")

		again, err := f.svc.ListRentalRecords(ctx, rentalID)
		require.NoError(t, err)
		require.Len(t, again, 3)
		for _, r := range again {
			assert.Equal(t, kinds[r.Kind].ID, r.ID)
		}
	})

	t.Run("dropping the external line removes its cost records", func(t *testing.T) {
		posting.Lines = posting.Lines[:1]
		require.NoError(t, f.svc.SyncRental(ctx, nil, posting))
		assertBalance(t, f, f.customer.ID, "550")
		assertBalance(t, f, f.supplier.ID, "0")
		assertBalance(t, f, f.carrier.ID, "0")

		left, err := f.svc.ListRentalRecords(ctx, rentalID)
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, receivable.ID, left[0].ID)
		assert.True(t, left[0].Amount.Equal(testutil.Dec("550")))
	})

	t.Run("changing the customer moves the receivable", func(t *testing.T) {
		other := testutil.SeedCompany(t, f.db, f.node, "Other Customer", testutil.Customer)
		moved := posting
		moved.CompanyID = other.ID
		require.NoError(t, f.svc.SyncRental(ctx, nil, moved))
		assertBalance(t, f, f.customer.ID, "0")
		assertBalance(t, f, other.ID, "550")

		require.NoError(t, f.svc.SyncRental(ctx, nil, posting))
		assertBalance(t, f, other.ID, "0")
	})

	t.Run("removing the rental reverses everything", func(t *testing.T) {
		require.NoError(t, f.svc.RemoveRental(ctx, nil, rentalID))
		assertBalance(t, f, f.customer.ID, "0")

		left, err := f.svc.ListRentalRecords(ctx, rentalID)
		require.NoError(t, err)
		assert.Empty(t, left)
	})
}

func TestSyncRental_MissingCompanyRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rentalID := f.node.Generate()
	posting := f.posting(rentalID, true)
	ghost := f.node.Generate()
	posting.Lines[1].TransportSupplierID = &ghost

	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f.svc.SyncRental(ctx, tx, posting)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReconciliationFailure)
	assert.ErrorIs(t, err, domain.ErrMissingReference)

	assertBalance(t, f, f.customer.ID, "0")
	assertBalance(t, f, f.supplier.ID, "0")
	records, err := f.svc.ListRentalRecords(ctx, rentalID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSyncShipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shipmentID := f.node.Generate()

	posting := domain.ShipmentPosting{
		ShipmentID:  shipmentID,
		CompanyID:   f.carrier.ID,
		Date:        testutil.Date(2024, 3, 1),
		Amount:      testutil.Dec("1200"),
		Direction:   domain.RecordDirectionIncoming,
		ReferenceNo: "NK-240301",
	}
	recordID, err := f.svc.SyncShipment(ctx, nil, posting)
	require.NoError(t, err)
	assertBalance(t, f, f.carrier.ID, "-1200")

	posting.Amount = testutil.Dec("600")
	again, err := f.svc.SyncShipment(ctx, nil, posting)
	require.NoError(t, err)
	assert.Equal(t, recordID, again)
	assertBalance(t, f, f.carrier.ID, "-600")

	_, err = f.svc.SyncShipment(ctx, nil, domain.ShipmentPosting{ShipmentID: shipmentID, CompanyID: f.carrier.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	require.NoError(t, f.svc.RemoveShipment(ctx, nil, shipmentID))
	assertBalance(t, f, f.carrier.ID, "0")
	require.NoError(t, f.svc.RemoveShipment(ctx, nil, shipmentID))
}

func TestManualRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.svc.CreateRecord(ctx, domain.RecordRequest{
		CompanyID: f.customer.ID,
		Date:      time.Date(2024, 1, 3, 17, 45, 0, 0, time.UTC),
		Amount:    testutil.Dec("300"),
		Direction: domain.RecordDirectionOutgoing,
	})
	require.NoError(t, err)
	assert.True(t, record.Date.Equal(testutil.Date(2024, 1, 3)))
	assertBalance(t, f, f.customer.ID, "300")

	updated, err := f.svc.UpdateRecord(ctx, record.ID, domain.RecordRequest{
		CompanyID: f.customer.ID,
		Date:      testutil.Date(2024, 1, 3),
		Amount:    testutil.Dec("120"),
		Direction: domain.RecordDirectionIncoming,
	})
	require.NoError(t, err)
	assert.Equal(t, record.ID, updated.ID)
	assertBalance(t, f, f.customer.ID, "-120")

	_, err = f.svc.CreateRecord(ctx, domain.RecordRequest{
		CompanyID: f.customer.ID,
		Date:      testutil.Date(2024, 1, 3),
		Amount:    testutil.Dec("-1"),
		Direction: domain.RecordDirectionOutgoing,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	require.NoError(t, f.svc.DeleteRecord(ctx, record.ID))
	assertBalance(t, f, f.customer.ID, "0")
	assert.ErrorIs(t, f.svc.DeleteRecord(ctx, record.ID), domain.ErrRecordNotFound)

	t.Run("rental records are managed by their rental", func(t *testing.T) {
		rentalID := f.node.Generate()
		require.NoError(t, f.svc.SyncRental(ctx, nil, f.posting(rentalID, false)))
		records, err := f.svc.ListRentalRecords(ctx, rentalID)
		require.NoError(t, err)
		require.Len(t, records, 1)

		assert.ErrorIs(t, f.svc.DeleteRecord(ctx, records[0].ID), domain.ErrManagedRecord)
		_, err = f.svc.UpdateRecord(ctx, records[0].ID, domain.RecordRequest{
			CompanyID: f.customer.ID,
			Date:      testutil.Date(2024, 1, 1),
			Amount:    testutil.Dec("1"),
			Direction: domain.RecordDirectionOutgoing,
		})
		assert.ErrorIs(t, err, domain.ErrManagedRecord)
	})
}
