package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/clock"
	companydomain "github.com/smallbiznis/equiprent/internal/company/domain"
	companyrepo "github.com/smallbiznis/equiprent/internal/company/repository"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/equiprent/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/equiprent/internal/ledger/service"
	"github.com/smallbiznis/equiprent/internal/statement/domain"
	"github.com/smallbiznis/equiprent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	ledger   ledgerdomain.Service
	svc      domain.Service
	customer companydomain.Company
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	return fixture{
		db:   db,
		node: node,
		ledger: ledgerservice.New(ledgerservice.Params{
			DB:          db,
			Log:         zap.NewNop(),
			GenID:       node,
			Clock:       clk,
			Repo:        ledgerrepo.Provide(),
			CompanyRepo: companyrepo.Provide(),
		}),
		svc: New(Params{
			DB:          db,
			Log:         zap.NewNop(),
			LedgerRepo:  ledgerrepo.Provide(),
			CompanyRepo: companyrepo.Provide(),
		}),
		customer: testutil.SeedCompany(t, db, node, "Acme Construction", testutil.Customer),
	}
}

// seed posts two charges on the same day, an earlier charge, a credit
// note and a collection, leaving the customer 400 in debt.
func (f fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	record := func(day int, amount string, dir ledgerdomain.RecordDirection, ref string) {
		_, err := f.ledger.CreateRecord(ctx, ledgerdomain.RecordRequest{
			CompanyID:   f.customer.ID,
			Date:        testutil.Date(2024, 1, day),
			Amount:      testutil.Dec(amount),
			Direction:   dir,
			ReferenceNo: ref,
		})
		require.NoError(t, err)
	}
	record(10, "1000", ledgerdomain.RecordDirectionOutgoing, "PF-2024/1")
	record(5, "200", ledgerdomain.RecordDirectionOutgoing, "NK-240105")
	record(10, "100", ledgerdomain.RecordDirectionIncoming, "CN-1")

	_, err := f.ledger.ApplyCashMovement(ctx, ledgerdomain.CashMovementRequest{
		CompanyID:   f.customer.ID,
		Date:        testutil.Date(2024, 1, 12),
		Amount:      testutil.Dec("700"),
		Direction:   ledgerdomain.PaymentDirectionCollection,
		Description: "Bank transfer",
	})
	require.NoError(t, err)
}

func TestBuild_RunningBalance(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	stmt, err := f.svc.Build(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Construction", stmt.CompanyName)
	require.Len(t, stmt.Rows, 4)

	want := []struct {
		ref     string
		typ     domain.EntryType
		debit   string
		credit  string
		running string
	}{
		{"NK-240105", domain.EntryTypeRecord, "200", "0", "200"},
		{"PF-2024/1", domain.EntryTypeRecord, "1000", "0", "1200"},
		{"CN-1", domain.EntryTypeRecord, "0", "100", "1100"},
		{"", domain.EntryTypePayment, "0", "700", "400"},
	}
	for i, w := range want {
		row := stmt.Rows[i]
		assert.Equal(t, w.ref, row.ReferenceNo, "row %d", i)
		assert.Equal(t, w.typ, row.Type, "row %d", i)
		assert.True(t, row.Debit.Equal(testutil.Dec(w.debit)), "row %d debit %s", i, row.Debit)
		assert.True(t, row.Credit.Equal(testutil.Dec(w.credit)), "row %d credit %s", i, row.Credit)
		assert.True(t, row.RunningBalance.Equal(testutil.Dec(w.running)), "row %d running %s", i, row.RunningBalance)
	}
	assert.Equal(t, "Service record (outgoing)", stmt.Rows[0].Description)
	assert.Equal(t, "Bank transfer", stmt.Rows[3].Description)

	assert.True(t, stmt.TotalDebit.Equal(testutil.Dec("1200")))
	assert.True(t, stmt.TotalCredit.Equal(testutil.Dec("800")))
	assert.True(t, stmt.FinalBalance.Equal(testutil.Dec("400")))
	assert.Equal(t, companydomain.BalanceDebtor, stmt.Status)
	assert.True(t, stmt.Reconciled())
}

func TestBuild_FlagsDriftFromCachedBalance(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	require.NoError(t, f.db.Model(&companydomain.Company{}).
		Where("id = ?", f.customer.ID).
		Update("balance", testutil.Dec("999")).Error)

	stmt, err := f.svc.Build(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.True(t, stmt.FinalBalance.Equal(testutil.Dec("400")))
	assert.False(t, stmt.Reconciled())
}

func TestBuild_EmptyAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stmt, err := f.svc.Build(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, stmt.Rows)
	assert.True(t, stmt.FinalBalance.IsZero())
	assert.Equal(t, companydomain.BalanceSettled, stmt.Status)

	_, err = f.svc.Build(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)
	_, err = f.svc.Build(ctx, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportXLSX(context.Background(), f.customer.ID, &buf))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	sheet := book.GetSheetName(book.GetActiveSheetIndex())

	cell := func(name string) string {
		v, err := book.GetCellValue(sheet, name)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Acme Construction", cell("A1"))
	assert.Equal(t, "Date", cell("A3"))
	assert.Equal(t, "Balance", cell("F3"))
	assert.Equal(t, "2024-01-05", cell("A4"))
	assert.Equal(t, "200", cell("D4"))
	assert.Equal(t, "400", cell("F7"))
	assert.Equal(t, "Total", cell("C8"))
	assert.Equal(t, "1200", cell("D8"))
	assert.Equal(t, "800", cell("E8"))
	assert.Equal(t, "debtor", cell("F9"))
}
