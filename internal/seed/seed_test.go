package seed_test

import (
	"testing"

	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	"github.com/smallbiznis/equiprent/internal/seed"
	"github.com/smallbiznis/equiprent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCashAccountsIsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)

	require.NoError(t, seed.EnsureCashAccounts(db, node))
	require.NoError(t, db.Model(&ledgerdomain.CashAccount{}).
		Where("name = ?", "Cash").
		Update("balance", testutil.Dec("125.50")).Error)
	require.NoError(t, seed.EnsureCashAccounts(db, node))

	var accounts []ledgerdomain.CashAccount
	require.NoError(t, db.Order("name").Find(&accounts).Error)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Bank", accounts[0].Name)
	assert.Equal(t, ledgerdomain.CashAccountKindBank, accounts[0].Kind)
	assert.Equal(t, "Cash", accounts[1].Name)
	assert.True(t, accounts[1].Balance.Equal(testutil.Dec("125.50")))
	assert.Equal(t, "TRY", accounts[1].Currency)
}

func TestEnsureCashAccountsRequiresHandles(t *testing.T) {
	assert.Error(t, seed.EnsureCashAccounts(nil, testutil.Node(t)))
	assert.Error(t, seed.EnsureCashAccounts(testutil.OpenDB(t), nil))
}
