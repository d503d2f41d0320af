package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/equiprent/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultCurrency = "TRY"

type cashAccount struct {
	Name string
	Kind ledgerdomain.CashAccountKind
}

var defaultCashAccounts = []cashAccount{
	{"Cash", ledgerdomain.CashAccountKindCash},
	{"Bank", ledgerdomain.CashAccountKindBank},
}

// EnsureCashAccounts creates the default cash register and bank account
// with zero balances. Existing accounts are left untouched.
func EnsureCashAccounts(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, a := range defaultCashAccounts {
			account := ledgerdomain.CashAccount{
				ID:        node.Generate(),
				Name:      a.Name,
				Kind:      a.Kind,
				Currency:  defaultCurrency,
				Balance:   decimal.Zero,
				CreatedAt: now,
				UpdatedAt: now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&account).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
