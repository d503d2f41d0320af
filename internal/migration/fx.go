package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/config"
	"github.com/smallbiznis/equiprent/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, cfg config.Config, log *zap.Logger) error {
		if err := Migrate(conn, cfg.DBType); err != nil {
			return err
		}
		if err := seed.EnsureCashAccounts(conn, node); err != nil {
			return err
		}
		log.Info("schema up to date", zap.String("type", cfg.DBType))
		return nil
	}),
)
