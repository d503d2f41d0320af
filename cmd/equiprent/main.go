package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/equiprent/internal/clock"
	"github.com/smallbiznis/equiprent/internal/company"
	"github.com/smallbiznis/equiprent/internal/config"
	"github.com/smallbiznis/equiprent/internal/equipment"
	"github.com/smallbiznis/equiprent/internal/exchangerate"
	"github.com/smallbiznis/equiprent/internal/ledger"
	"github.com/smallbiznis/equiprent/internal/migration"
	"github.com/smallbiznis/equiprent/internal/observability"
	"github.com/smallbiznis/equiprent/internal/rental"
	"github.com/smallbiznis/equiprent/internal/scheduler"
	"github.com/smallbiznis/equiprent/internal/shipment"
	"github.com/smallbiznis/equiprent/internal/statement"
	"github.com/smallbiznis/equiprent/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		exchangerate.Module,

		// Functional Domains
		company.Module,
		equipment.Module,
		ledger.Module,
		rental.Module,
		shipment.Module,
		statement.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
