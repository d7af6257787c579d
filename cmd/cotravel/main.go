package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/cotravel/cotravel/internal/auth"
	"github.com/cotravel/cotravel/internal/cart"
	"github.com/cotravel/cotravel/internal/catalog"
	"github.com/cotravel/cotravel/internal/clock"
	"github.com/cotravel/cotravel/internal/config"
	"github.com/cotravel/cotravel/internal/invoice"
	"github.com/cotravel/cotravel/internal/ledger"
	"github.com/cotravel/cotravel/internal/migration"
	"github.com/cotravel/cotravel/internal/observability"
	"github.com/cotravel/cotravel/internal/ratelimit"
	"github.com/cotravel/cotravel/internal/server"
	"github.com/cotravel/cotravel/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		clock.Module,
		db.Module,
		migration.Module,

		ledger.Module,
		invoice.Module,
		catalog.Module,
		cart.Module,
		auth.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
