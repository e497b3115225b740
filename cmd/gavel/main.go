package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/gavel/internal/arbiter"
	"github.com/smallbiznis/gavel/internal/attendance"
	"github.com/smallbiznis/gavel/internal/auction"
	"github.com/smallbiznis/gavel/internal/auctioneer"
	"github.com/smallbiznis/gavel/internal/bidledger"
	"github.com/smallbiznis/gavel/internal/clock"
	"github.com/smallbiznis/gavel/internal/config"
	"github.com/smallbiznis/gavel/internal/highbid"
	"github.com/smallbiznis/gavel/internal/identity"
	"github.com/smallbiznis/gavel/internal/logger"
	"github.com/smallbiznis/gavel/internal/migration"
	"github.com/smallbiznis/gavel/internal/notifier"
	"github.com/smallbiznis/gavel/internal/ownership"
	"github.com/smallbiznis/gavel/internal/server"
	"github.com/smallbiznis/gavel/internal/stats"
	"github.com/smallbiznis/gavel/pkg/db"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// auction domains
		auction.Module,
		identity.Module,
		highbid.Module,
		bidledger.Module,
		attendance.Module,
		ownership.Module,

		// bid path
		notifier.Module,
		stats.Module,
		arbiter.Module,
		auctioneer.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.NodeNumber)
	if err != nil {
		panic(err)
	}
	return node
}
