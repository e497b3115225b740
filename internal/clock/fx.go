package clock

import (
	"context"

	"github.com/smallbiznis/gavel/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func provide(cfg config.Config, db *gorm.DB, log *zap.Logger) (Clock, error) {
	return NewSimClock(context.Background(), db, log.Named("clock"), cfg.Auction.SimulatedStart)
}

// Module wires the simulated clock elected against the shared offset row.
var Module = fx.Module("clock",
	fx.Provide(provide),
)
