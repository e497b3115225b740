package auction

import (
	"github.com/smallbiznis/gavel/internal/auction/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("auction.repository",
	fx.Provide(repository.Provide),
)
