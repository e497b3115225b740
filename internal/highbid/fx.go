package highbid

import (
	"github.com/smallbiznis/gavel/internal/highbid/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("highbid.repository",
	fx.Provide(repository.Provide),
)
