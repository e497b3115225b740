package identity

import (
	"github.com/smallbiznis/gavel/internal/identity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.repository",
	fx.Provide(repository.Provide),
)
