package bidledger

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/gavel/internal/bidledger/repository"
	"github.com/smallbiznis/gavel/internal/bidledger/service"
)

var Module = fx.Module("bidledger",
	fx.Provide(
		repository.Provide,
		service.Provide,
	),
)
