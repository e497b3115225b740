package attendance

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/gavel/internal/attendance/repository"
	"github.com/smallbiznis/gavel/internal/attendance/service"
)

var Module = fx.Module("attendance",
	fx.Provide(
		repository.Provide,
		service.Provide,
	),
)
