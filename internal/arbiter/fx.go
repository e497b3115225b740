package arbiter

import "go.uber.org/fx"

var Module = fx.Module("arbiter",
	fx.Provide(New),
)
