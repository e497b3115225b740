package stats

import (
	"context"

	"go.uber.org/fx"
)

func registerHooks(lc fx.Lifecycle, r *Recorder) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return r.Stop(ctx)
		},
	})
}

var Module = fx.Module("stats",
	fx.Provide(
		NewRegistry,
		NewMetrics,
		NewRecorder,
	),
	fx.Invoke(registerHooks),
)
