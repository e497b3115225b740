package auctioneer

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("auctioneer",
	fx.Provide(New),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, a *Auctioneer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				a.RunForever(ctx)
			}()

			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					cancel()
					select {
					case <-done:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				},
			})
			return nil
		},
	})
}
