package syncer

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("syncer",
	fx.Provide(
		NewEngine,
		NewListener,
	),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, log *zap.Logger, engine *Engine, listener *Listener) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := listener.Start(ctx); err != nil {
				return err
			}
			// Startup pass drains whatever a previous process left behind.
			go func() {
				if err := engine.SyncNow(context.Background()); err != nil {
					log.Named("syncer").Warn("startup sync failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: listener.Stop,
	})
}
