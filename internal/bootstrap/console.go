package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"selector-healer/internal/console"
	"selector-healer/internal/ports"
)

func runConsole(lc fx.Lifecycle, consoleInterface *console.Interface, driver ports.Driver, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting selector-healer console")

			if err := driver.Launch(ctx); err != nil {
				logger.Error("failed to launch driver", zap.Error(err))

				return err
			}

			go func() {
				if err := consoleInterface.Start(); err != nil {
					logger.Error("console interface error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down selector-healer")

			if err := consoleInterface.Stop(); err != nil {
				logger.Error("failed to stop console", zap.Error(err))
			}

			if err := driver.Close(ctx); err != nil {
				logger.Error("failed to close driver", zap.Error(err))
			}

			return nil
		},
	})
}
