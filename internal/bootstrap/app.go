package bootstrap

import (
	"time"

	"go.uber.org/fx"

	"selector-healer/internal/action"
	"selector-healer/internal/config"
	"selector-healer/internal/console"
	"selector-healer/internal/driver"
	"selector-healer/internal/healer"
	"selector-healer/internal/ports"
	"selector-healer/internal/retry"
)

func loadConfig() (*config.Config, error) {
	return config.GetConfig()
}

func retryConfig(cfg *config.Config) *config.RetryConfig {
	return cfg.Retry
}

func NewApp() *fx.App {
	return fx.New(
		fx.Provide(
			loadConfig,
			retryConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(driver.NewManager, fx.As(new(ports.Driver))),

			healer.New,
			retry.New,
			action.New,

			console.NewInterface,
		),

		fx.Invoke(
			runConsole,
		),

		fx.StartTimeout(10*time.Second),
	)
}
