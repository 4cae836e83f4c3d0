package console

import (
	"os"

	"go.uber.org/fx"

	"phile/internal/app/bridge"
	"phile/internal/app/launcher"
	"phile/internal/config"
	"phile/internal/config/logger"
)

// Module provides the console for dependency injection
var Module = fx.Module("console",
	fx.Provide(func(sup *launcher.Supervisor, b *bridge.Bridge, cfg *config.Config, log logger.Logger) *Console {
		return New(sup, b.Lines(), os.Stdout, cfg, log)
	}),
)
