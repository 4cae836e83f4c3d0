package bridge

import (
	"os"

	"go.uber.org/fx"

	"phile/internal/config/logger"
)

// Module provides a stdin-backed bridge for dependency injection
var Module = fx.Module("bridge",
	fx.Provide(func(log logger.Logger) *Bridge {
		return New(os.Stdin, log)
	}),
)
