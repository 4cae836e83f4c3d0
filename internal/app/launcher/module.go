package launcher

import (
	"go.uber.org/fx"

	"phile/internal/app/capability"
	"phile/internal/config/logger"
)

// Module provides the launcher supervisor for dependency injection
var Module = fx.Module("launcher",
	fx.Provide(func(caps *capability.Registry, log logger.Logger) *Supervisor {
		return NewSupervisor(caps, log)
	}),
)
