package app

import (
	"go.uber.org/fx"

	"phile/internal/app/bridge"
	"phile/internal/app/capability"
	"phile/internal/app/console"
	"phile/internal/app/launcher"
	"phile/internal/config/logger"
)

var Module = fx.Options(
	logger.Module,
	capability.Module,
	launcher.Module,
	bridge.Module,
	console.Module,
	fx.Provide(NewApp),
	fx.Invoke(Register),
)
