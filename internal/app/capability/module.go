package capability

import (
	"go.uber.org/fx"
)

// Module provides the capability registry for dependency injection
var Module = fx.Module("capability",
	fx.Provide(NewRegistry),
)
