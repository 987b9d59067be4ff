package checkout

import (
	"go.uber.org/fx"
)

var Module = fx.Module("checkout",
	fx.Provide(
		NewLocker,
		NewService,
	),
)
