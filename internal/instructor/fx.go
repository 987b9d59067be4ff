package instructor

import (
	"github.com/edmarket/coursepay/internal/instructor/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("instructor",
	fx.Provide(repository.Provide),
)
