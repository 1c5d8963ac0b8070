package pending

import (
	"github.com/sparkmatch/sparkmatch/internal/pending/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pending.service",
	fx.Provide(service.NewService),
)
