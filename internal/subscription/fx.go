package subscription

import (
	"github.com/sparkmatch/sparkmatch/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(service.NewService),
)
