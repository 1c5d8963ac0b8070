package payment

import (
	"github.com/sparkmatch/sparkmatch/internal/payment/gateway"
	"github.com/sparkmatch/sparkmatch/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		gateway.NewAdapter,
		service.NewService,
	),
)
