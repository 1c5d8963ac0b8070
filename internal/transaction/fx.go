package transaction

import (
	"github.com/sparkmatch/sparkmatch/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.service",
	fx.Provide(service.NewService),
)
