package remote

import (
	"time"

	"github.com/sparkmatch/sparkmatch/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAuthority(cfg config.Config, log *zap.Logger) Authority {
	return NewHTTPClient(cfg.Remote.BaseURL, time.Duration(cfg.Remote.TimeoutSeconds)*time.Second, log)
}

var Module = fx.Module("remote",
	fx.Provide(NewAuthority),
)
