package config

import (
	"github.com/sparkmatch/sparkmatch/pkg/db"
	"go.uber.org/fx"
)

func provideDBConfig(cfg Config) db.Config {
	return cfg.DB
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(provideDBConfig),
)
