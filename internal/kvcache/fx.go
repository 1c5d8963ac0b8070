package kvcache

import (
	"github.com/redis/go-redis/v9"
	"github.com/sparkmatch/sparkmatch/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewStore(cfg config.Config, log *zap.Logger) Store {
	if !cfg.Redis.Enabled {
		return NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info("fallback cache using redis", zap.String("addr", cfg.Redis.Addr))
	return NewRedisStore(client, cfg.AppName+":")
}

var Module = fx.Module("kvcache",
	fx.Provide(NewStore),
)
