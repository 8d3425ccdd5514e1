package repo

import (
	"context"

	"tabletop-service/internal/config"
	"tabletop-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

func InitRedis() {
	conf := config.GlobalConfig.Redis
	RDB = redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	if _, err := RDB.Ping(context.Background()).Result(); err != nil {
		logger.Log.Fatal("Failed to connect to Redis",
			zap.String("addr", conf.Addr),
			zap.Error(err),
		)
	}
	logger.Log.Info("Redis connected", zap.String("addr", conf.Addr))
}
