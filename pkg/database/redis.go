package database

import (
	"context"
	"fmt"
	"time"

	"dailyforge/configs"
	"dailyforge/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func ConnectRedis(ctx context.Context, cfg configs.Config) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPass,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorLogger.Error("Redis connection error", zap.Error(err), zap.String("addr", addr))
		client.Close()
		return nil, err
	}
	return client, nil
}
