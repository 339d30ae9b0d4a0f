package cache

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/redis/go-redis/v9"
)

// RedisConfig redis.*
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

// LoadRedisConfig 读取 redis.*，address 为空表示未启用
func LoadRedisConfig(ctx context.Context) *RedisConfig {
	return &RedisConfig{
		Address:      g.Cfg().MustGet(ctx, "redis.address", "").String(),
		Password:     g.Cfg().MustGet(ctx, "redis.password", "").String(),
		DB:           g.Cfg().MustGet(ctx, "redis.db", 0).Int(),
		MaxRetries:   g.Cfg().MustGet(ctx, "redis.maxRetries", 3).Int(),
		PoolSize:     g.Cfg().MustGet(ctx, "redis.poolSize", 10).Int(),
		MinIdleConns: g.Cfg().MustGet(ctx, "redis.minIdleConns", 2).Int(),
	}
}

// NewRedisClient 创建客户端并 Ping
func NewRedisClient(ctx context.Context, conf *RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         conf.Address,
		Password:     conf.Password,
		DB:           conf.DB,
		MaxRetries:   conf.MaxRetries,
		PoolSize:     conf.PoolSize,
		MinIdleConns: conf.MinIdleConns,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		g.Log().Errorf(ctx, "Redis connection failed: %v", err)
		_ = rdb.Close()
		return nil, err
	}
	g.Log().Infof(ctx, "Redis initialized successfully: %s, DB: %d", conf.Address, conf.DB)
	return rdb, nil
}
