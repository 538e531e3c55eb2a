package data

import (
	"context"
	"fmt"
	"time"

	"restroom/internal/conf"
	pkgredis "restroom/internal/pkg/redis"

	"github.com/go-kratos/kratos/v2/log"
	redis "github.com/redis/go-redis/v9"
)

// NewRedisCache creates a new Redis cache from configuration.
func NewRedisCache(c *conf.Data, logger log.Logger) (pkgredis.Cache, func(), error) {
	helper := log.NewHelper(logger)

	opts := &redis.Options{
		Addr:    c.Redis.Addr,
		Network: c.Redis.Network,
	}
	if c.Redis.ReadTimeoutSeconds > 0 {
		opts.ReadTimeout = time.Duration(c.Redis.ReadTimeoutSeconds) * time.Second
	}
	if c.Redis.WriteTimeoutSeconds > 0 {
		opts.WriteTimeout = time.Duration(c.Redis.WriteTimeoutSeconds) * time.Second
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		helper.Errorf("failed to connect to Redis at %s: %v", c.Redis.Addr, err)
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	helper.Infof("connected to Redis at %s", c.Redis.Addr)

	cache := NewRedisWrapper(client)
	cleanup := func() {
		helper.Info("closing Redis connection")
		client.Close()
	}

	return cache, cleanup, nil
}

// RedisWrapper wraps redis.Client to implement pkgredis.Cache interface.
type RedisWrapper struct {
	client *redis.Client
}

// NewRedisWrapper creates a new RedisWrapper.
func NewRedisWrapper(client *redis.Client) *RedisWrapper {
	return &RedisWrapper{client: client}
}

func (r *RedisWrapper) SetString(ctx context.Context, key, value string, exp time.Duration) error {
	return r.client.Set(ctx, key, value, exp).Err()
}

func (r *RedisWrapper) GetString(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisWrapper) ScriptRun(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	conn := r.client.Conn()
	defer conn.Close()
	return script.Run(ctx, conn, keys, args...).Result()
}

func (r *RedisWrapper) Del(ctx context.Context, keys ...string) (int64, error) {
	return r.client.Del(ctx, keys...).Result()
}
