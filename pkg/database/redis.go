package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConnection definition redis, sentinel mode when MasterName is set
type RedisConnection struct {
	Addr          string
	MasterName    string
	SentinelAddrs []string
	DB            int

	RetryCount    int
	RetryInterval time.Duration
}

// RedisRepository 定义接口
type RedisRepository[T any] interface {
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

type redisRepository[T any] struct {
	client *redis.Client
}

// NewRedisClient connect to redis directly or through sentinel
func NewRedisClient(ctx context.Context, r RedisConnection) (*redis.Client, error) {
	var rdb *redis.Client
	if r.MasterName != "" {
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    r.MasterName,    // 哨兵主节点名称
			SentinelAddrs: r.SentinelAddrs, // 哨兵地址列表
			DB:            r.DB,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr: r.Addr,
			DB:   r.DB,
		})
	}

	err := WithRetry(ctx, Connection{
		ConnectStr:    r.Addr,
		RetryCount:    r.RetryCount,
		RetryInterval: r.RetryInterval,
	}, "redis", func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// NewRedisRepository wrap client as a JSON valued repository
func NewRedisRepository[T any](client *redis.Client) RedisRepository[T] {
	return &redisRepository[T]{client: client}
}

func (r *redisRepository[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisRepository[T]) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}
