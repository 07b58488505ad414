package cache

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient 根据配置创建 Redis 客户端。
// 地址未配置或连接失败时返回 nil 而不是错误，由上层决定是否降级到内存实现。
func NewRedisClient(ctx context.Context, addr, password, dbStr string) *redis.Client {
	if addr == "" {
		log.Println("REDIS_ADDR 未配置，计数与缓存将使用内存存储")
		return nil
	}

	dbIndex, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Printf("无效的 REDIS_DB 值 %q: %v，将使用内存存储", dbStr, err)
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("连接 Redis (%s, DB %d) 失败: %v，将使用内存存储", addr, dbIndex, err)
		client.Close()
		return nil
	}

	log.Printf("已连接 Redis (%s, DB %d)", addr, dbIndex)
	return client
}

// redisStore 是 Store 的 Redis 实现。
type redisStore struct {
	client *redis.Client
}

// NewRedisStore 通过依赖注入接收 Redis 客户端。
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

func (s *redisStore) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.client.IncrBy(ctx, key, delta).Result()
}

func (s *redisStore) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.client.DecrBy(ctx, key, delta).Result()
}

func (s *redisStore) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, expiration).Result()
}

// Scan 使用 SCAN 游标遍历匹配的键，避免 KEYS 阻塞。
func (s *redisStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
