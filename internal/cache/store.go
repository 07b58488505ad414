package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss 表示键不存在或已过期。
var ErrCacheMiss = errors.New("cache: key not found")

// Store 抽象了计数缓冲、查询缓存与浏览去重共用的临时存储。
// 所有实现都不提供持久化保证：数据丢失只会导致少计数或缓存未命中，
// 不会破坏数据库中的统计记录。
type Store interface {
	// Get 读取键的字符串值，键不存在时返回 ErrCacheMiss。
	Get(ctx context.Context, key string) (string, error)
	// Set 写入键值并设置过期时间，expiration 为 0 时永不过期。
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	// Delete 删除一个或多个键，键不存在不视为错误。
	Delete(ctx context.Context, keys ...string) error
	// IncrBy 原子地将键的整数值增加 delta，键不存在时从 0 开始。
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	// DecrBy 原子地将键的整数值减少 delta。
	DecrBy(ctx context.Context, key string, delta int64) (int64, error)
	// SetNX 仅在键不存在时写入，返回是否写入成功。检查与写入是单个原子操作。
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)
	// Scan 返回匹配 pattern 的全部键。
	Scan(ctx context.Context, pattern string) ([]string, error)
}
