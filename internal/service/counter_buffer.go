package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/apholdings/blogapi/internal/cache"
)

// 计数缓冲使用的键命名空间
const (
	counterKeyNamespace  = "blogapi:"
	impressionKeyPrefix  = counterKeyNamespace + "impressions:"
	impressionKeyPattern = impressionKeyPrefix + "*"
)

// PendingCounter 表示一个等待落库的累积增量。
type PendingCounter struct {
	Key        string
	EntityType string
	EntityID   string
	Delta      int64
}

// CounterBuffer 把高频的展示计数吸收进临时存储，避免每次展示都写数据库。
// 存储中的数据丢失只会导致少计数，不影响数据库中的统计记录。
type CounterBuffer struct {
	store cache.Store
}

// NewCounterBuffer 创建 CounterBuffer 实例。
func NewCounterBuffer(store cache.Store) *CounterBuffer {
	return &CounterBuffer{store: store}
}

// AddImpression 原子地累加一个实体的待同步展示数，返回累加后的值。
func (b *CounterBuffer) AddImpression(ctx context.Context, entityType, entityID string, delta int64) (int64, error) {
	return b.store.IncrBy(ctx, impressionKey(entityType, entityID), delta)
}

// BufferImpressions 为一批实体各记一次展示。
// 统计相对内容投递是尽力而为的：单个键的失败只记日志，绝不打断读路径。
func (b *CounterBuffer) BufferImpressions(ctx context.Context, entityType string, entityIDs []string) {
	for _, id := range entityIDs {
		if _, err := b.AddImpression(ctx, entityType, id, 1); err != nil {
			log.Printf("buffer impression for %s %s failed: %v", entityType, id, err)
		}
	}
}

// Pending 枚举所有待同步的展示计数。
func (b *CounterBuffer) Pending(ctx context.Context) ([]PendingCounter, error) {
	keys, err := b.store.Scan(ctx, impressionKeyPattern)
	if err != nil {
		return nil, fmt.Errorf("scan pending impressions: %w", err)
	}

	pending := make([]PendingCounter, 0, len(keys))
	for _, key := range keys {
		entityType, entityID, ok := parseImpressionKey(key)
		if !ok {
			log.Printf("skip malformed impression key %q", key)
			continue
		}

		raw, err := b.store.Get(ctx, key)
		if err != nil {
			// 键可能已被并发的一次同步取走
			if err == cache.ErrCacheMiss {
				continue
			}
			return nil, fmt.Errorf("read pending impressions at %s: %w", key, err)
		}

		delta, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("skip non-numeric impression value at %q: %v", key, err)
			continue
		}
		if delta <= 0 {
			// 已被同步清零的残留键
			if err := b.store.Delete(ctx, key); err != nil {
				log.Printf("delete drained impression key %q failed: %v", key, err)
			}
			continue
		}

		pending = append(pending, PendingCounter{
			Key:        key,
			EntityType: entityType,
			EntityID:   entityID,
			Delta:      delta,
		})
	}
	return pending, nil
}

// Settle 在落库成功后扣除已同步的增量。
// 用减法而不是删除，让枚举之后到达的增量留到下一轮同步；
// 仅在余额恰好为零时删除键。DecrBy 与 Delete 之间仍有一个
// 并发增量可能被清掉的窄窗口，展示计数允许为此少计。
// 负数余额不在这里处理，留给下一轮 Pending 清理。
func (b *CounterBuffer) Settle(ctx context.Context, pc PendingCounter) error {
	remaining, err := b.store.DecrBy(ctx, pc.Key, pc.Delta)
	if err != nil {
		return fmt.Errorf("settle %s: %w", pc.Key, err)
	}
	if remaining == 0 {
		if err := b.store.Delete(ctx, pc.Key); err != nil {
			return fmt.Errorf("delete settled key %s: %w", pc.Key, err)
		}
	}
	return nil
}

func impressionKey(entityType, entityID string) string {
	return impressionKeyPrefix + entityType + ":" + entityID
}

func parseImpressionKey(key string) (entityType, entityID string, ok bool) {
	rest, found := strings.CutPrefix(key, impressionKeyPrefix)
	if !found {
		return "", "", false
	}
	entityType, entityID, found = strings.Cut(rest, ":")
	if !found || entityType == "" || entityID == "" {
		return "", "", false
	}
	return entityType, entityID, true
}
