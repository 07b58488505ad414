package cache

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"
)

// memoryItem 单个缓存项。
type memoryItem struct {
	value     string
	expiresAt time.Time
	hasExpiry bool
}

func (item *memoryItem) expired(now time.Time) bool {
	return item.hasExpiry && now.After(item.expiresAt)
}

// MemoryStore 是 Store 的进程内实现，用于 Redis 不可用时的降级与测试。
// 数值操作与 SetNX 在互斥锁内完成，语义与 Redis 对应命令保持一致。
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]*memoryItem
	ticker *time.Ticker
	done   chan struct{}
}

// NewMemoryStore 创建内存存储并启动过期清理协程。
// 调用方在不再使用时应调用 Stop 结束清理协程。
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		items:  make(map[string]*memoryItem),
		ticker: time.NewTicker(time.Minute),
		done:   make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, item := range s.items {
				if item.expired(now) {
					delete(s.items, key)
				}
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// Stop 停止清理协程。
func (s *MemoryStore) Stop() {
	s.ticker.Stop()
	close(s.done)
}

// live 返回键对应的未过期缓存项，过期项顺手删除。调用方必须持有锁。
func (s *MemoryStore) live(key string) *memoryItem {
	item, ok := s.items[key]
	if !ok {
		return nil
	}
	if item.expired(time.Now()) {
		delete(s.items, key)
		return nil
	}
	return item
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.live(key)
	if item == nil {
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = newItem(value, expiration)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.addInt(key, delta)
}

func (s *MemoryStore) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.addInt(key, -delta)
}

func (s *MemoryStore) addInt(key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	item := s.live(key)
	if item != nil {
		parsed, err := strconv.ParseInt(item.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache: value at %s is not an integer: %w", key, err)
		}
		current = parsed
	}

	current += delta
	if item != nil {
		item.value = strconv.FormatInt(current, 10)
	} else {
		s.items[key] = newItem(strconv.FormatInt(current, 10), 0)
	}
	return current, nil
}

func (s *MemoryStore) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(key) != nil {
		return false, nil
	}
	s.items[key] = newItem(value, expiration)
	return true, nil
}

// Scan 按 Redis 通配模式匹配键，仅支持 path.Match 能表达的 * ? [] 语法。
func (s *MemoryStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var keys []string
	for key, item := range s.items {
		if item.expired(now) {
			delete(s.items, key)
			continue
		}
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func newItem(value string, expiration time.Duration) *memoryItem {
	item := &memoryItem{value: value, hasExpiry: expiration > 0}
	if expiration > 0 {
		item.expiresAt = time.Now().Add(expiration)
	}
	return item
}
