package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/apholdings/blogapi/internal/cache"
)

const queryCacheKeyPrefix = counterKeyNamespace + "query:"

const defaultQueryCacheTTL = 5 * time.Minute

// CachedResultSet 是一次参数化查询的缓存结果。
// 只缓存实体 ID 与总数，属性数据在每次返回时重新从数据库读取，
// 避免把过期的反范式数据直接回给调用方。
type CachedResultSet struct {
	IDs        []string  `json:"ids"`
	Total      int64     `json:"total"`
	CapturedAt time.Time `json:"capturedAt"`
}

// QueryCache 以完整参数签名为键缓存列表与详情查询的结果集。
// 条目写入后不可变，TTL 到期前同签名的写入直接覆盖；不做主动失效。
type QueryCache struct {
	store cache.Store
	ttl   time.Duration
}

// NewQueryCache 创建 QueryCache，ttl 不合法时回退到 5 分钟。
func NewQueryCache(store cache.Store, ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = defaultQueryCacheTTL
	}
	return &QueryCache{store: store, ttl: ttl}
}

// Lookup 查找签名对应的缓存条目。
// 存储异常按未命中处理并记日志：冷缓存加故障的存储仍然要能返回正确内容。
func (c *QueryCache) Lookup(ctx context.Context, signature string) (*CachedResultSet, bool) {
	raw, err := c.store.Get(ctx, queryCacheKeyPrefix+signature)
	if err != nil {
		if err != cache.ErrCacheMiss {
			log.Printf("query cache lookup %q failed: %v", signature, err)
		}
		return nil, false
	}

	var set CachedResultSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		log.Printf("query cache entry %q is corrupt: %v", signature, err)
		return nil, false
	}
	return &set, true
}

// Store 写入签名到结果集的映射，失败只记日志。
func (c *QueryCache) Store(ctx context.Context, signature string, set CachedResultSet) {
	if set.CapturedAt.IsZero() {
		set.CapturedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(set)
	if err != nil {
		log.Printf("query cache marshal %q failed: %v", signature, err)
		return
	}
	if err := c.store.Set(ctx, queryCacheKeyPrefix+signature, string(payload), c.ttl); err != nil {
		log.Printf("query cache store %q failed: %v", signature, err)
	}
}

// PostListSignature 把文章列表查询的全部参数规范化为缓存签名。
func PostListSignature(filter PostFilter) string {
	return fmt.Sprintf("post_list:%s:%s:%s:%s:%d",
		filter.Search, filter.Sorting, filter.Ordering,
		strings.Join(filter.Categories, ","), filter.Page)
}

// PostDetailSignature 构建文章详情查询的缓存签名。
func PostDetailSignature(slug string) string {
	return "post_detail:" + slug
}

// CategoryListSignature 把分类列表查询的全部参数规范化为缓存签名。
func CategoryListSignature(filter CategoryFilter) string {
	return fmt.Sprintf("category_list:%s:%s:%s:%s:%d",
		filter.ParentSlug, filter.Search, filter.Sorting, filter.Ordering, filter.Page)
}

// CategoryPostsSignature 构建分类下文章列表的缓存签名。
func CategoryPostsSignature(slug string, page int) string {
	return fmt.Sprintf("category_posts:%s:%d", slug, page)
}
