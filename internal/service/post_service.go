package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apholdings/blogapi/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrNoPostsFound     = errors.New("no posts found")
	ErrCategoryNotFound = errors.New("category not found")
)

// 列表支持的排序方式
const (
	SortNewest          = "newest"
	SortRecentlyUpdated = "recently_updated"
	SortMostViewed      = "most_viewed"

	OrderAZ = "az"
	OrderZA = "za"
)

// PostFilter describes filters for listing posts.
type PostFilter struct {
	Search     string
	Sorting    string
	Ordering   string
	Categories []string
	Page       int
	PerPage    int
}

// PostListResult aggregates paginated list data.
type PostListResult struct {
	Posts      []db.Post
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// PostService 组合底层查询、读穿缓存与展示计数缓冲，承载文章读路径。
type PostService struct {
	db       *gorm.DB
	cache    *QueryCache
	counters *CounterBuffer
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB, cache *QueryCache, counters *CounterBuffer) *PostService {
	return &PostService{db: gdb, cache: cache, counters: counters}
}

// List 返回过滤排序后的分页文章列表。
// 先探查询缓存，未命中才执行查询并写回缓存；命中与否都为每个返回的
// 文章缓冲一次展示计数——缓存绝不吞掉统计。
func (s *PostService) List(ctx context.Context, filter PostFilter) (*PostListResult, error) {
	result := &PostListResult{Page: filter.Page, PerPage: filter.PerPage}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = 10
	}
	filter.Page = result.Page

	signature := PostListSignature(filter)
	if cached, ok := s.cache.Lookup(ctx, signature); ok {
		posts, err := orderedPostsByIDs(ctx, s.db, cached.IDs)
		if err != nil {
			return nil, err
		}
		s.counters.BufferImpressions(ctx, db.EntityTypePost, postIDs(posts))

		result.Posts = posts
		result.Total = cached.Total
		result.TotalPages = totalPages(cached.Total, result.PerPage)
		return result, nil
	}

	countQuery := s.applyFilters(s.db.WithContext(ctx).Model(&db.Post{}), filter)
	if err := countQuery.Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	if result.Total == 0 {
		return nil, ErrNoPostsFound
	}

	dataQuery := s.applyFilters(s.db.WithContext(ctx).Model(&db.Post{}).Preload("Category"), filter)
	dataQuery = applyPostOrder(dataQuery, filter.Sorting, filter.Ordering)

	offset := (result.Page - 1) * result.PerPage
	var posts []db.Post
	if err := dataQuery.Limit(result.PerPage).Offset(offset).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	s.cache.Store(ctx, signature, CachedResultSet{IDs: postIDs(posts), Total: result.Total})
	s.counters.BufferImpressions(ctx, db.EntityTypePost, postIDs(posts))

	result.Posts = posts
	result.TotalPages = totalPages(result.Total, result.PerPage)
	return result, nil
}

// Detail 按 slug 返回已发布的文章详情，走读穿缓存。
// 缓存里只存文章 ID，属性数据每次重新读取。
func (s *PostService) Detail(ctx context.Context, slug string) (*db.Post, error) {
	signature := PostDetailSignature(slug)
	if cached, ok := s.cache.Lookup(ctx, signature); ok && len(cached.IDs) == 1 {
		var post db.Post
		err := s.db.WithContext(ctx).Preload("Category").First(&post, "id = ?", cached.IDs[0]).Error
		if err == nil {
			return &post, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// 缓存指向的文章已不存在，退回完整查询
	}

	post, err := s.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	s.cache.Store(ctx, signature, CachedResultSet{IDs: []string{post.ID}, Total: 1})
	return post, nil
}

// FindBySlug 直接按 slug 查找已发布的文章，不经过缓存。
func (s *PostService) FindBySlug(ctx context.Context, slug string) (*db.Post, error) {
	var post db.Post
	err := s.db.WithContext(ctx).Preload("Category").
		Where("slug = ? AND status = ?", slug, db.StatusPublished).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Headings 返回文章目录，按位置升序。
func (s *PostService) Headings(ctx context.Context, slug string) ([]db.Heading, error) {
	var headings []db.Heading
	err := s.db.WithContext(ctx).
		Joins("JOIN posts ON posts.id = headings.post_id").
		Where("posts.slug = ?", slug).
		Order("headings.position asc").
		Find(&headings).Error
	if err != nil {
		return nil, err
	}
	return headings, nil
}

func (s *PostService) applyFilters(query *gorm.DB, filter PostFilter) *gorm.DB {
	query = query.Where("posts.status = ?", db.StatusPublished)

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"(LOWER(posts.title) LIKE ? OR LOWER(posts.description) LIKE ? OR LOWER(posts.content) LIKE ? OR LOWER(posts.keywords) LIKE ?)",
			like, like, like, like,
		)
	}

	if len(filter.Categories) > 0 {
		// 能解析成 UUID 的按 ID 匹配，其余按 slug 匹配，两组 OR 合并
		var ids, slugs []string
		for _, token := range filter.Categories {
			trimmed := strings.TrimSpace(token)
			if trimmed == "" {
				continue
			}
			if _, err := uuid.Parse(trimmed); err == nil {
				ids = append(ids, trimmed)
			} else {
				slugs = append(slugs, trimmed)
			}
		}

		switch {
		case len(ids) > 0 && len(slugs) > 0:
			query = query.Where(
				"(posts.category_id IN ? OR posts.category_id IN (SELECT id FROM categories WHERE slug IN ?))",
				ids, slugs,
			)
		case len(ids) > 0:
			query = query.Where("posts.category_id IN ?", ids)
		case len(slugs) > 0:
			query = query.Where("posts.category_id IN (SELECT id FROM categories WHERE slug IN ?)", slugs)
		}
	}

	return query
}

// applyPostOrder 先应用主排序，再应用字母序作为次级排序。
// 两者都缺省时交给存储的自然顺序。
func applyPostOrder(query *gorm.DB, sorting, ordering string) *gorm.DB {
	switch sorting {
	case SortNewest:
		query = query.Order("posts.created_at desc")
	case SortRecentlyUpdated:
		query = query.Order("posts.updated_at desc")
	case SortMostViewed:
		query = query.Select("posts.*").
			Joins("LEFT JOIN analytics_records ON analytics_records.entity_type = ? AND analytics_records.entity_id = posts.id", db.EntityTypePost).
			Order("COALESCE(analytics_records.views, 0) desc")
	}

	switch ordering {
	case OrderAZ:
		query = query.Order("posts.title asc")
	case OrderZA:
		query = query.Order("posts.title desc")
	}

	return query
}

// orderedPostsByIDs 按给定 ID 顺序取回文章。
// 缓存条目可能指向已删除的文章，取不到的直接跳过。
func orderedPostsByIDs(ctx context.Context, gdb *gorm.DB, ids []string) ([]db.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var posts []db.Post
	if err := gdb.WithContext(ctx).Preload("Category").
		Where("id IN ?", ids).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("fetch posts by ids: %w", err)
	}

	byID := make(map[string]db.Post, len(posts))
	for _, post := range posts {
		byID[post.ID] = post
	}

	ordered := make([]db.Post, 0, len(posts))
	for _, id := range ids {
		if post, ok := byID[id]; ok {
			ordered = append(ordered, post)
		}
	}
	return ordered, nil
}

func postIDs(posts []db.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	return ids
}

func totalPages(total int64, perPage int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
