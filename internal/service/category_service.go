package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apholdings/blogapi/internal/db"
	"gorm.io/gorm"
)

// CategoryFilter describes filters for listing categories.
type CategoryFilter struct {
	ParentSlug string
	Search     string
	Sorting    string
	Ordering   string
	Page       int
	PerPage    int
}

// CategoryListResult aggregates paginated category list data.
type CategoryListResult struct {
	Categories []db.Category
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// CategoryService 承载分类维度的读路径，与 PostService 共用缓存与计数缓冲。
type CategoryService struct {
	db       *gorm.DB
	cache    *QueryCache
	counters *CounterBuffer
}

// NewCategoryService creates a CategoryService instance.
func NewCategoryService(gdb *gorm.DB, cache *QueryCache, counters *CounterBuffer) *CategoryService {
	return &CategoryService{db: gdb, cache: cache, counters: counters}
}

// List 返回分类列表：指定 parent_slug 时列出其子分类，否则列出顶层分类。
// 走读穿缓存，命中与否都为每个返回的分类缓冲一次展示计数。
func (s *CategoryService) List(ctx context.Context, filter CategoryFilter) (*CategoryListResult, error) {
	result := &CategoryListResult{Page: filter.Page, PerPage: filter.PerPage}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = 10
	}
	filter.Page = result.Page

	signature := CategoryListSignature(filter)
	if cached, ok := s.cache.Lookup(ctx, signature); ok {
		categories, err := s.orderedCategoriesByIDs(ctx, cached.IDs)
		if err != nil {
			return nil, err
		}
		s.counters.BufferImpressions(ctx, db.EntityTypeCategory, categoryIDs(categories))

		result.Categories = categories
		result.Total = cached.Total
		result.TotalPages = totalPages(cached.Total, result.PerPage)
		return result, nil
	}

	countQuery := s.applyFilters(s.db.WithContext(ctx).Model(&db.Category{}), filter)
	if err := countQuery.Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	if result.Total == 0 {
		return nil, ErrCategoryNotFound
	}

	dataQuery := s.applyFilters(s.db.WithContext(ctx).Model(&db.Category{}), filter)
	dataQuery = applyCategoryOrder(dataQuery, filter.Sorting, filter.Ordering)

	offset := (result.Page - 1) * result.PerPage
	var categories []db.Category
	if err := dataQuery.Limit(result.PerPage).Offset(offset).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	s.cache.Store(ctx, signature, CachedResultSet{IDs: categoryIDs(categories), Total: result.Total})
	s.counters.BufferImpressions(ctx, db.EntityTypeCategory, categoryIDs(categories))

	result.Categories = categories
	result.TotalPages = totalPages(result.Total, result.PerPage)
	return result, nil
}

// Posts 返回分类下已发布的文章分页列表，缓冲的是文章维度的展示计数。
func (s *CategoryService) Posts(ctx context.Context, slug string, page, perPage int) (*PostListResult, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}

	result := &PostListResult{Page: page, PerPage: perPage}

	signature := CategoryPostsSignature(slug, page)
	if cached, ok := s.cache.Lookup(ctx, signature); ok {
		posts, err := orderedPostsByIDs(ctx, s.db, cached.IDs)
		if err != nil {
			return nil, err
		}
		s.counters.BufferImpressions(ctx, db.EntityTypePost, postIDs(posts))

		result.Posts = posts
		result.Total = cached.Total
		result.TotalPages = totalPages(cached.Total, perPage)
		return result, nil
	}

	category, err := s.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	baseQuery := s.db.WithContext(ctx).Model(&db.Post{}).
		Where("posts.category_id = ? AND posts.status = ?", category.ID, db.StatusPublished)
	if err := baseQuery.Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("count category posts: %w", err)
	}
	if result.Total == 0 {
		return nil, ErrNoPostsFound
	}

	var posts []db.Post
	if err := s.db.WithContext(ctx).Model(&db.Post{}).Preload("Category").
		Where("posts.category_id = ? AND posts.status = ?", category.ID, db.StatusPublished).
		Order("posts.created_at desc").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list category posts: %w", err)
	}

	s.cache.Store(ctx, signature, CachedResultSet{IDs: postIDs(posts), Total: result.Total})
	s.counters.BufferImpressions(ctx, db.EntityTypePost, postIDs(posts))

	result.Posts = posts
	result.TotalPages = totalPages(result.Total, perPage)
	return result, nil
}

// FindBySlug 直接按 slug 查找分类，不经过缓存。
func (s *CategoryService) FindBySlug(ctx context.Context, slug string) (*db.Category, error) {
	var category db.Category
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoryService) applyFilters(query *gorm.DB, filter CategoryFilter) *gorm.DB {
	if parentSlug := strings.TrimSpace(filter.ParentSlug); parentSlug != "" {
		query = query.Where(
			"categories.parent_id IN (SELECT id FROM categories WHERE slug = ?)",
			parentSlug,
		)
	} else {
		query = query.Where("categories.parent_id IS NULL")
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"(LOWER(categories.name) LIKE ? OR LOWER(categories.slug) LIKE ? OR LOWER(categories.title) LIKE ? OR LOWER(categories.description) LIKE ?)",
			like, like, like, like,
		)
	}

	return query
}

func applyCategoryOrder(query *gorm.DB, sorting, ordering string) *gorm.DB {
	switch sorting {
	case SortNewest:
		query = query.Order("categories.created_at desc")
	case SortRecentlyUpdated:
		query = query.Order("categories.updated_at desc")
	case SortMostViewed:
		query = query.Select("categories.*").
			Joins("LEFT JOIN analytics_records ON analytics_records.entity_type = ? AND analytics_records.entity_id = categories.id", db.EntityTypeCategory).
			Order("COALESCE(analytics_records.views, 0) desc")
	}

	switch ordering {
	case OrderAZ:
		query = query.Order("categories.name asc")
	case OrderZA:
		query = query.Order("categories.name desc")
	}

	return query
}

func (s *CategoryService) orderedCategoriesByIDs(ctx context.Context, ids []string) ([]db.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var categories []db.Category
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("fetch categories by ids: %w", err)
	}

	byID := make(map[string]db.Category, len(categories))
	for _, category := range categories {
		byID[category.ID] = category
	}

	ordered := make([]db.Category, 0, len(categories))
	for _, id := range ids {
		if category, ok := byID[id]; ok {
			ordered = append(ordered, category)
		}
	}
	return ordered, nil
}

func categoryIDs(categories []db.Category) []string {
	ids := make([]string, 0, len(categories))
	for _, category := range categories {
		ids = append(ids, category.ID)
	}
	return ids
}
