package handler

import (
	"errors"
	"net/http"

	"github.com/apholdings/blogapi/internal/service"
	"github.com/gin-gonic/gin"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	posts      *service.PostService
	categories *service.CategoryService
	analytics  *service.AnalyticsService
	seeder     *service.FakeDataService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(posts *service.PostService, categories *service.CategoryService, analytics *service.AnalyticsService, seeder *service.FakeDataService) *API {
	return &API{
		posts:      posts,
		categories: categories,
		analytics:  analytics,
		seeder:     seeder,
	}
}

// respondServiceError 把服务层错误映射为响应：未找到类错误返回 404，
// 其余包装原始错误信息后以 500 返回，绝不静默吞掉。
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		respondError(c, http.StatusNotFound, "the requested post does not exist")
	case errors.Is(err, service.ErrNoPostsFound):
		respondError(c, http.StatusNotFound, "no posts found")
	case errors.Is(err, service.ErrCategoryNotFound):
		respondError(c, http.StatusNotFound, "the requested category does not exist")
	default:
		respondError(c, http.StatusInternalServerError, "an unexpected error occurred: "+err.Error())
	}
}
