package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apholdings/blogapi/internal/cache"
	"github.com/apholdings/blogapi/internal/db"
	"github.com/apholdings/blogapi/internal/handler"
	"github.com/apholdings/blogapi/internal/router"
	"github.com/apholdings/blogapi/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRouter(t *testing.T, apiKeys []string) (*gin.Engine, *gorm.DB) {
	t.Helper()

	store := cache.NewMemoryStore()
	t.Cleanup(store.Stop)
	return setupTestRouterWithStore(t, apiKeys, store)
}

func setupTestRouterWithStore(t *testing.T, apiKeys []string, store cache.Store) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	counters := service.NewCounterBuffer(store)
	queryCache := service.NewQueryCache(store, time.Minute)
	analytics := service.NewAnalyticsService(gdb, store)
	posts := service.NewPostService(gdb, queryCache, counters)
	categories := service.NewCategoryService(gdb, queryCache, counters)
	seeder := service.NewFakeDataService(gdb)

	api := handler.NewAPI(posts, categories, analytics, seeder)
	return router.Setup(api, apiKeys), gdb
}

func seedPost(t *testing.T, gdb *gorm.DB, title, slug string) db.Post {
	t.Helper()

	category := db.Category{Name: "Tech", Title: "Tech", Slug: "tech-" + slug}
	if err := gdb.Create(&category).Error; err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	post := db.Post{Title: title, Content: "# Hello\n\nworld", Slug: slug, Status: db.StatusPublished, CategoryID: category.ID}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("create post failed: %v", err)
	}
	return post
}

func doRequest(r *gin.Engine, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetPostsReturnsResults(t *testing.T) {
	r, gdb := setupTestRouter(t, nil)
	seedPost(t, gdb, "Hello World", "hello-world")

	w := doRequest(r, http.MethodGet, "/api/blog/posts", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results []struct {
			Title string `json:"title"`
			Slug  string `json:"slug"`
		} `json:"results"`
		Count      int64 `json:"count"`
		Page       int   `json:"page"`
		TotalPages int   `json:"totalPages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected one post, got count=%d results=%d", resp.Count, len(resp.Results))
	}
	if resp.Results[0].Slug != "hello-world" {
		t.Fatalf("unexpected slug %q", resp.Results[0].Slug)
	}
	if resp.Page != 1 || resp.TotalPages != 1 {
		t.Fatalf("unexpected pagination page=%d totalPages=%d", resp.Page, resp.TotalPages)
	}
}

func TestGetPostsEmptyIs404(t *testing.T) {
	r, _ := setupTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/api/blog/posts", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty listing, got %d", w.Code)
	}
}

func TestGetPostDetailRendersMarkdownAndCountsView(t *testing.T) {
	r, gdb := setupTestRouter(t, nil)
	post := seedPost(t, gdb, "Hello World", "hello-world")

	w := doRequest(r, http.MethodGet, "/api/blog/post?slug=hello-world", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Slug        string `json:"slug"`
		Content     string `json:"content"`
		ContentHTML string `json:"content_html"`
		Analytics   struct {
			Views uint64 `json:"views"`
		} `json:"analytics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Slug != "hello-world" {
		t.Fatalf("unexpected slug %q", resp.Slug)
	}
	if resp.Content != post.Content {
		t.Fatalf("expected raw markdown passthrough, got %q", resp.Content)
	}
	if resp.ContentHTML == "" || resp.ContentHTML == resp.Content {
		t.Fatalf("expected rendered html, got %q", resp.ContentHTML)
	}
	if resp.Analytics.Views != 1 {
		t.Fatalf("expected first view counted, got %d", resp.Analytics.Views)
	}

	// 同一来源的第二次访问在去重窗口内不再计数
	w = doRequest(r, http.MethodGet, "/api/blog/post?slug=hello-world", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Analytics.Views != 1 {
		t.Fatalf("expected deduplicated view, got %d", resp.Analytics.Views)
	}
}

// brokenDedupStore 模拟去重存储不可用。
type brokenDedupStore struct {
	cache.Store
}

func (s *brokenDedupStore) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	return false, errors.New("store unavailable")
}

// 浏览计数失败不能影响内容投递。
func TestGetPostServedWhenViewRecordingFails(t *testing.T) {
	inner := cache.NewMemoryStore()
	t.Cleanup(inner.Stop)
	r, gdb := setupTestRouterWithStore(t, nil, &brokenDedupStore{Store: inner})
	seedPost(t, gdb, "Sturdy", "sturdy")

	w := doRequest(r, http.MethodGet, "/api/blog/post?slug=sturdy", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 despite view recording failure, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Slug      string `json:"slug"`
		Analytics struct {
			Views uint64 `json:"views"`
		} `json:"analytics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Slug != "sturdy" {
		t.Fatalf("unexpected slug %q", resp.Slug)
	}
	if resp.Analytics.Views != 0 {
		t.Fatalf("expected no view counted when dedup store is down, got %d", resp.Analytics.Views)
	}
}

func TestGetPostUnknownSlugIs404(t *testing.T) {
	r, _ := setupTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/api/blog/post?slug=nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestIncrementPostClick(t *testing.T) {
	r, gdb := setupTestRouter(t, nil)
	seedPost(t, gdb, "Hello World", "hello-world")

	body := []byte(`{"slug":"hello-world"}`)
	var resp struct {
		Message string `json:"message"`
		Clicks  uint64 `json:"clicks"`
	}

	w := doRequest(r, http.MethodPost, "/api/blog/post/increment-click", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Clicks != 1 || resp.Message != "Click incremented successfully" {
		t.Fatalf("unexpected response %+v", resp)
	}

	w = doRequest(r, http.MethodPost, "/api/blog/post/increment-click", body, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Clicks != 2 {
		t.Fatalf("expected clicks=2 on second call, got %d", resp.Clicks)
	}
}

func TestIncrementPostClickValidation(t *testing.T) {
	r, _ := setupTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/blog/post/increment-click", []byte(`{}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing slug, got %d", w.Code)
	}

	w = doRequest(r, http.MethodPost, "/api/blog/post/increment-click", []byte(`{"slug":"nope"}`), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown slug, got %d", w.Code)
	}
}

func TestGetPostHeadings(t *testing.T) {
	r, gdb := setupTestRouter(t, nil)
	post := seedPost(t, gdb, "Structured", "structured")

	headings := []db.Heading{
		{PostID: post.ID, Title: "Intro", Slug: "intro", Level: 2, Position: 1},
		{PostID: post.ID, Title: "Body", Slug: "body", Level: 2, Position: 2},
	}
	if err := gdb.Create(&headings).Error; err != nil {
		t.Fatalf("seed headings failed: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/api/blog/post/headings?slug=structured", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Results []struct {
			Title string `json:"title"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].Title != "Intro" {
		t.Fatalf("unexpected headings %+v", resp.Results)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	r, gdb := setupTestRouter(t, []string{"secret-key"})
	seedPost(t, gdb, "Guarded", "guarded")

	w := doRequest(r, http.MethodGet, "/api/blog/posts", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/blog/posts", nil, map[string]string{"X-API-Key": "wrong"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong key, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/blog/posts", nil, map[string]string{"X-API-Key": "secret-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d", w.Code)
	}
}

func TestDevGeneratePostsRequiresCategories(t *testing.T) {
	r, _ := setupTestRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/api/dev/generate-posts?count=3", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with no categories, got %d", w.Code)
	}
}

func TestDevGeneratePosts(t *testing.T) {
	r, gdb := setupTestRouter(t, nil)

	category := db.Category{Name: "Tech", Title: "Tech", Slug: "tech"}
	if err := gdb.Create(&category).Error; err != nil {
		t.Fatalf("create category failed: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/api/dev/generate-posts?count=5", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	if err := gdb.Model(&db.Post{}).Count(&count).Error; err != nil {
		t.Fatalf("count posts failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 generated posts, got %d", count)
	}
}
