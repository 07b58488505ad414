package handler

import (
	"net/http"
	"strings"

	"github.com/apholdings/blogapi/internal/db"
	"github.com/apholdings/blogapi/internal/service"
	"github.com/gin-gonic/gin"
)

// GetCategories 返回分类分页列表，未指定 parent_slug 时列出顶层分类。
func (a *API) GetCategories(c *gin.Context) {
	filter := service.CategoryFilter{
		ParentSlug: strings.TrimSpace(c.Query("parent_slug")),
		Search:     strings.TrimSpace(c.Query("search")),
		Sorting:    c.Query("sorting"),
		Ordering:   c.Query("ordering"),
		Page:       parsePositiveInt(c.DefaultQuery("p", "1"), 1),
		PerPage:    listPerPage,
	}

	result, err := a.categories.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	ids := make([]string, 0, len(result.Categories))
	for _, category := range result.Categories {
		ids = append(ids, category.ID)
	}
	stats, err := a.analytics.RecordsMap(c.Request.Context(), db.EntityTypeCategory, ids)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":    serializeCategoryList(result.Categories, stats),
		"count":      result.Total,
		"page":       result.Page,
		"totalPages": result.TotalPages,
	})
}

// GetCategoryPosts 返回分类下已发布文章的分页列表。
func (a *API) GetCategoryPosts(c *gin.Context) {
	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		respondError(c, http.StatusNotFound, "a valid slug must be provided")
		return
	}
	page := parsePositiveInt(c.DefaultQuery("p", "1"), 1)

	result, err := a.categories.Posts(c.Request.Context(), slug, page, listPerPage)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	stats, err := a.analytics.RecordsMap(c.Request.Context(), db.EntityTypePost, idsOfPosts(result.Posts))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":    serializePostList(result.Posts, stats),
		"count":      result.Total,
		"page":       result.Page,
		"totalPages": result.TotalPages,
	})
}

// IncrementCategoryClick 给分类的点击数加一，同步返回最新点击数。
func (a *API) IncrementCategoryClick(c *gin.Context) {
	var body struct {
		Slug string `json:"slug" binding:"required"`
	}
	if !bindJSON(c, &body, "a valid slug must be provided") {
		return
	}

	category, err := a.categories.FindBySlug(c.Request.Context(), body.Slug)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	clicks, err := a.analytics.IncrementClick(c.Request.Context(), db.EntityTypeCategory, category.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "an error occurred while updating category analytics: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Click incremented successfully",
		"clicks":  clicks,
	})
}
