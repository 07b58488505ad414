package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/apholdings/blogapi/internal/db"
	"github.com/apholdings/blogapi/internal/service"
	"github.com/gin-gonic/gin"
)

const listPerPage = 10

// GetPosts 返回过滤排序后的文章分页列表。
func (a *API) GetPosts(c *gin.Context) {
	filter := service.PostFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Sorting:    c.Query("sorting"),
		Ordering:   c.Query("ordering"),
		Categories: c.QueryArray("category"),
		Page:       parsePositiveInt(c.DefaultQuery("p", "1"), 1),
		PerPage:    listPerPage,
	}

	result, err := a.posts.List(c.Request.Context(), filter)
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

// GetPost 按 slug 返回文章详情，并为本次访问记一次去重后的浏览。
func (a *API) GetPost(c *gin.Context) {
	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		respondError(c, http.StatusNotFound, "a valid slug must be provided")
		return
	}

	post, err := a.posts.Detail(c.Request.Context(), slug)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// 浏览计数相对内容投递是尽力而为的，失败只记日志
	if _, err := a.analytics.RecordView(c.Request.Context(), db.EntityTypePost, post.ID, c.ClientIP()); err != nil {
		log.Printf("record view for post %s failed: %v", post.ID, err)
	}

	record, err := a.analytics.Record(c.Request.Context(), db.EntityTypePost, post.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, serializePostDetail(post, record))
}

// GetPostHeadings 返回文章目录。
func (a *API) GetPostHeadings(c *gin.Context) {
	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		respondError(c, http.StatusNotFound, "a valid slug must be provided")
		return
	}

	headings, err := a.posts.Headings(c.Request.Context(), slug)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": serializeHeadings(headings)})
}

// IncrementPostClick 给文章的点击数加一，同步返回最新点击数。
func (a *API) IncrementPostClick(c *gin.Context) {
	var body struct {
		Slug string `json:"slug" binding:"required"`
	}
	if !bindJSON(c, &body, "a valid slug must be provided") {
		return
	}

	post, err := a.posts.FindBySlug(c.Request.Context(), body.Slug)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	clicks, err := a.analytics.IncrementClick(c.Request.Context(), db.EntityTypePost, post.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "an error occurred while updating post analytics: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Click incremented successfully",
		"clicks":  clicks,
	})
}

func idsOfPosts(posts []db.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	return ids
}
