package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/apholdings/blogapi/internal/service"
	"github.com/gin-gonic/gin"
)

// GenerateFakePosts 批量生成演示文章。
func (a *API) GenerateFakePosts(c *gin.Context) {
	count := parsePositiveInt(c.DefaultQuery("count", "100"), 100)

	created, err := a.seeder.GeneratePosts(c.Request.Context(), count)
	if err != nil {
		if errors.Is(err, service.ErrNoCategories) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%d posts generated successfully", created)})
}

// GenerateFakeAnalytics 为每篇文章生成随机统计数据。
func (a *API) GenerateFakeAnalytics(c *gin.Context) {
	generated, err := a.seeder.GenerateAnalytics(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoPostsFound) {
			respondError(c, http.StatusBadRequest, "no posts available to generate analytics for")
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("analytics generated for %d posts", generated)})
}
