package router

import (
	"github.com/apholdings/blogapi/internal/handler"
	"github.com/gin-gonic/gin"
)

// Setup 配置 Gin 引擎和路由。
func Setup(api *handler.API, apiKeys []string) *gin.Engine {
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	blog := r.Group("/api/blog")
	blog.Use(handler.APIKeyRequired(apiKeys))
	{
		blog.GET("/posts", api.GetPosts)
		blog.GET("/post", api.GetPost)
		blog.GET("/post/headings", api.GetPostHeadings)
		blog.POST("/post/increment-click", api.IncrementPostClick)

		blog.GET("/categories", api.GetCategories)
		blog.GET("/category/posts", api.GetCategoryPosts)
		blog.POST("/category/increment-click", api.IncrementCategoryClick)
	}

	// 演示数据生成接口，与原有接口一样保持无鉴权
	dev := r.Group("/api/dev")
	{
		dev.GET("/generate-posts", api.GenerateFakePosts)
		dev.GET("/generate-analytics", api.GenerateFakeAnalytics)
	}

	return r
}
