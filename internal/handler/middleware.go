package handler

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

// APIKeyRequired 校验请求头中的 API Key。
// 未配置任何 Key 时放行所有请求，方便本地开发环境。
func APIKeyRequired(validKeys []string) gin.HandlerFunc {
	if len(validKeys) == 0 {
		log.Println("API_KEYS 未配置，API Key 校验已关闭")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		provided := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if provided == "" {
			respondError(c, http.StatusUnauthorized, "missing API key")
			c.Abort()
			return
		}

		for _, key := range validKeys {
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
				c.Next()
				return
			}
		}

		respondError(c, http.StatusForbidden, "invalid API key")
		c.Abort()
	}
}
