package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr      string
	Port            string
	DatabasePath    string
	GinMode         string
	RedisAddr       string
	RedisPassword   string
	RedisDB         string
	APIKeys         []string
	QueryCacheTTL   time.Duration
	ViewDedupWindow time.Duration
	SyncSchedule    string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "blogapi.db"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	redisPassword := os.Getenv("REDIS_PASSWORD")

	redisDB := strings.TrimSpace(os.Getenv("REDIS_DB"))
	if redisDB == "" {
		redisDB = "0"
	}

	apiKeys := splitAndTrim(os.Getenv("API_KEYS"))

	queryCacheTTL := parseDuration(os.Getenv("QUERY_CACHE_TTL"), 5*time.Minute)
	viewDedupWindow := parseDuration(os.Getenv("VIEW_DEDUP_WINDOW"), 24*time.Hour)

	// 六字段 cron 表达式，默认每分钟整点执行一次同步
	syncSchedule := strings.TrimSpace(os.Getenv("SYNC_SCHEDULE"))
	if syncSchedule == "" {
		syncSchedule = "0 * * * * *"
	}

	return AppConfig{
		ListenAddr:      listenAddr,
		Port:            port,
		DatabasePath:    databasePath,
		GinMode:         ginMode,
		RedisAddr:       redisAddr,
		RedisPassword:   redisPassword,
		RedisDB:         redisDB,
		APIKeys:         apiKeys,
		QueryCacheTTL:   queryCacheTTL,
		ViewDedupWindow: viewDedupWindow,
		SyncSchedule:    syncSchedule,
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
