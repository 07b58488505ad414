package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/apholdings/blogapi/internal/cache"
	"github.com/apholdings/blogapi/internal/config"
	"github.com/apholdings/blogapi/internal/db"
	"github.com/apholdings/blogapi/internal/handler"
	"github.com/apholdings/blogapi/internal/router"
	"github.com/apholdings/blogapi/internal/service"
	"github.com/apholdings/blogapi/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env 不存在时静默跳过
	_ = godotenv.Load()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	gdb, err := db.Init(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// 共享临时存储：优先 Redis，不可用时降级到内存实现
	var store cache.Store
	redisClient := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if redisClient != nil {
		store = cache.NewRedisStore(redisClient)
		defer redisClient.Close()
	} else {
		memStore := cache.NewMemoryStore()
		defer memStore.Stop()
		store = memStore
	}

	// 组装服务，存储句柄由入口显式注入
	counters := service.NewCounterBuffer(store)
	queryCache := service.NewQueryCache(store, cfg.QueryCacheTTL)
	analytics := service.NewAnalyticsService(gdb, store).WithDedupWindow(cfg.ViewDedupWindow)
	posts := service.NewPostService(gdb, queryCache, counters)
	categories := service.NewCategoryService(gdb, queryCache, counters)
	seeder := service.NewFakeDataService(gdb)

	// 后台同步任务
	scheduler := task.NewScheduler()
	syncJob := task.NewSyncImpressionsJob(gdb, counters, analytics)
	if err := scheduler.Register(cfg.SyncSchedule, syncJob); err != nil {
		log.Fatalf("failed to register sync job: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	api := handler.NewAPI(posts, categories, analytics, seeder)
	engine := router.Setup(api, cfg.APIKeys)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to run server: %v", err)
		}
	}()
	log.Printf("server listening on %s", cfg.ListenAddr)

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
