package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/apholdings/blogapi/internal/db"
	"github.com/apholdings/blogapi/internal/service"
	"gorm.io/gorm"
)

// SyncImpressionsJob 周期性地把计数缓冲中累积的展示增量搬进统计记录。
// 单个键落库成功后才从缓冲中扣除，失败的键保留给下一轮重试，
// 因此部分失败后重跑只会补齐剩余部分。
type SyncImpressionsJob struct {
	db        *gorm.DB
	counters  *service.CounterBuffer
	analytics *service.AnalyticsService

	// 防止同一进程内两轮同步重叠执行
	mu sync.Mutex
}

// NewSyncImpressionsJob 是任务的构造函数。
func NewSyncImpressionsJob(gdb *gorm.DB, counters *service.CounterBuffer, analytics *service.AnalyticsService) *SyncImpressionsJob {
	return &SyncImpressionsJob{db: gdb, counters: counters, analytics: analytics}
}

// Name 返回任务的可读名称。
func (j *SyncImpressionsJob) Name() string {
	return "SyncImpressionsJob"
}

// Run 实现 cron.Job。任何失败只记日志，绝不让调度器崩溃。
func (j *SyncImpressionsJob) Run() {
	synced, failed, err := j.RunOnce(context.Background())
	if err != nil {
		log.Printf("sync impressions aborted: %v", err)
		return
	}
	if synced > 0 || failed > 0 {
		log.Printf("sync impressions: %d synced, %d retained for retry", synced, failed)
	}
}

// RunOnce 执行一轮同步，返回成功与失败（保留重试）的键数量。
// 同一时刻只允许一轮在跑，撞上正在运行的实例时直接返回。
func (j *SyncImpressionsJob) RunOnce(ctx context.Context) (synced, failed int, err error) {
	if !j.mu.TryLock() {
		return 0, 0, nil
	}
	defer j.mu.Unlock()

	pending, err := j.counters.Pending(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("enumerate pending counters: %w", err)
	}

	for _, pc := range pending {
		if err := j.flush(ctx, pc); err != nil {
			// 键保留在缓冲中，留给下一轮
			log.Printf("flush impressions for %s %s failed: %v", pc.EntityType, pc.EntityID, err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (j *SyncImpressionsJob) flush(ctx context.Context, pc service.PendingCounter) error {
	exists, err := j.entityExists(ctx, pc.EntityType, pc.EntityID)
	if err != nil {
		return fmt.Errorf("resolve entity: %w", err)
	}
	if !exists {
		return fmt.Errorf("entity %s %s not found", pc.EntityType, pc.EntityID)
	}

	if err := j.analytics.IncrementImpressions(ctx, pc.EntityType, pc.EntityID, pc.Delta); err != nil {
		return fmt.Errorf("apply delta %d: %w", pc.Delta, err)
	}

	// 落库成功后才允许从缓冲扣除
	return j.counters.Settle(ctx, pc)
}

func (j *SyncImpressionsJob) entityExists(ctx context.Context, entityType, entityID string) (bool, error) {
	var model interface{}
	switch entityType {
	case db.EntityTypePost:
		model = &db.Post{}
	case db.EntityTypeCategory:
		model = &db.Category{}
	default:
		return false, errors.New("unknown entity type " + entityType)
	}

	var count int64
	if err := j.db.WithContext(ctx).Model(model).Where("id = ?", entityID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
