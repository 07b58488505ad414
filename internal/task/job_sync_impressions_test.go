package task

import (
	"context"
	"math"
	"testing"

	"github.com/apholdings/blogapi/internal/cache"
	"github.com/apholdings/blogapi/internal/db"
	"github.com/apholdings/blogapi/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type syncFixture struct {
	gdb       *gorm.DB
	counters  *service.CounterBuffer
	analytics *service.AnalyticsService
	job       *SyncImpressionsJob
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

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

	store := cache.NewMemoryStore()
	counters := service.NewCounterBuffer(store)
	analytics := service.NewAnalyticsService(gdb, store)
	return &syncFixture{
		gdb:       gdb,
		counters:  counters,
		analytics: analytics,
		job:       NewSyncImpressionsJob(gdb, counters, analytics),
	}
}

func (f *syncFixture) createPost(t *testing.T, title, slug string) db.Post {
	t.Helper()

	category := db.Category{Name: title, Title: title, Slug: "cat-" + slug}
	if err := f.gdb.Create(&category).Error; err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	post := db.Post{Title: title, Content: "content", Slug: slug, Status: db.StatusPublished, CategoryID: category.ID}
	if err := f.gdb.Create(&post).Error; err != nil {
		t.Fatalf("create post failed: %v", err)
	}
	return post
}

func TestSyncMovesBufferedDeltasIntoRecords(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	post := fx.createPost(t, "Synced", "synced")

	// 先有两次点击，再同步三次缓冲的展示
	if _, err := fx.analytics.IncrementClick(ctx, db.EntityTypePost, post.ID); err != nil {
		t.Fatalf("click failed: %v", err)
	}
	if _, err := fx.analytics.IncrementClick(ctx, db.EntityTypePost, post.ID); err != nil {
		t.Fatalf("click failed: %v", err)
	}
	if _, err := fx.counters.AddImpression(ctx, db.EntityTypePost, post.ID, 3); err != nil {
		t.Fatalf("buffer impressions failed: %v", err)
	}

	synced, failed, err := fx.job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if synced != 1 || failed != 0 {
		t.Fatalf("expected 1 synced / 0 failed, got %d/%d", synced, failed)
	}

	record, err := fx.analytics.Record(ctx, db.EntityTypePost, post.ID)
	if err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.Impressions != 3 || record.Clicks != 2 {
		t.Fatalf("expected impressions=3 clicks=2, got %d/%d", record.Impressions, record.Clicks)
	}
	if math.Abs(record.ClickThroughRate-2.0/3.0) > 1e-9 {
		t.Fatalf("expected CTR 2/3 after sync, got %f", record.ClickThroughRate)
	}

	pending, err := fx.counters.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected buffer drained, got %d pending", len(pending))
	}
}

func TestSyncRerunIsIdempotent(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	post := fx.createPost(t, "Once", "once")
	if _, err := fx.counters.AddImpression(ctx, db.EntityTypePost, post.ID, 5); err != nil {
		t.Fatalf("buffer impressions failed: %v", err)
	}

	if _, _, err := fx.job.RunOnce(ctx); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	synced, failed, err := fx.job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if synced != 0 || failed != 0 {
		t.Fatalf("expected empty second round, got %d/%d", synced, failed)
	}

	record, err := fx.analytics.Record(ctx, db.EntityTypePost, post.ID)
	if err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.Impressions != 5 {
		t.Fatalf("expected impressions unchanged at 5, got %d", record.Impressions)
	}
}

func TestSyncRetainsKeyForMissingEntity(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	post := fx.createPost(t, "Exists", "exists")
	if _, err := fx.counters.AddImpression(ctx, db.EntityTypePost, post.ID, 2); err != nil {
		t.Fatalf("buffer impressions failed: %v", err)
	}
	// 指向不存在实体的计数器不能落库，也不能被丢弃
	if _, err := fx.counters.AddImpression(ctx, db.EntityTypePost, "ghost-id", 7); err != nil {
		t.Fatalf("buffer impressions failed: %v", err)
	}

	synced, failed, err := fx.job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if synced != 1 || failed != 1 {
		t.Fatalf("expected 1 synced / 1 failed, got %d/%d", synced, failed)
	}

	pending, err := fx.counters.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected failed key retained, got %d pending", len(pending))
	}
	if pending[0].EntityID != "ghost-id" || pending[0].Delta != 7 {
		t.Fatalf("unexpected retained counter %+v", pending[0])
	}
}

func TestSyncPicksUpIncrementsArrivingBetweenRounds(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	post := fx.createPost(t, "Rolling", "rolling")
	if _, err := fx.counters.AddImpression(ctx, db.EntityTypePost, post.ID, 2); err != nil {
		t.Fatalf("buffer impressions failed: %v", err)
	}
	if _, _, err := fx.job.RunOnce(ctx); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	if _, err := fx.counters.AddImpression(ctx, db.EntityTypePost, post.ID, 4); err != nil {
		t.Fatalf("buffer impressions failed: %v", err)
	}
	if _, _, err := fx.job.RunOnce(ctx); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	record, err := fx.analytics.Record(ctx, db.EntityTypePost, post.ID)
	if err != nil {
		t.Fatalf("load record failed: %v", err)
	}
	if record.Impressions != 6 {
		t.Fatalf("expected impressions=6 across rounds, got %d", record.Impressions)
	}
}
