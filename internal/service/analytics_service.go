package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/apholdings/blogapi/internal/cache"
	"github.com/apholdings/blogapi/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultViewDedupWindow = 24 * time.Hour

const viewDedupKeyPrefix = counterKeyNamespace + "viewed:"

// AnalyticsService 负责维护实体统计记录的读写。
// 点击率是派生值，在每次 impressions 或 clicks 变更后重算并随记录持久化。
type AnalyticsService struct {
	db          *gorm.DB
	store       cache.Store
	dedupWindow time.Duration
}

// NewAnalyticsService 创建 AnalyticsService，默认浏览去重窗口为 24 小时。
func NewAnalyticsService(gdb *gorm.DB, store cache.Store) *AnalyticsService {
	return &AnalyticsService{db: gdb, store: store, dedupWindow: defaultViewDedupWindow}
}

// WithDedupWindow 允许在测试或特定场景下调整去重窗口。
func (s *AnalyticsService) WithDedupWindow(d time.Duration) *AnalyticsService {
	if d <= 0 {
		return s
	}
	s.dedupWindow = d
	return s
}

// IncrementImpressions 把累积的展示增量加进统计记录并重算点击率。
func (s *AnalyticsService) IncrementImpressions(ctx context.Context, entityType, entityID string, delta int64) error {
	if delta <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getOrCreateRecord(tx, entityType, entityID)
		if err != nil {
			return err
		}
		record.Impressions += uint64(delta)
		record.RecomputeCTR()
		return tx.Save(record).Error
	})
}

// RecordView 为一次详情页访问记一次浏览。
// 同一访客在去重窗口内的重复访问不再计数，返回值表示本次是否被计入。
func (s *AnalyticsService) RecordView(ctx context.Context, entityType, entityID, viewerIdentity string) (bool, error) {
	if viewerIdentity == "" {
		return false, errors.New("viewer identity is required")
	}

	dedupKey := viewDedupKeyPrefix + entityType + ":" + entityID + ":" + hashViewer(viewerIdentity)
	created, err := s.store.SetNX(ctx, dedupKey, "1", s.dedupWindow)
	if err != nil {
		return false, fmt.Errorf("view dedup check: %w", err)
	}
	if !created {
		return false, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getOrCreateRecord(tx, entityType, entityID)
		if err != nil {
			return err
		}
		// 浏览数本身不参与点击率计算
		record.Views++
		return tx.Save(record).Error
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// IncrementClick 给实体的点击数加一并重算点击率，返回最新的点击数。
func (s *AnalyticsService) IncrementClick(ctx context.Context, entityType, entityID string) (uint64, error) {
	var clicks uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := getOrCreateRecord(tx, entityType, entityID)
		if err != nil {
			return err
		}
		record.Clicks++
		record.RecomputeCTR()
		if err := tx.Save(record).Error; err != nil {
			return err
		}
		clicks = record.Clicks
		return nil
	})
	if err != nil {
		return 0, err
	}
	return clicks, nil
}

// Record 返回单个实体的统计记录，不存在时返回全零记录。
func (s *AnalyticsService) Record(ctx context.Context, entityType, entityID string) (*db.AnalyticsRecord, error) {
	var record db.AnalyticsRecord
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &db.AnalyticsRecord{EntityType: entityType, EntityID: entityID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RecordsMap 返回指定实体的统计数据，没有记录的实体不会出现在结果中。
func (s *AnalyticsService) RecordsMap(ctx context.Context, entityType string, entityIDs []string) (map[string]*db.AnalyticsRecord, error) {
	result := make(map[string]*db.AnalyticsRecord, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}

	var records []db.AnalyticsRecord
	if err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id IN ?", entityType, entityIDs).
		Find(&records).Error; err != nil {
		return nil, err
	}

	for i := range records {
		record := records[i]
		result[record.EntityID] = &record
	}
	return result, nil
}

// getOrCreateRecord 原子地按需创建统计记录再加锁读取，
// 避免两个并发请求同时首次写入同一实体时产生重复行。
func getOrCreateRecord(tx *gorm.DB, entityType, entityID string) (*db.AnalyticsRecord, error) {
	blank := db.AnalyticsRecord{EntityType: entityType, EntityID: entityID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
		DoNothing: true,
	}).Create(&blank).Error; err != nil {
		return nil, err
	}

	var record db.AnalyticsRecord
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// hashViewer 为访客身份（如网络地址）计算稳定哈希，避免明文落入存储。
func hashViewer(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:8])
}
