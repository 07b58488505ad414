package db

import "time"

// 统计记录所属的实体类型
const (
	EntityTypePost     = "post"
	EntityTypeCategory = "category"
)

// AnalyticsRecord 汇总单个实体的统计计数，与实体一一对应。
// ClickThroughRate 是派生值，任何一次 clicks/impressions 变更后都必须重算，
// 绝不允许相对自身计数器过期。
type AnalyticsRecord struct {
	ID               uint   `gorm:"primaryKey"`
	EntityType       string `gorm:"size:16;uniqueIndex:idx_analytics_entity"`
	EntityID         string `gorm:"type:uuid;uniqueIndex:idx_analytics_entity"`
	Impressions      uint64 `gorm:"default:0"`
	Views            uint64 `gorm:"default:0"`
	Clicks           uint64 `gorm:"default:0"`
	AvgTimeOnPage    float64
	ClickThroughRate float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName 指定自定义表名，避免自动复数化导致的歧义。
func (AnalyticsRecord) TableName() string {
	return "analytics_records"
}

// RecomputeCTR 以当前计数器重算点击率，impressions 为 0 时点击率为 0。
func (r *AnalyticsRecord) RecomputeCTR() {
	if r.Impressions == 0 {
		r.ClickThroughRate = 0
		return
	}
	r.ClickThroughRate = float64(r.Clicks) / float64(r.Impressions)
}
