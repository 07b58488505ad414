package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 文章发布状态
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Post 定义了文章模型。Slug 唯一，作为对外的查询键。
type Post struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Title       string `gorm:"size:255"`
	Description string
	Content     string
	Keywords    string `gorm:"size:255"`
	Thumbnail   string
	Slug        string `gorm:"size:128;uniqueIndex"`
	Status      string `gorm:"size:16;default:draft;index"`
	CategoryID  string `gorm:"type:uuid;index"`
	Category    Category
	Headings    []Heading
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time `gorm:"index"`
}

// BeforeCreate 在未显式指定时生成 UUID 主键。
func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Heading 记录文章目录中的一个条目，按 position 升序展示。
type Heading struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    string `gorm:"type:uuid;index"`
	Title     string `gorm:"size:255"`
	Slug      string `gorm:"size:255"`
	Level     int
	Position  int `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
