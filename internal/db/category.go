package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category 定义了分类模型，通过可选的 parent 引用构成自引用树。
type Category struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	ParentID    *string `gorm:"type:uuid;index"`
	Parent      *Category
	Name        string `gorm:"size:128"`
	Title       string `gorm:"size:255"`
	Description string
	Thumbnail   string
	Slug        string `gorm:"size:128;uniqueIndex"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeforeCreate 在未显式指定时生成 UUID 主键。
func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
