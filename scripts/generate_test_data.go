package main

import (
	"context"
	"fmt"
	"log"

	"github.com/apholdings/blogapi/internal/config"
	"github.com/apholdings/blogapi/internal/db"
	"github.com/apholdings/blogapi/internal/service"
	"gorm.io/gorm"
)

// 测试数据生成器
func main() {
	cfg := config.Load()
	gdb, err := db.Init(cfg.DatabasePath)
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	ctx := context.Background()

	createCategories(gdb)

	seeder := service.NewFakeDataService(gdb)
	created, err := seeder.GeneratePosts(ctx, 50)
	if err != nil {
		log.Fatal("文章生成失败:", err)
	}

	generated, err := seeder.GenerateAnalytics(ctx)
	if err != nil {
		log.Fatal("统计数据生成失败:", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Printf("文章: %d 篇\n", created)
	fmt.Printf("统计记录: %d 份\n", generated)
}

// 创建测试分类
func createCategories(gdb *gorm.DB) {
	var count int64
	gdb.Model(&db.Category{}).Count(&count)
	if count > 0 {
		fmt.Println("分类已存在，跳过创建")
		return
	}

	names := []string{"Technology", "Fiction", "Travel", "Design", "Science"}
	for _, name := range names {
		category := db.Category{
			Name:        name,
			Title:       name,
			Description: name + " related posts",
			Slug:        service.Slugify(name),
		}
		gdb.Create(&category)
	}

	// 给 Technology 挂一个子分类，方便演示 parent_slug 过滤
	var parent db.Category
	if err := gdb.Where("slug = ?", "technology").First(&parent).Error; err == nil {
		child := db.Category{
			Name:        "Backend",
			Title:       "Backend",
			Description: "Backend engineering posts",
			Slug:        "backend",
			ParentID:    &parent.ID,
		}
		gdb.Create(&child)
	}

	fmt.Println("✅ 测试分类创建完成")
}
