package service

import (
	"testing"

	"github.com/apholdings/blogapi/internal/cache"
	"github.com/apholdings/blogapi/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
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

	return gdb
}

func newTestStore(t *testing.T) cache.Store {
	t.Helper()

	store := cache.NewMemoryStore()
	t.Cleanup(store.Stop)
	return store
}

func createTestCategory(t *testing.T, gdb *gorm.DB, name, slug string, parentID *string) db.Category {
	t.Helper()

	category := db.Category{Name: name, Title: name, Slug: slug, ParentID: parentID}
	if err := gdb.Create(&category).Error; err != nil {
		t.Fatalf("failed to create category %s: %v", slug, err)
	}
	return category
}

func createTestPost(t *testing.T, gdb *gorm.DB, title, slug, categoryID string) db.Post {
	t.Helper()

	post := db.Post{
		Title:      title,
		Content:    "content of " + title,
		Slug:       slug,
		Status:     db.StatusPublished,
		CategoryID: categoryID,
	}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("failed to create post %s: %v", slug, err)
	}
	return post
}
