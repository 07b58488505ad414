package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/apholdings/blogapi/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoCategories 表示还没有可以挂载文章的分类。
var ErrNoCategories = errors.New("no categories available to assign posts to")

var (
	fakeWords = []string{
		"latency", "cache", "signal", "orbit", "ledger", "vector", "canvas",
		"horizon", "syntax", "maple", "quartz", "drift", "prism", "anchor",
		"cipher", "meadow", "pulse", "summit", "ember", "tide",
	}
	fakeStatuses = []string{db.StatusDraft, db.StatusPublished}
)

// FakeDataService 批量生成演示用的文章与统计数据。
type FakeDataService struct {
	db *gorm.DB
}

// NewFakeDataService creates a FakeDataService instance.
func NewFakeDataService(gdb *gorm.DB) *FakeDataService {
	return &FakeDataService{db: gdb}
}

// GeneratePosts 生成 count 篇随机文章并为每篇附带目录条目。
func (s *FakeDataService) GeneratePosts(ctx context.Context, count int) (int, error) {
	if count <= 0 {
		count = 100
	}

	var categories []db.Category
	if err := s.db.WithContext(ctx).Find(&categories).Error; err != nil {
		return 0, fmt.Errorf("load categories: %w", err)
	}
	if len(categories) == 0 {
		return 0, ErrNoCategories
	}

	for i := 0; i < count; i++ {
		title := fakeSentence(6)
		post := db.Post{
			ID:          uuid.NewString(),
			Title:       title,
			Description: fakeSentence(12),
			Content:     fakeParagraph(5),
			Keywords:    strings.Join(pickWords(5), ", "),
			Slug:        Slugify(title) + "-" + uuid.NewString()[:8],
			Status:      fakeStatuses[rand.Intn(len(fakeStatuses))],
			CategoryID:  categories[rand.Intn(len(categories))].ID,
		}

		if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
			return i, fmt.Errorf("create fake post: %w", err)
		}

		headings := fakeHeadings(post.ID)
		if err := s.db.WithContext(ctx).Create(&headings).Error; err != nil {
			return i, fmt.Errorf("create fake headings: %w", err)
		}
	}
	return count, nil
}

// GenerateAnalytics 为每篇文章生成一份随机统计记录。
// 浏览数不超过展示数，点击数不超过浏览数，点击率始终由计数器重算。
func (s *FakeDataService) GenerateAnalytics(ctx context.Context) (int, error) {
	var posts []db.Post
	if err := s.db.WithContext(ctx).Find(&posts).Error; err != nil {
		return 0, fmt.Errorf("load posts: %w", err)
	}
	if len(posts) == 0 {
		return 0, ErrNoPostsFound
	}

	for _, post := range posts {
		views := uint64(50 + rand.Intn(951))
		record := db.AnalyticsRecord{
			EntityType:    db.EntityTypePost,
			EntityID:      post.ID,
			Views:         views,
			Impressions:   views + uint64(100+rand.Intn(1901)),
			Clicks:        uint64(rand.Intn(int(views) + 1)),
			AvgTimeOnPage: 10 + rand.Float64()*290,
		}
		record.RecomputeCTR()

		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"impressions", "views", "clicks", "avg_time_on_page", "click_through_rate",
			}),
		}).Create(&record).Error
		if err != nil {
			return 0, fmt.Errorf("upsert analytics for %s: %w", post.ID, err)
		}
	}
	return len(posts), nil
}

// Slugify 把标题转成 URL 友好的 slug。
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func pickWords(n int) []string {
	words := make([]string, 0, n)
	for i := 0; i < n; i++ {
		words = append(words, fakeWords[rand.Intn(len(fakeWords))])
	}
	return words
}

func fakeSentence(words int) string {
	sentence := strings.Join(pickWords(words), " ")
	return strings.ToUpper(sentence[:1]) + sentence[1:] + "."
}

func fakeParagraph(sentences int) string {
	parts := make([]string, 0, sentences)
	for i := 0; i < sentences; i++ {
		parts = append(parts, fakeSentence(8+rand.Intn(6)))
	}
	return strings.Join(parts, " ")
}

func fakeHeadings(postID string) []db.Heading {
	count := 2 + rand.Intn(3)
	headings := make([]db.Heading, 0, count)
	for i := 0; i < count; i++ {
		title := fakeSentence(4)
		headings = append(headings, db.Heading{
			PostID:   postID,
			Title:    title,
			Slug:     Slugify(title),
			Level:    2 + rand.Intn(2),
			Position: i + 1,
		})
	}
	return headings
}
