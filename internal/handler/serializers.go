package handler

import (
	"bytes"
	"time"

	"github.com/apholdings/blogapi/internal/db"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

type categoryBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type categoryListItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Slug        string `json:"slug"`
	Views       uint64 `json:"views"`
}

type postListItem struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Thumbnail   string        `json:"thumbnail"`
	Keywords    string        `json:"keywords"`
	Slug        string        `json:"slug"`
	Category    categoryBrief `json:"category"`
	Views       uint64        `json:"views"`
}

type analyticsView struct {
	Impressions      uint64  `json:"impressions"`
	Views            uint64  `json:"views"`
	Clicks           uint64  `json:"clicks"`
	AvgTimeOnPage    float64 `json:"avg_time_on_page"`
	ClickThroughRate float64 `json:"click_through_rate"`
}

type postDetail struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Content     string        `json:"content"`
	ContentHTML string        `json:"content_html"`
	Thumbnail   string        `json:"thumbnail"`
	Keywords    string        `json:"keywords"`
	Slug        string        `json:"slug"`
	Category    categoryBrief `json:"category"`
	Analytics   analyticsView `json:"analytics"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type headingView struct {
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Level    int    `json:"level"`
	Position int    `json:"position"`
}

func serializeCategoryBrief(category db.Category) categoryBrief {
	return categoryBrief{ID: category.ID, Name: category.Name, Slug: category.Slug}
}

func serializePostList(posts []db.Post, stats map[string]*db.AnalyticsRecord) []postListItem {
	items := make([]postListItem, 0, len(posts))
	for _, post := range posts {
		item := postListItem{
			ID:          post.ID,
			Title:       post.Title,
			Description: post.Description,
			Thumbnail:   post.Thumbnail,
			Keywords:    post.Keywords,
			Slug:        post.Slug,
			Category:    serializeCategoryBrief(post.Category),
		}
		if record, ok := stats[post.ID]; ok {
			item.Views = record.Views
		}
		items = append(items, item)
	}
	return items
}

func serializeCategoryList(categories []db.Category, stats map[string]*db.AnalyticsRecord) []categoryListItem {
	items := make([]categoryListItem, 0, len(categories))
	for _, category := range categories {
		item := categoryListItem{
			ID:          category.ID,
			Name:        category.Name,
			Title:       category.Title,
			Description: category.Description,
			Thumbnail:   category.Thumbnail,
			Slug:        category.Slug,
		}
		if record, ok := stats[category.ID]; ok {
			item.Views = record.Views
		}
		items = append(items, item)
	}
	return items
}

func serializePostDetail(post *db.Post, record *db.AnalyticsRecord) postDetail {
	detail := postDetail{
		ID:          post.ID,
		Title:       post.Title,
		Description: post.Description,
		Content:     post.Content,
		ContentHTML: renderMarkdown(post.Content),
		Thumbnail:   post.Thumbnail,
		Keywords:    post.Keywords,
		Slug:        post.Slug,
		Category:    serializeCategoryBrief(post.Category),
		CreatedAt:   post.CreatedAt,
		UpdatedAt:   post.UpdatedAt,
	}
	if record != nil {
		detail.Analytics = analyticsView{
			Impressions:      record.Impressions,
			Views:            record.Views,
			Clicks:           record.Clicks,
			AvgTimeOnPage:    record.AvgTimeOnPage,
			ClickThroughRate: record.ClickThroughRate,
		}
	}
	return detail
}

func serializeHeadings(headings []db.Heading) []headingView {
	views := make([]headingView, 0, len(headings))
	for _, heading := range headings {
		views = append(views, headingView{
			Title:    heading.Title,
			Slug:     heading.Slug,
			Level:    heading.Level,
			Position: heading.Position,
		})
	}
	return views
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes()))
}
