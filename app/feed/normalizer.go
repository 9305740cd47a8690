package feed

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lysyi3m/tagfeed/app/cms"
)

const (
	// DisplayDateLayout is used for articles older than RelativeDateWindow.
	DisplayDateLayout  = "January 2, 2006"
	RelativeDateWindow = 7 * 24 * time.Hour

	cmsDateLayout = "2006-01-02T15:04:05"
)

// Normalizer converts CMS posts into feed articles.
type Normalizer struct {
	cleaner *ContentCleaner
	now     func() time.Time
}

func NewNormalizer(cleaner *ContentCleaner) *Normalizer {
	return &Normalizer{
		cleaner: cleaner,
		now:     time.Now,
	}
}

func (n *Normalizer) Run(post cms.Post) Article {
	content, embeds, err := n.cleaner.Run(post.Content.Rendered)
	if err != nil {
		slog.Warn("Failed to clean post content, using it as is", "slug", post.Slug, "error", err)
		content = post.Content.Rendered
		embeds = nil
	}

	article := Article{
		ID:       post.Slug,
		Slug:     post.Slug,
		Title:    n.cleaner.PlainText(post.Title.Rendered),
		Content:  content,
		Excerpt:  n.cleaner.PlainText(post.Excerpt.Rendered),
		Image:    post.FeaturedImage(),
		Category: post.CategoryName(),
		Author:   post.AuthorName(),
		Link:     post.Link,
		Comments: 0,
		Embeds:   embeds,
	}

	if published, ok := postDate(post); ok {
		article.RawDate = published.UTC().Format(time.RFC3339)
		article.Date = FormatDisplayDate(published, n.now())
	} else {
		article.RawDate = post.Date
		article.Date = post.Date
	}

	return article
}

func (n *Normalizer) RunAll(posts []cms.Post) []Article {
	articles := make([]Article, 0, len(posts))
	for _, post := range posts {
		articles = append(articles, n.Run(post))
	}
	return articles
}

// FormatDisplayDate renders t relative to now ("3 hours ago") within
// RelativeDateWindow and as an absolute date beyond it.
func FormatDisplayDate(t, now time.Time) string {
	age := now.Sub(t)
	if age >= 0 && age < RelativeDateWindow {
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.In(time.Local).Format(DisplayDateLayout)
}

func postDate(post cms.Post) (time.Time, bool) {
	if post.DateGMT != "" {
		if t, err := time.ParseInLocation(cmsDateLayout, post.DateGMT, time.UTC); err == nil {
			return t, true
		}
	}
	if post.Date != "" {
		if t, err := time.ParseInLocation(cmsDateLayout, post.Date, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// articleTime is the sort key of an article: RawDate, else the display
// date. ok is false when neither parses.
func articleTime(a Article) (time.Time, bool) {
	if a.RawDate != "" {
		if t, err := time.Parse(time.RFC3339, a.RawDate); err == nil {
			return t, true
		}
		if t, err := time.ParseInLocation(cmsDateLayout, a.RawDate, time.Local); err == nil {
			return t, true
		}
	}
	if a.Date != "" {
		if t, err := time.ParseInLocation(DisplayDateLayout, a.Date, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
