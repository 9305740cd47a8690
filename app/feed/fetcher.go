package feed

import (
	"context"
	"fmt"

	"github.com/lysyi3m/tagfeed/app/cms"
)

// PostSource is the subset of the CMS client the fetcher needs.
type PostSource interface {
	Posts(ctx context.Context, tagIDs []int, perPage, page int) (*cms.PostsPage, error)
	PostBySlug(ctx context.Context, slug string) (*cms.Post, error)
}

var _ PostSource = (*cms.Client)(nil)

// Fetcher reads articles for a tag from the CMS. Errors are returned as
// is; tolerating them is up to the caller.
type Fetcher struct {
	posts      PostSource
	normalizer *Normalizer
}

func NewFetcher(posts PostSource, normalizer *Normalizer) *Fetcher {
	return &Fetcher{
		posts:      posts,
		normalizer: normalizer,
	}
}

// FetchByTag returns one CMS page of articles for tagID, newest first.
func (f *Fetcher) FetchByTag(ctx context.Context, tagID, pageSize, page int) ([]Article, bool, error) {
	result, err := f.posts.Posts(ctx, []int{tagID}, pageSize, page)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch tag %d page %d: %w", tagID, page, err)
	}

	return f.normalizer.RunAll(result.Posts), result.HasMore, nil
}

// FetchBatch returns up to size of the newest articles for tagID, reading
// as many CMS pages as needed.
func (f *Fetcher) FetchBatch(ctx context.Context, tagID, size int) ([]Article, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}

	perPage := min(size, cms.MaxPerPage)
	articles := make([]Article, 0, perPage)

	for page := 1; len(articles) < size; page++ {
		batch, hasMore, err := f.FetchByTag(ctx, tagID, perPage, page)
		if err != nil {
			return nil, err
		}

		articles = append(articles, batch...)
		if !hasMore || len(batch) == 0 {
			break
		}
	}

	if len(articles) > size {
		articles = articles[:size]
	}
	return articles, nil
}

// ArticleBySlug returns the article with the exact slug, or nil if none exists.
func (f *Fetcher) ArticleBySlug(ctx context.Context, slug string) (*Article, error) {
	post, err := f.posts.PostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}

	article := f.normalizer.Run(*post)
	return &article, nil
}
