package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/lysyi3m/tagfeed/app/cms"
)

type fakePosts struct {
	mu     sync.Mutex
	total  int
	err    error
	calls  []string
	bySlug map[string]cms.Post
}

func (f *fakePosts) Posts(ctx context.Context, tagIDs []int, perPage, page int) (*cms.PostsPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%v/%d/%d", tagIDs, perPage, page))
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	var posts []cms.Post
	for i := (page - 1) * perPage; i < min(page*perPage, f.total); i++ {
		posts = append(posts, cms.Post{
			ID:      i,
			Slug:    fmt.Sprintf("post-%d", i),
			DateGMT: fmt.Sprintf("2024-01-01T00:%02d:00", 59-i%60),
		})
	}
	return &cms.PostsPage{
		Posts:   posts,
		Page:    page,
		HasMore: page*perPage < f.total,
	}, nil
}

func (f *fakePosts) PostBySlug(ctx context.Context, slug string) (*cms.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	post, ok := f.bySlug[slug]
	if !ok {
		return nil, nil
	}
	return &post, nil
}

func newTestFetcher(posts PostSource) *Fetcher {
	return NewFetcher(posts, NewNormalizer(NewContentCleaner()))
}

func TestFetchByTag(t *testing.T) {
	posts := &fakePosts{total: 25}
	fetcher := newTestFetcher(posts)

	articles, hasMore, err := fetcher.FetchByTag(context.Background(), 42, 10, 2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(articles) != 10 {
		t.Errorf("Expected 10 articles, got %d", len(articles))
	}

	if !hasMore {
		t.Error("Expected more pages to be reported")
	}

	if articles[0].ID != "post-10" {
		t.Errorf("Expected first article 'post-10', got '%s'", articles[0].ID)
	}

	if articles[0].RawDate != "2024-01-01T00:49:00Z" {
		t.Errorf("Expected RFC 3339 raw date, got '%s'", articles[0].RawDate)
	}
}

func TestFetchByTagError(t *testing.T) {
	fetcher := newTestFetcher(&fakePosts{err: cms.ErrUpstreamUnavailable})

	_, _, err := fetcher.FetchByTag(context.Background(), 42, 10, 1)
	if !errors.Is(err, cms.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got: %v", err)
	}
}

func TestFetchBatchWalksPages(t *testing.T) {
	posts := &fakePosts{total: 250}
	fetcher := newTestFetcher(posts)

	articles, err := fetcher.FetchBatch(context.Background(), 7, 150)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(articles) != 150 {
		t.Errorf("Expected 150 articles, got %d", len(articles))
	}

	expectedCalls := []string{"[7]/100/1", "[7]/100/2"}
	if len(posts.calls) != len(expectedCalls) {
		t.Fatalf("Expected calls %v, got %v", expectedCalls, posts.calls)
	}
	for i := range expectedCalls {
		if posts.calls[i] != expectedCalls[i] {
			t.Errorf("Expected call %s, got %s", expectedCalls[i], posts.calls[i])
		}
	}
}

func TestFetchBatchStopsWhenExhausted(t *testing.T) {
	posts := &fakePosts{total: 4}
	fetcher := newTestFetcher(posts)

	articles, err := fetcher.FetchBatch(context.Background(), 7, 30)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(articles) != 4 {
		t.Errorf("Expected 4 articles, got %d", len(articles))
	}

	if len(posts.calls) != 1 {
		t.Errorf("Expected a single upstream call, got %v", posts.calls)
	}
}

func TestFetchBatchLargeSizeOnEmptyTag(t *testing.T) {
	posts := &fakePosts{}
	fetcher := newTestFetcher(posts)

	articles, err := fetcher.FetchBatch(context.Background(), 7, 10_000_000)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(articles) != 0 {
		t.Errorf("Expected no articles, got %d", len(articles))
	}
	if cap(articles) > cms.MaxPerPage {
		t.Errorf("Expected capacity at most %d, got %d", cms.MaxPerPage, cap(articles))
	}
	if len(posts.calls) != 1 {
		t.Errorf("Expected a single upstream call, got %v", posts.calls)
	}
}

func TestFetchBatchRejectsEmptySize(t *testing.T) {
	fetcher := newTestFetcher(&fakePosts{})

	if _, err := fetcher.FetchBatch(context.Background(), 7, 0); err == nil {
		t.Error("Expected error for zero batch size")
	}
}

func TestArticleBySlug(t *testing.T) {
	posts := &fakePosts{
		bySlug: map[string]cms.Post{
			"pinned": {Slug: "pinned", Title: cms.Rendered{Rendered: "Pinned &amp; Found"}},
		},
	}
	fetcher := newTestFetcher(posts)

	article, err := fetcher.ArticleBySlug(context.Background(), "pinned")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if article == nil || article.Title != "Pinned & Found" {
		t.Fatalf("Expected decoded pinned article, got %+v", article)
	}

	missing, err := fetcher.ArticleBySlug(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Expected no error for missing article, got: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing article, got %+v", missing)
	}
}

func TestFetcherWithAggregator(t *testing.T) {
	posts := &fakePosts{total: 12}
	aggregator := NewAggregator(newTestFetcher(posts), 10, 3)

	result, err := aggregator.Run(context.Background(), Request{TagIDs: []int{1, 2}, Page: 1})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// both tags return the same posts, so they collapse to one set
	if len(result.Page.Items) != 10 {
		t.Errorf("Expected 10 items, got %d", len(result.Page.Items))
	}

	if result.Page.Items[0].ID != "post-0" {
		t.Errorf("Expected newest article 'post-0' first, got '%s'", result.Page.Items[0].ID)
	}
}
