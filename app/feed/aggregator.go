package feed

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ArticleSource is what the aggregator reads articles from.
type ArticleSource interface {
	FetchByTag(ctx context.Context, tagID, pageSize, page int) ([]Article, bool, error)
	FetchBatch(ctx context.Context, tagID, size int) ([]Article, error)
	ArticleBySlug(ctx context.Context, slug string) (*Article, error)
}

var _ ArticleSource = (*Fetcher)(nil)

var ErrNoTags = errors.New("no tag IDs given")

// MaxPage is the deepest page served. Later cursors get an empty page.
const MaxPage = 100

// Aggregator builds feed pages across one or more tags and applies pins.
type Aggregator struct {
	articles  ArticleSource
	pageSize  int
	overfetch int
}

func NewAggregator(articles ArticleSource, pageSize, overfetch int) *Aggregator {
	return &Aggregator{
		articles:  articles,
		pageSize:  pageSize,
		overfetch: overfetch,
	}
}

func (a *Aggregator) PageSize() int {
	return a.pageSize
}

// Run builds the requested page. A single tag is paginated by the CMS and
// its errors are returned. Multiple tags are fetched concurrently, and a
// tag that fails contributes nothing.
func (a *Aggregator) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.TagIDs) == 0 {
		return nil, ErrNoTags
	}
	page := max(req.Page, 1)

	result := &Result{
		TagIDs:   req.TagIDs,
		MultiTag: len(req.TagIDs) > 1,
		Pin:      PinResult{Requested: req.PinSlug, Action: PinNone},
	}

	switch {
	case page > MaxPage:
		slog.Debug("Cursor past last served page", "page", page, "max_page", MaxPage)
		result.Page = Page{Items: []Article{}}
	case result.MultiTag:
		items, next, failed := a.merged(ctx, req.TagIDs, page)
		result.Page = Page{Items: items, NextCursor: next}
		result.FailedTags = failed
	default:
		items, hasMore, err := a.articles.FetchByTag(ctx, req.TagIDs[0], a.pageSize, page)
		if err != nil {
			return nil, err
		}
		result.Page = Page{Items: items}
		if hasMore {
			result.Page.NextCursor = cursor(page + 1)
		}
	}

	if page >= MaxPage {
		result.Page.NextCursor = nil
	}
	if result.Page.Items == nil {
		result.Page.Items = []Article{}
	}

	if req.PinSlug != "" {
		result.Page.Items, result.Pin = a.pin(ctx, result.Page.Items, req.PinSlug)
	}

	return result, nil
}

func (a *Aggregator) merged(ctx context.Context, tagIDs []int, page int) ([]Article, *string, []int) {
	size := max(a.pageSize*a.overfetch, page*a.pageSize)
	batches := make([][]Article, len(tagIDs))
	errs := make([]error, len(tagIDs))

	var g errgroup.Group
	for i, tagID := range tagIDs {
		g.Go(func() error {
			batch, err := a.articles.FetchBatch(ctx, tagID, size)
			if err != nil {
				slog.Warn("Failed to fetch tag batch, skipping", "tag_id", tagID, "error", err)
				errs[i] = err
				return nil
			}
			batches[i] = batch
			return nil
		})
	}
	_ = g.Wait()

	var failed []int
	for i, err := range errs {
		if err != nil {
			failed = append(failed, tagIDs[i])
		}
	}
	if len(failed) == len(tagIDs) {
		slog.Warn("All tag fetches failed, returning empty feed", "tag_ids", tagIDs)
	}

	articles := SortByDate(Merge(batches...))
	items, next := Paginate(articles, page, a.pageSize)
	return items, next, failed
}

func (a *Aggregator) pin(ctx context.Context, items []Article, slug string) ([]Article, PinResult) {
	result := PinResult{Requested: slug, Action: PinNone}

	pinned, err := a.articles.ArticleBySlug(ctx, slug)
	if err != nil {
		slog.Warn("Failed to resolve pinned article", "slug", slug, "error", err)
		result.Reason = err.Error()
		return items, result
	}
	if pinned == nil {
		slog.Debug("Pinned article not found", "slug", slug)
		result.Reason = "article not found"
		return items, result
	}

	items, result.Action = ApplyPin(items, *pinned)
	result.Applied = true
	return items, result
}

// Merge concatenates batches in order, keeping the first article seen for
// each ID.
func Merge(batches ...[]Article) []Article {
	seen := make(map[string]struct{})
	var merged []Article
	for _, batch := range batches {
		for _, article := range batch {
			if _, ok := seen[article.ID]; ok {
				continue
			}
			seen[article.ID] = struct{}{}
			merged = append(merged, article)
		}
	}
	return merged
}

// SortByDate orders articles newest first. Articles without a parseable
// date go last, keeping their relative order.
func SortByDate(articles []Article) []Article {
	type keyed struct {
		article Article
		ok      bool
		unix    int64
	}

	items := make([]keyed, len(articles))
	for i, article := range articles {
		t, ok := articleTime(article)
		items[i] = keyed{article: article, ok: ok, unix: t.UnixNano()}
	}

	slices.SortStableFunc(items, func(x, y keyed) int {
		switch {
		case x.ok && !y.ok:
			return -1
		case !x.ok && y.ok:
			return 1
		case !x.ok && !y.ok:
			return 0
		}
		return cmp.Compare(y.unix, x.unix)
	})

	sorted := make([]Article, len(items))
	for i, item := range items {
		sorted[i] = item.article
	}
	return sorted
}

// Paginate returns the 1-based page of articles. The next cursor is set
// whenever the page is full.
func Paginate(articles []Article, page, pageSize int) ([]Article, *string) {
	page = max(page, 1)
	if pageSize <= 0 || page-1 > len(articles)/pageSize {
		return []Article{}, nil
	}
	start := min((page-1)*pageSize, len(articles))
	end := min(page*pageSize, len(articles))

	items := make([]Article, end-start)
	copy(items, articles[start:end])

	if len(items) == pageSize {
		return items, cursor(page + 1)
	}
	return items, nil
}

// ApplyPin puts pinned first. An article already on the page is moved,
// otherwise pinned is added and the page grows by one.
func ApplyPin(items []Article, pinned Article) ([]Article, PinAction) {
	idx := slices.IndexFunc(items, func(a Article) bool { return a.ID == pinned.ID })

	switch {
	case idx == 0:
		return items, PinKept
	case idx > 0:
		out := make([]Article, 0, len(items))
		out = append(out, items[idx])
		out = append(out, items[:idx]...)
		out = append(out, items[idx+1:]...)
		return out, PinMoved
	}

	out := make([]Article, 0, len(items)+1)
	out = append(out, pinned)
	out = append(out, items...)
	return out, PinInserted
}

func cursor(page int) *string {
	s := strconv.Itoa(page)
	return &s
}
