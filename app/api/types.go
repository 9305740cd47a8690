package api

import (
	"context"

	"github.com/lysyi3m/tagfeed/app/database"
	"github.com/lysyi3m/tagfeed/app/entity"
	"github.com/lysyi3m/tagfeed/app/feed"
	"github.com/lysyi3m/tagfeed/app/tasks"
)

type ResolverInterface interface {
	Resolve(ctx context.Context, slug string) (*entity.Entity, error)
}

type AggregatorInterface interface {
	Run(ctx context.Context, req feed.Request) (*feed.Result, error)
}

type ArticleFinderInterface interface {
	ArticleBySlug(ctx context.Context, slug string) (*feed.Article, error)
}

type GeneratorInterface interface {
	Run(channel feed.Channel, items []feed.Article) (string, error)
}

var (
	_ ResolverInterface      = (*entity.Resolver)(nil)
	_ AggregatorInterface    = (*feed.Aggregator)(nil)
	_ ArticleFinderInterface = (*feed.Fetcher)(nil)
	_ GeneratorInterface     = (*feed.Generator)(nil)
)

type Handler struct {
	resolver       ResolverInterface
	aliases        *entity.AliasTable
	aggregator     AggregatorInterface
	articles       ArticleFinderInterface
	generator      GeneratorInterface
	resolutionRepo database.ResolutionRepository
	scheduler      tasks.TaskSchedulerInterface
}

// receivedInfo echoes the parsed request in debug responses.
type receivedInfo struct {
	TagIDs     []int  `json:"tagIds"`
	Cursor     string `json:"cursor"`
	Page       int    `json:"page"`
	PinSlug    string `json:"pinSlug"`
	MultiTag   bool   `json:"multiTag"`
	FailedTags []int  `json:"failedTags"`
}

type datePreview struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	RawDate string `json:"rawDate"`
}
