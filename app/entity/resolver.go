package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/tagfeed/app/cms"
)

// ErrNotFound is returned when the requested slug has no tag upstream.
var ErrNotFound = errors.New("entity not found")

// TagDirectory is the subset of the CMS client the resolver needs.
type TagDirectory interface {
	TagBySlug(ctx context.Context, slug string) (*cms.Tag, error)
	SearchTags(ctx context.Context, name string) ([]cms.Tag, error)
}

var _ TagDirectory = (*cms.Client)(nil)

// Entity is the de-duplicated identity behind one or more CMS tags.
type Entity struct {
	Slug        string   `json:"slug"`
	DisplayName string   `json:"displayName"`
	TagIDs      []int    `json:"tagIds"`
	Slugs       []string `json:"slugs"`

	// Fallback is set when name-based discovery failed and only the
	// directly requested tag (plus declared aliases) was used.
	Fallback bool `json:"-"`
}

type Resolver struct {
	tags    TagDirectory
	aliases *AliasTable
}

func NewResolver(tags TagDirectory, aliases *AliasTable) *Resolver {
	return &Resolver{
		tags:    tags,
		aliases: aliases,
	}
}

// Resolve turns slug into the full set of tags naming the same entity.
// Only a missing (or unreachable) primary tag is an error; discovery
// failures degrade to the primary tag alone.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Entity, error) {
	primary, err := r.tags.TagBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, slug, err)
	}
	if primary == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}

	entity := &Entity{
		Slug:        slug,
		DisplayName: primary.Name,
	}
	seen := make(map[int]bool)
	add := func(tag cms.Tag) {
		if seen[tag.ID] {
			return
		}
		seen[tag.ID] = true
		entity.TagIDs = append(entity.TagIDs, tag.ID)
		entity.Slugs = append(entity.Slugs, tag.Slug)
	}

	add(*primary)

	matches, err := r.discoverByName(ctx, primary.Name)
	if err != nil {
		slog.Warn("Tag discovery failed, using primary tag only", "slug", slug, "name", primary.Name, "error", err)
		entity.Fallback = true
	} else if len(matches) == 0 {
		slog.Warn("Tag discovery returned no exact matches, using primary tag only", "slug", slug, "name", primary.Name)
		entity.Fallback = true
	}
	for _, tag := range matches {
		add(tag)
	}

	r.addDeclaredAliases(ctx, slug, entity, add)

	slog.Debug("Entity resolved",
		"slug", slug,
		"name", entity.DisplayName,
		"tag_ids", entity.TagIDs,
		"fallback", entity.Fallback)

	return entity, nil
}

func (r *Resolver) discoverByName(ctx context.Context, name string) ([]cms.Tag, error) {
	candidates, err := r.tags.SearchTags(ctx, name)
	if err != nil {
		return nil, err
	}

	want := NormalizeName(name)
	matches := make([]cms.Tag, 0, len(candidates))
	for _, candidate := range candidates {
		if NormalizeName(candidate.Name) == want {
			matches = append(matches, candidate)
		}
	}
	return matches, nil
}

// addDeclaredAliases pulls in alias slugs from the table that name-based
// discovery missed, e.g. legacy tags with a differently spelled name.
func (r *Resolver) addDeclaredAliases(ctx context.Context, slug string, entity *Entity, add func(cms.Tag)) {
	if r.aliases == nil {
		return
	}

	known := make(map[string]bool, len(entity.Slugs))
	for _, s := range entity.Slugs {
		known[s] = true
	}

	for _, alias := range r.aliases.ExpandAliases(slug) {
		if known[alias] {
			continue
		}
		tag, err := r.tags.TagBySlug(ctx, alias)
		if err != nil {
			slog.Warn("Failed to look up declared alias", "slug", slug, "alias", alias, "error", err)
			continue
		}
		if tag == nil {
			slog.Debug("Declared alias has no tag upstream", "slug", slug, "alias", alias)
			continue
		}
		add(*tag)
	}
}
