package entity

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AliasTable maps a canonical entity slug to every slug known to name the
// same entity. It is built once at startup and never mutated afterwards.
type AliasTable struct {
	groups    map[string][]string // canonical -> [canonical, aliases...]
	canonical map[string]string   // any member -> canonical
}

type aliasEntry struct {
	Aliases []string `yaml:"aliases"`
}

// NewAliasTable builds a table from canonical slug -> alias slugs. The
// canonical slug is always the first member of its own group.
func NewAliasTable(groups map[string][]string) (*AliasTable, error) {
	t := &AliasTable{
		groups:    make(map[string][]string, len(groups)),
		canonical: make(map[string]string),
	}

	primaries := make([]string, 0, len(groups))
	for primary := range groups {
		primaries = append(primaries, primary)
	}
	sort.Strings(primaries)

	for _, rawPrimary := range primaries {
		primary := normalizeSlug(rawPrimary)
		if primary == "" {
			return nil, fmt.Errorf("canonical slug must not be empty")
		}
		if owner, ok := t.canonical[primary]; ok {
			return nil, fmt.Errorf("slug '%s' already belongs to entity '%s'", primary, owner)
		}

		members := []string{primary}
		t.canonical[primary] = primary

		for i, rawAlias := range groups[rawPrimary] {
			alias := normalizeSlug(rawAlias)
			if alias == "" {
				return nil, fmt.Errorf("empty alias at index %d for entity '%s'", i, primary)
			}
			if owner, ok := t.canonical[alias]; ok {
				if owner == primary {
					continue
				}
				return nil, fmt.Errorf("slug '%s' already belongs to entity '%s'", alias, owner)
			}
			t.canonical[alias] = primary
			members = append(members, alias)
		}

		t.groups[primary] = members
	}

	return t, nil
}

// LoadAliasTable reads a YAML alias file. A missing file yields an empty table.
//
//	kendrick-lamar:
//	  aliases:
//	    - kendrick-lamar-2
func LoadAliasTable(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("Alias file not found, using empty alias table", "path", path)
		return NewAliasTable(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var entries map[string]aliasEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	groups := make(map[string][]string, len(entries))
	for primary, entry := range entries {
		groups[primary] = entry.Aliases
	}

	table, err := NewAliasTable(groups)
	if err != nil {
		return nil, fmt.Errorf("invalid alias file %s: %w", path, err)
	}

	slog.Debug("Alias table loaded", "path", path, "entities", table.Count())
	return table, nil
}

// ResolveCanonicalSlug returns the canonical form of slug, or slug itself if
// the table does not know it.
func (t *AliasTable) ResolveCanonicalSlug(slug string) string {
	if primary, ok := t.canonical[normalizeSlug(slug)]; ok {
		return primary
	}
	return slug
}

// ExpandAliases returns every slug of the entity slug belongs to, canonical
// first, or just slug when unknown.
func (t *AliasTable) ExpandAliases(slug string) []string {
	primary, ok := t.canonical[normalizeSlug(slug)]
	if !ok {
		return []string{slug}
	}
	members := t.groups[primary]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// IsAlias reports whether slug is a registered non-canonical member.
func (t *AliasTable) IsAlias(slug string) bool {
	primary, ok := t.canonical[normalizeSlug(slug)]
	return ok && primary != normalizeSlug(slug)
}

// Count returns the number of entities in the table.
func (t *AliasTable) Count() int {
	return len(t.groups)
}

// Groups returns a copy of the table keyed by canonical slug.
func (t *AliasTable) Groups() map[string][]string {
	out := make(map[string][]string, len(t.groups))
	for primary, members := range t.groups {
		out[primary] = append([]string(nil), members...)
	}
	return out
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
