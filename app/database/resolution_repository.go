package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ ResolutionRepository = (*ResolutionRepositoryImpl)(nil)

type ResolutionRepositoryImpl struct {
	db *DB
}

func NewResolutionRepository(db *DB) *ResolutionRepositoryImpl {
	return &ResolutionRepositoryImpl{db: db}
}

// UpsertResolution stores the latest outcome for a slug and counts the hit.
func (r *ResolutionRepositoryImpl) UpsertResolution(resolution Resolution) error {
	tagIDs, err := json.Marshal(nonNil(resolution.TagIDs))
	if err != nil {
		return fmt.Errorf("failed to encode tag IDs: %w", err)
	}
	slugs, err := json.Marshal(nonNil(resolution.Slugs))
	if err != nil {
		return fmt.Errorf("failed to encode slugs: %w", err)
	}

	resolvedAt := resolution.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now()
	}

	_, err = r.db.Exec(`
		INSERT INTO entity_resolutions (
			slug, display_name, tag_ids, slugs, fallback, hits, first_seen_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			display_name = excluded.display_name,
			tag_ids = excluded.tag_ids,
			slugs = excluded.slugs,
			fallback = excluded.fallback,
			hits = entity_resolutions.hits + 1,
			resolved_at = excluded.resolved_at
	`, resolution.Slug, resolution.DisplayName, string(tagIDs), string(slugs),
		resolution.Fallback, resolvedAt.Unix(), resolvedAt.Unix())

	if err != nil {
		return fmt.Errorf("failed to upsert resolution: %w", err)
	}

	return nil
}

func (r *ResolutionRepositoryImpl) GetResolution(slug string) (*Resolution, error) {
	row := r.db.QueryRow(`
		SELECT slug, display_name, tag_ids, slugs, fallback, hits, first_seen_at, resolved_at
		FROM entity_resolutions
		WHERE slug = ?
	`, slug)

	resolution, err := scanResolution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution: %w", err)
	}

	return resolution, nil
}

// GetResolutions returns the most recently resolved entries first.
func (r *ResolutionRepositoryImpl) GetResolutions(limit int) ([]Resolution, error) {
	rows, err := r.db.Query(`
		SELECT slug, display_name, tag_ids, slugs, fallback, hits, first_seen_at, resolved_at
		FROM entity_resolutions
		ORDER BY resolved_at DESC, slug ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []Resolution
	for rows.Next() {
		resolution, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		resolutions = append(resolutions, *resolution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resolutions: %w", err)
	}

	return resolutions, nil
}

func (r *ResolutionRepositoryImpl) GetResolutionCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM entity_resolutions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count resolutions: %w", err)
	}
	return count, nil
}

func (r *ResolutionRepositoryImpl) DeleteResolutionsBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM entity_resolutions WHERE resolved_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolutions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted row count: %w", err)
	}

	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResolution(row rowScanner) (*Resolution, error) {
	var (
		resolution  Resolution
		tagIDs      string
		slugs       string
		firstSeenAt int64
		resolvedAt  int64
	)

	err := row.Scan(&resolution.Slug, &resolution.DisplayName, &tagIDs, &slugs,
		&resolution.Fallback, &resolution.Hits, &firstSeenAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagIDs), &resolution.TagIDs); err != nil {
		return nil, fmt.Errorf("failed to decode tag IDs: %w", err)
	}
	if err := json.Unmarshal([]byte(slugs), &resolution.Slugs); err != nil {
		return nil, fmt.Errorf("failed to decode slugs: %w", err)
	}

	resolution.FirstSeenAt = time.Unix(firstSeenAt, 0)
	resolution.ResolvedAt = time.Unix(resolvedAt, 0)

	return &resolution, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
