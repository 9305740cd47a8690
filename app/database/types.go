package database

import (
	"time"
)

// Resolution is the last known outcome of resolving an entity slug.
type Resolution struct {
	Slug        string
	DisplayName string
	TagIDs      []int
	Slugs       []string
	Fallback    bool      // name discovery failed, only the primary tag was used
	Hits        int       // number of times the slug was resolved
	FirstSeenAt time.Time
	ResolvedAt  time.Time
}
