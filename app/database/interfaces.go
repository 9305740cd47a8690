package database

import (
	"time"
)

type ResolutionRepository interface {
	GetResolution(slug string) (*Resolution, error)
	GetResolutions(limit int) ([]Resolution, error)
	GetResolutionCount() (int, error)

	UpsertResolution(resolution Resolution) error
	DeleteResolutionsBefore(cutoff time.Time) (int64, error)
}
