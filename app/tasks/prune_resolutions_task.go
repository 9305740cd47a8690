package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/tagfeed/app/database"
)

type PruneResolutionsTask struct {
	Task
	Retention      time.Duration
	resolutionRepo database.ResolutionRepository
	now            func() time.Time
}

func NewPruneResolutionsTask(retention time.Duration, resolutionRepo database.ResolutionRepository) *PruneResolutionsTask {
	return &PruneResolutionsTask{
		Task:           newTask(TaskTypePruneResolutions, "entity_resolutions"),
		Retention:      retention,
		resolutionRepo: resolutionRepo,
		now:            time.Now,
	}
}

func (t *PruneResolutionsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cutoff := t.now().Add(-t.Retention)

	deleted, err := t.resolutionRepo.DeleteResolutionsBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune resolutions: %w", err)
	}

	slog.Info("Task completed",
		"type", "PruneResolutions",
		"cutoff", cutoff.Format(time.RFC3339),
		"deleted", deleted,
		"duration", t.elapsed())

	return nil
}
