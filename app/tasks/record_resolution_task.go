package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/tagfeed/app/database"
)

type RecordResolutionTask struct {
	Task
	Resolution     database.Resolution
	resolutionRepo database.ResolutionRepository
}

func NewRecordResolutionTask(resolution database.Resolution, resolutionRepo database.ResolutionRepository) *RecordResolutionTask {
	return &RecordResolutionTask{
		Task:           newTask(TaskTypeRecordResolution, resolution.Slug),
		Resolution:     resolution,
		resolutionRepo: resolutionRepo,
	}
}

func (t *RecordResolutionTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.resolutionRepo.UpsertResolution(t.Resolution); err != nil {
		return fmt.Errorf("failed to record resolution: %w", err)
	}

	slog.Debug("Task completed",
		"type", "RecordResolution",
		"slug", t.Resolution.Slug,
		"tag_ids", t.Resolution.TagIDs,
		"duration", t.elapsed())

	return nil
}
