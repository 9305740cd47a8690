package tasks

import (
	"context"
	"time"
)

type TaskType string

const (
	TaskTypeRecordResolution TaskType = "record_resolution"
	TaskTypePruneResolutions TaskType = "prune_resolutions"
)

const maxRetries = 3

// TaskInterface is background work the Scheduler can run and retry.
type TaskInterface interface {
	Execute(ctx context.Context) error
	GetType() TaskType
	GetSubject() string
	state() *Task
}

// Task carries the bookkeeping shared by every task kind. Embed it.
type Task struct {
	Type    TaskType
	Subject string // entity slug or table the task works on
	Retries int

	startedAt time.Time
}

func newTask(taskType TaskType, subject string) Task {
	return Task{Type: taskType, Subject: subject}
}

func (t *Task) GetType() TaskType  { return t.Type }
func (t *Task) GetSubject() string { return t.Subject }
func (t *Task) state() *Task       { return t }

// retry records another attempt and reports whether one was allowed.
func (t *Task) retry() bool {
	if t.Retries >= maxRetries {
		return false
	}
	t.Retries++
	return true
}

func (t *Task) elapsed() time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	return time.Since(t.startedAt)
}
