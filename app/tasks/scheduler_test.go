package tasks

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/tagfeed/app/cfg"
	"github.com/lysyi3m/tagfeed/app/database"
)

func setupTestConfig() {
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	cfg.Load()
}

type mockResolutionRepository struct {
	mu        sync.Mutex
	upserted  []database.Resolution
	cutoffs   []time.Time
	upsertErr error
	deleteErr error
}

func (m *mockResolutionRepository) GetResolution(slug string) (*database.Resolution, error) {
	return nil, nil
}

func (m *mockResolutionRepository) GetResolutions(limit int) ([]database.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.Resolution(nil), m.upserted...), nil
}

func (m *mockResolutionRepository) GetResolutionCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserted), nil
}

func (m *mockResolutionRepository) UpsertResolution(resolution database.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, resolution)
	return nil
}

func (m *mockResolutionRepository) DeleteResolutionsBefore(cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.cutoffs = append(m.cutoffs, cutoff)
	return 0, nil
}

func (m *mockResolutionRepository) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserted), len(m.cutoffs)
}

var _ database.ResolutionRepository = (*mockResolutionRepository)(nil)

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestSchedulerRecordsResolutionAndPrunes(t *testing.T) {
	setupTestConfig()
	repo := &mockResolutionRepository{}

	scheduler := NewScheduler(repo)
	scheduler.Start()
	defer scheduler.Stop()

	task := NewRecordResolutionTask(database.Resolution{
		Slug:        "kendrick-lamar",
		DisplayName: "Kendrick Lamar",
		TagIDs:      []int{501, 502},
	}, repo)

	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected task to be enqueued, got: %v", err)
	}

	waitFor(t, func() bool {
		upserted, pruned := repo.counts()
		return upserted == 1 && pruned == 1
	})

	resolutions, _ := repo.GetResolutions(10)
	if resolutions[0].Slug != "kendrick-lamar" {
		t.Errorf("Expected recorded slug 'kendrick-lamar', got '%s'", resolutions[0].Slug)
	}
}

func TestSchedulerRetriesFailedTask(t *testing.T) {
	setupTestConfig()
	repo := &mockResolutionRepository{upsertErr: errors.New("database is locked")}

	scheduler := NewScheduler(repo)
	scheduler.Start()
	defer scheduler.Stop()

	task := NewRecordResolutionTask(database.Resolution{Slug: "retry"}, repo)
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected task to be enqueued, got: %v", err)
	}

	// first retry fires after one second
	time.Sleep(100 * time.Millisecond)
	repo.mu.Lock()
	repo.upsertErr = nil
	repo.mu.Unlock()

	waitFor(t, func() bool {
		upserted, _ := repo.counts()
		return upserted == 1
	})

	if task.Retries != 1 {
		t.Errorf("Expected 1 retry, got %d", task.Retries)
	}
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	setupTestConfig()
	repo := &mockResolutionRepository{}
	scheduler := NewScheduler(repo)

	for i := 0; i < cap(scheduler.taskQueue); i++ {
		if err := scheduler.EnqueueTask(NewRecordResolutionTask(database.Resolution{Slug: "s"}, repo)); err != nil {
			t.Fatalf("Expected task %d to be enqueued, got: %v", i, err)
		}
	}

	if err := scheduler.EnqueueTask(NewRecordResolutionTask(database.Resolution{Slug: "s"}, repo)); err == nil {
		t.Error("Expected error when queue is full")
	}
}

func TestEnqueueTaskAfterStop(t *testing.T) {
	setupTestConfig()
	scheduler := NewScheduler(&mockResolutionRepository{})
	scheduler.Start()
	scheduler.Stop()

	err := scheduler.EnqueueTask(NewRecordResolutionTask(database.Resolution{Slug: "late"}, nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestRecordResolutionTaskError(t *testing.T) {
	repo := &mockResolutionRepository{upsertErr: errors.New("disk full")}
	task := NewRecordResolutionTask(database.Resolution{Slug: "x"}, repo)

	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error from failing repository")
	}

	if task.GetSubject() != "x" {
		t.Errorf("Expected subject 'x', got '%s'", task.GetSubject())
	}

	if task.GetType() != TaskTypeRecordResolution {
		t.Errorf("Expected type %s, got %s", TaskTypeRecordResolution, task.GetType())
	}
}

func TestRecordResolutionTaskCancelled(t *testing.T) {
	repo := &mockResolutionRepository{}
	task := NewRecordResolutionTask(database.Resolution{Slug: "x"}, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}

	if upserted, _ := repo.counts(); upserted != 0 {
		t.Errorf("Expected nothing recorded, got %d", upserted)
	}
}

func TestPruneResolutionsTaskCutoff(t *testing.T) {
	repo := &mockResolutionRepository{}
	task := NewPruneResolutionsTask(48*time.Hour, repo)
	task.now = func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	if len(repo.cutoffs) != 1 || !repo.cutoffs[0].Equal(expected) {
		t.Errorf("Expected cutoff %v, got %v", expected, repo.cutoffs)
	}
}

func TestTaskRetryLimit(t *testing.T) {
	task := newTask(TaskTypeRecordResolution, "x")

	for i := 1; i <= maxRetries; i++ {
		if !task.retry() {
			t.Fatalf("Expected retry %d to be allowed", i)
		}
	}
	if task.retry() {
		t.Error("Expected retry past the limit to be refused")
	}
	if task.Retries != maxRetries {
		t.Errorf("Expected %d retries, got %d", maxRetries, task.Retries)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, test := range tests {
		if got := RetryDelay(test.retry); got != test.expected {
			t.Errorf("For retry %d, expected %v, got %v", test.retry, test.expected, got)
		}
	}
}
