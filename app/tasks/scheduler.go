package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/tagfeed/app/cfg"
	"github.com/lysyi3m/tagfeed/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const taskTimeout = time.Minute

type Scheduler struct {
	resolutionRepo database.ResolutionRepository
	retention      time.Duration
	interval       time.Duration
	workerCount    int
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface
}

func NewScheduler(resolutionRepo database.ResolutionRepository) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		resolutionRepo: resolutionRepo,
		retention:      cfg.ResolutionRetentionDuration(),
		interval:       time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:    cfg.WorkerCount,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueuePeriodicTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueuePeriodicTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask never blocks; a full queue drops the task.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueuePeriodicTasks() {
	if s.retention <= 0 {
		slog.Debug("Resolution retention disabled, skipping prune")
		return
	}

	if err := s.EnqueueTask(NewPruneResolutionsTask(s.retention, s.resolutionRepo)); err != nil {
		slog.Warn("Failed to enqueue PruneResolutionsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	state := task.state()
	state.startedAt = time.Now()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "subject", task.GetSubject(), "retries", state.Retries, "error", err)

	if !state.retry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "subject", task.GetSubject(), "max_retries", maxRetries, "last_error", err)
		return
	}

	retryDelay := RetryDelay(state.Retries)
	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retries", state.Retries, "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "subject", task.GetSubject())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "subject", task.GetSubject(), "error", retryErr)
			}
		}
	}()
}

// RetryDelay is the exponential backoff before the given retry, capped at 30s.
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	if retryCount > 6 {
		return 30 * time.Second
	}
	return min(time.Duration(1<<uint(retryCount-1))*time.Second, 30*time.Second)
}
