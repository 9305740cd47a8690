package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Request handlers enqueue resolution records without waiting for them;
// the scheduler itself enqueues periodic pruning.
// Example usage:
//
//	scheduler := NewScheduler(resolutionRepo)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRecordResolutionTask(resolution, resolutionRepo))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
