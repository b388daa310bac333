package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// SchedulerStore remembers when the reconcile and resume sweeps last ran,
// when they are next due, and how their recent runs went.
type SchedulerStore interface {
	// GetTask returns (nil, nil) for a task that was never saved.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	RecordResult(ctx context.Context, result *domain.TaskResult) error
	// GetTaskHistory is newest first and holds at most limit runs.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
	// PruneHistory drops all but the keep newest runs of each task.
	PruneHistory(ctx context.Context, keep int) error
}
