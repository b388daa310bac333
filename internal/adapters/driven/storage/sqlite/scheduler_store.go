package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

const (
	selectTasks = `SELECT id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled
		FROM scheduled_tasks`

	upsertTask = `INSERT INTO scheduled_tasks
		(id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled`

	insertRun = `INSERT INTO task_results
		(task_id, started_at, ended_at, success, error, items_processed)
		VALUES (?, ?, ?, ?, ?, ?)`

	selectRuns = `SELECT task_id, started_at, ended_at, success, error, items_processed
		FROM task_results WHERE task_id = ?
		ORDER BY started_at DESC, id DESC LIMIT ?`

	// Rows ranked past keep within their task are dropped.
	pruneRuns = `DELETE FROM task_results WHERE id IN (
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY task_id ORDER BY started_at DESC, id DESC
			) AS pos FROM task_results
		) WHERE pos > ?)`
)

// maintenanceStore keeps the schedule of the reconcile and resume sweeps
// and a bounded log of their runs.
type maintenanceStore struct {
	db *sql.DB
}

var _ driven.SchedulerStore = (*maintenanceStore)(nil)

// taskRow mirrors one scheduled_tasks row before conversion.
type taskRow struct {
	id, name      string
	intervalSecs  int64
	lastRun       sql.NullString
	nextRun       sql.NullString
	lastError     sql.NullString
	lastSuccess   sql.NullString
	enabledNumber int
}

func (r *taskRow) task() *domain.ScheduledTask {
	return &domain.ScheduledTask{
		ID:          r.id,
		Name:        r.name,
		Interval:    time.Duration(r.intervalSecs) * time.Second,
		LastRun:     parseNullableTime(r.lastRun),
		NextRun:     parseNullableTime(r.nextRun),
		LastError:   r.lastError.String,
		LastSuccess: parseNullableTime(r.lastSuccess),
		Enabled:     r.enabledNumber == 1,
	}
}

func readTask(row rowScanner) (*domain.ScheduledTask, error) {
	var r taskRow
	err := row.Scan(&r.id, &r.name, &r.intervalSecs,
		&r.lastRun, &r.nextRun, &r.lastError, &r.lastSuccess, &r.enabledNumber)
	if err != nil {
		return nil, err
	}
	return r.task(), nil
}

// GetTask returns nil without error for an unknown task.
func (m *maintenanceStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	task, err := readTask(m.db.QueryRowContext(ctx, selectTasks+` WHERE id = ?`, taskID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("loading task %s: %w", taskID, err)
	}
	return task, nil
}

func (m *maintenanceStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := m.db.QueryContext(ctx, selectTasks+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.ScheduledTask{}
	for rows.Next() {
		task, err := readTask(rows)
		if err != nil {
			return nil, fmt.Errorf("reading task row: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (m *maintenanceStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	args := []any{
		task.ID,
		task.Name,
		int64(task.Interval / time.Second),
		formatNullableTime(task.LastRun),
		formatNullableTime(task.NextRun),
		nullString(task.LastError),
		formatNullableTime(task.LastSuccess),
		boolToInt(task.Enabled),
	}
	if _, err := m.db.ExecContext(ctx, upsertTask, args...); err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

func (m *maintenanceStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	_, err := m.db.ExecContext(ctx, insertRun,
		result.TaskID,
		formatTime(result.StartedAt),
		formatTime(result.EndedAt),
		boolToInt(result.Success),
		nullString(result.Error),
		result.ItemsProcessed,
	)
	if err != nil {
		return fmt.Errorf("recording %s run: %w", result.TaskID, err)
	}
	return nil
}

// GetTaskHistory lists runs newest first.
func (m *maintenanceStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	rows, err := m.db.QueryContext(ctx, selectRuns, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading %s history: %w", taskID, err)
	}
	defer rows.Close()

	runs := []domain.TaskResult{}
	for rows.Next() {
		var (
			run            domain.TaskResult
			started, ended string
			ok             int
			failure        sql.NullString
		)
		if err := rows.Scan(&run.TaskID, &started, &ended, &ok, &failure, &run.ItemsProcessed); err != nil {
			return nil, fmt.Errorf("reading run row: %w", err)
		}
		run.StartedAt, run.EndedAt = parseTime(started), parseTime(ended)
		run.Success = ok == 1
		run.Error = failure.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PruneHistory trims every task's log to its keep most recent runs.
func (m *maintenanceStore) PruneHistory(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	if _, err := m.db.ExecContext(ctx, pruneRuns, keep); err != nil {
		return fmt.Errorf("pruning run history: %w", err)
	}
	return nil
}
