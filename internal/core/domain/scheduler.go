package domain

import "time"

// Maintenance sweeps run by the scheduler.
const (
	// TaskIDReconcile drops vectors, blobs and records that no longer
	// belong to a live document.
	TaskIDReconcile = "reconcile-vectors"

	// TaskIDResume re-enqueues documents left in a non-terminal status,
	// e.g. after a crash.
	TaskIDResume = "resume-ingestion"
)

// MaintenanceTasks lists the sweep ids in the order they are set up.
var MaintenanceTasks = []string{TaskIDReconcile, TaskIDResume}

var taskNames = map[string]string{
	TaskIDReconcile: "Index reconciliation",
	TaskIDResume:    "Resume stalled ingestion",
}

// TaskName returns the display name of a sweep, or "" for an unknown id.
func TaskName(id string) string {
	return taskNames[id]
}

// ScheduledTask is the persisted schedule of one sweep.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	// LastError is empty when the last run succeeded.
	LastError string
}

// Due reports whether an enabled task should run at now. A task that was
// never scheduled is due immediately.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// Record folds a finished run into the schedule and moves NextRun one
// interval past the run's end.
func (t *ScheduledTask) Record(r *TaskResult) {
	t.LastRun = r.StartedAt
	t.LastError = r.Error
	if r.Success {
		t.LastSuccess = r.EndedAt
	}
	if t.Interval > 0 {
		t.NextRun = r.EndedAt.Add(t.Interval)
	}
}

// TaskResult is one row of a sweep's run history.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string
	// ItemsProcessed counts what the sweep removed or re-enqueued.
	ItemsProcessed int
}

// SchedulerConfig is the [scheduler] settings section.
type SchedulerConfig struct {
	// Enabled false keeps every sweep from running on a timer; RunNow
	// still works.
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// TaskConfig is the per-sweep part of SchedulerConfig.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns the zero TaskConfig for an unconfigured sweep.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	return c.TaskConfigs[taskID]
}

// Effective applies the master switch to a sweep's own settings.
func (c *SchedulerConfig) Effective(taskID string) TaskConfig {
	tc := c.GetTaskConfig(taskID)
	tc.Enabled = tc.Enabled && c.Enabled
	return tc
}

// DefaultSchedulerConfig reconciles hourly and looks for stalled
// documents every ten minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDReconcile: {Enabled: true, Interval: time.Hour},
			TaskIDResume:    {Enabled: true, Interval: 10 * time.Minute},
		},
	}
}

// ReconcileReport counts what one reconcile sweep cleaned up.
type ReconcileReport struct {
	// OrphanDocuments are ids present in the vector index with no record.
	OrphanDocuments int
	// OrphanVectors were removed for those ids.
	OrphanVectors int
	// OrphanBlobs are stored uploads with no record.
	OrphanBlobs int
	// DebtsCleared are failed documents whose leftover vectors were removed.
	DebtsCleared int
	// MissingBlobs are document records removed because their stored upload
	// was gone.
	MissingBlobs int
}

// Items is the total removed, as recorded in the task history.
func (r ReconcileReport) Items() int {
	return r.OrphanVectors + r.OrphanBlobs + r.DebtsCleared + r.MissingBlobs
}
