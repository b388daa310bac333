package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := DefaultSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, TaskConfig{Enabled: true, Interval: time.Hour}, cfg.GetTaskConfig(TaskIDReconcile))
	assert.Equal(t, TaskConfig{Enabled: true, Interval: 10 * time.Minute}, cfg.GetTaskConfig(TaskIDResume))
}

func TestSchedulerConfig_Unconfigured(t *testing.T) {
	var cfg SchedulerConfig
	assert.Equal(t, TaskConfig{}, cfg.GetTaskConfig(TaskIDReconcile))

	cfg = DefaultSchedulerConfig()
	assert.Equal(t, TaskConfig{}, cfg.GetTaskConfig("nope"))
}

func TestSchedulerConfig_EffectiveHonoursMasterSwitch(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	assert.True(t, cfg.Effective(TaskIDResume).Enabled)

	cfg.Enabled = false
	eff := cfg.Effective(TaskIDResume)
	assert.False(t, eff.Enabled)
	assert.Equal(t, 10*time.Minute, eff.Interval)
}

func TestTaskName(t *testing.T) {
	for _, id := range MaintenanceTasks {
		assert.NotEmpty(t, TaskName(id))
	}
	assert.Empty(t, TaskName("nope"))
}

func TestScheduledTask_Due(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		task ScheduledTask
		want bool
	}{
		{"never scheduled", ScheduledTask{Enabled: true}, true},
		{"past", ScheduledTask{Enabled: true, NextRun: now.Add(-time.Second)}, true},
		{"exactly now", ScheduledTask{Enabled: true, NextRun: now}, true},
		{"future", ScheduledTask{Enabled: true, NextRun: now.Add(time.Minute)}, false},
		{"disabled", ScheduledTask{NextRun: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Due(now))
		})
	}
}

func TestScheduledTask_Record(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)
	task := ScheduledTask{Interval: time.Hour, LastError: "old failure"}

	task.Record(&TaskResult{StartedAt: start, EndedAt: end, Success: true})
	assert.Equal(t, start, task.LastRun)
	assert.Equal(t, end, task.LastSuccess)
	assert.Equal(t, end.Add(time.Hour), task.NextRun)
	assert.Empty(t, task.LastError)

	later := end.Add(time.Hour)
	task.Record(&TaskResult{StartedAt: later, EndedAt: later, Error: "index unavailable"})
	assert.Equal(t, "index unavailable", task.LastError)
	assert.Equal(t, end, task.LastSuccess, "a failure keeps the last success")
}

func TestReconcileReport_Items(t *testing.T) {
	r := ReconcileReport{OrphanDocuments: 2, OrphanVectors: 5, OrphanBlobs: 1, DebtsCleared: 3, MissingBlobs: 2}
	assert.Equal(t, 11, r.Items())
}
