package cron

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNextRunAt(t *testing.T) {
	at := int64(1_900_000_000_000)
	next := ComputeNextRun(Schedule{Kind: "at", AtMs: at}, 0)
	assert.Equal(t, at, next)
}

func TestComputeNextRunEvery(t *testing.T) {
	from := int64(1_000_000)
	next := ComputeNextRun(Schedule{Kind: "every", EveryMs: 60_000}, from)
	assert.Equal(t, from+60_000, next)

	assert.Zero(t, ComputeNextRun(Schedule{Kind: "every"}, from))
	assert.Zero(t, ComputeNextRun(Schedule{Kind: "every", EveryMs: -5}, from))
}

func TestComputeNextRunCron(t *testing.T) {
	// 2026-08-30 10:30:00 UTC
	from := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC).UnixMilli()

	next := ComputeNextRun(Schedule{Kind: "cron", Expr: "0 * * * *"}, from)
	want := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, want, next)

	assert.Zero(t, ComputeNextRun(Schedule{Kind: "cron"}, from))
	assert.Zero(t, ComputeNextRun(Schedule{Kind: "cron", Expr: "not a cron"}, from))
	assert.Zero(t, ComputeNextRun(Schedule{Kind: "lunar"}, from))
}

func TestAddListRemoveJob(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "cron.json")
	svc := NewService(storePath, func(Job) {})

	key := session.NewKey("telegram", "default", "1")
	job := svc.AddJob("reminder", Schedule{Kind: "every", EveryMs: 60_000}, "ping", true, key, false)
	assert.Len(t, job.ID, 8)
	assert.True(t, job.Enabled)
	assert.Equal(t, "agent_turn", job.Payload.Kind)
	assert.NotZero(t, job.State.NextRunAtMs)

	jobs := svc.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "reminder", jobs[0].Name)

	// A fresh service must see the persisted job
	reloaded := NewService(storePath, func(Job) {})
	jobs = reloaded.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	assert.True(t, reloaded.RemoveJob(job.ID))
	assert.False(t, reloaded.RemoveJob(job.ID))
	assert.Empty(t, reloaded.ListJobs())
}

func TestJobsOrderedByNextRun(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "cron.json"), func(Job) {})

	far := svc.AddJob("far", Schedule{Kind: "at", AtMs: 9_000_000_000_000}, "x", false, session.Key{}, false)
	near := svc.AddJob("near", Schedule{Kind: "at", AtMs: 2_000_000_000_000}, "y", false, session.Key{}, false)

	jobs := svc.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, near.ID, jobs[0].ID)
	assert.Equal(t, far.ID, jobs[1].ID)
}
