package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorker_EnqueueAsync(t *testing.T) {
	w := NewWorker(2)
	defer w.Shutdown()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		w.EnqueueAsync("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	w.EnqueueAsync("fail", func(ctx context.Context) error { return errors.New("boom") })
	w.EnqueueAsync("panic", func(ctx context.Context) error { panic("kaboom") })
	w.WaitAsync()

	stats := w.GetStats()
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(7), stats.CompletedJobs)
	assert.Equal(t, int64(2), stats.FailedJobs)
	assert.Equal(t, int64(0), stats.ActiveJobs)
	assert.Equal(t, 2, stats.MaxConcurrent)
}

func TestWorker_ScheduleEveryStopsOnShutdown(t *testing.T) {
	w := NewWorker(1)

	var runs atomic.Int32
	w.ScheduleEvery("tick", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	w.Shutdown()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestWorker_ScheduleStatsTrackLastRun(t *testing.T) {
	w := NewWorker(1)

	var calls atomic.Int32
	w.ScheduleEvery("reconcile-budgets", 5*time.Millisecond, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("database is locked")
		}
		return nil
	})
	w.ScheduleEvery("audit-rollup", time.Hour, func(ctx context.Context) error { return nil })

	assert.Eventually(t, func() bool {
		stats := w.GetStats()
		return stats.Schedules[1].Runs >= 2
	}, time.Second, 5*time.Millisecond)
	w.Shutdown()

	stats := w.GetStats()
	assert.Len(t, stats.Schedules, 2)

	idle := stats.Schedules[0]
	assert.Equal(t, "audit-rollup", idle.Name)
	assert.Equal(t, "1h0m0s", idle.Interval)
	assert.Zero(t, idle.Runs)
	assert.Nil(t, idle.LastRun)

	reconcile := stats.Schedules[1]
	assert.Equal(t, "reconcile-budgets", reconcile.Name)
	assert.NotNil(t, reconcile.LastRun)
	assert.Empty(t, reconcile.LastError)
	assert.GreaterOrEqual(t, stats.FailedJobs, int64(1))
}
