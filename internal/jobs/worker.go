package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sjperalta/obrafin-api/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker runs fire-and-forget jobs and scheduled tasks
type Worker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	asyncWG  sync.WaitGroup
	asyncSem chan struct{}

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	schedules map[string]*ScheduleStats
}

// ScheduleStats describes one recurring job.
type ScheduleStats struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Runs      int64      `json:"runs"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int64 `json:"active_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	MaxConcurrent int   `json:"max_concurrent"`

	Schedules []ScheduleStats `json:"schedules"`
}

// NewWorker creates a worker running at most maxConcurrent async jobs at once
func NewWorker(maxConcurrent int) *Worker {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		ctx:       ctx,
		cancel:    cancel,
		asyncSem:  make(chan struct{}, maxConcurrent),
		schedules: make(map[string]*ScheduleStats),
	}
}

// EnqueueAsync runs name in a new goroutine, bounded by the semaphore.
func (w *Worker) EnqueueAsync(name string, job Job) {
	w.asyncWG.Add(1)
	go func() {
		defer w.asyncWG.Done()

		select {
		case w.asyncSem <- struct{}{}:
		case <-w.ctx.Done():
			return
		}
		defer func() { <-w.asyncSem }()

		w.run("async", name, job)
	}()
}

// ScheduleEvery runs a job at fixed intervals. The first run happens after the interval.
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.mu.Lock()
	w.schedules[name] = &ScheduleStats{Name: name, Interval: interval.String()}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case at := <-ticker.C:
				w.recordRun(name, at.UTC(), w.run("scheduler", name, job))
			}
		}
	}()
}

func (w *Worker) run(kind, name string, job Job) (err error) {
	w.active.Add(1)
	start := time.Now()
	defer func() {
		w.active.Add(-1)
		w.completed.Add(1)
		if r := recover(); r != nil {
			w.failed.Add(1)
			err = fmt.Errorf("panic: %v", r)
			logger.Error("job panicked", "kind", kind, "job", name, "panic", r)
		}
	}()

	if err = job(w.ctx); err != nil {
		w.failed.Add(1)
		logger.Error("job failed", "kind", kind, "job", name, "error", err)
		return err
	}
	logger.Debug("job completed", "kind", kind, "job", name, "elapsed", time.Since(start))
	return nil
}

func (w *Worker) recordRun(name string, at time.Time, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.schedules[name]
	if !ok {
		return
	}
	s.Runs++
	s.LastRun = &at
	s.LastError = ""
	if err != nil {
		s.LastError = err.Error()
	}
}

// Shutdown cancels pending work and waits for running jobs
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
	w.asyncWG.Wait()
}

// WaitAsync blocks until every async job enqueued so far has finished.
func (w *Worker) WaitAsync() {
	w.asyncWG.Wait()
}

// GetStats returns the current worker statistics, schedules sorted by name.
func (w *Worker) GetStats() WorkerStats {
	w.mu.Lock()
	schedules := make([]ScheduleStats, 0, len(w.schedules))
	for _, s := range w.schedules {
		copied := *s
		if s.LastRun != nil {
			at := *s.LastRun
			copied.LastRun = &at
		}
		schedules = append(schedules, copied)
	}
	w.mu.Unlock()
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].Name < schedules[j].Name })

	return WorkerStats{
		ActiveJobs:    w.active.Load(),
		CompletedJobs: w.completed.Load(),
		FailedJobs:    w.failed.Load(),
		MaxConcurrent: cap(w.asyncSem),
		Schedules:     schedules,
	}
}
