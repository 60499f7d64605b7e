package services

import (
	"github.com/sjperalta/obrafin-api/internal/jobs"
)

// JobMonitor exposes background worker counters.
type JobMonitor interface {
	GetStats() jobs.WorkerStats
}

// JobStatus is the worker snapshot served to operators. Healthy turns false
// as soon as the latest run of any scheduled job failed.
type JobStatus struct {
	jobs.WorkerStats
	Healthy bool `json:"healthy"`
}

type JobService struct {
	monitor JobMonitor
}

func NewJobService(monitor JobMonitor) *JobService {
	return &JobService{monitor: monitor}
}

// GetStatus reports worker counters. Without a monitor every counter is zero.
func (s *JobService) GetStatus() JobStatus {
	status := JobStatus{Healthy: true}
	if s.monitor == nil {
		status.Schedules = []jobs.ScheduleStats{}
		return status
	}
	status.WorkerStats = s.monitor.GetStats()
	for _, sched := range status.Schedules {
		if sched.LastError != "" {
			status.Healthy = false
		}
	}
	return status
}
