package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) summary() Summary {
	jobs := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		jobs = append(jobs, value.(*maintenanceStats).snapshot(key.(string)))
		return true
	})
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Job < jobs[j].Job })

	return Summary{
		GeneratedAt: time.Now(),
		Maintenance: MaintenanceSummary{Jobs: jobs},
	}
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	value, ok := s.maintenance.Load(job)
	if ok {
		return value.(*maintenanceStats)
	}
	value, _ = s.maintenance.LoadOrStore(job, &maintenanceStats{})
	return value.(*maintenanceStats)
}

type maintenanceStats struct {
	mu                   sync.Mutex
	lastStatus           string
	lastError            string
	lastRun              time.Time
	lastSuccess          time.Time
	lastDuration         time.Duration
	consecutiveFailures  uint64
	consecutiveSuccesses uint64
	totalRuns            atomic.Uint64
}

func (m *maintenanceStats) record(result, message string, duration time.Duration, at time.Time) {
	if duration < 0 {
		duration = 0
	}
	m.totalRuns.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastStatus = result
	m.lastError = message
	m.lastRun = at
	m.lastDuration = duration
	if result == "success" {
		m.consecutiveFailures = 0
		m.consecutiveSuccesses++
		m.lastSuccess = at
		return
	}
	m.consecutiveFailures++
	m.consecutiveSuccesses = 0
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          m.lastStatus,
		LastRunAt:           m.lastRun,
		LastDuration:        m.lastDuration,
		LastError:           m.lastError,
		ConsecutiveFailures: m.consecutiveFailures,
		ConsecutiveSuccess:  m.consecutiveSuccesses,
		LastSuccessAt:       m.lastSuccess,
		TotalRuns:           m.totalRuns.Load(),
	}
}
