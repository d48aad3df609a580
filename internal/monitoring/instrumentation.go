package monitoring

import (
	"strings"
	"time"
)

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	if jobID == "" {
		jobID = "unknown"
	}
	result = normalizeLabel(result)
	if result == "" {
		result = "unknown"
	}

	now := time.Now()
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(now.Unix()))
	}
	module.stats.maintenanceEntry(jobID).record(result, strings.TrimSpace(message), duration, now)
}

// RecordProbe publishes the latest probe outcome for a dependency.
func RecordProbe(result ProbeResult) {
	ensureModule().recordProbe(result)
}

func (m *Module) recordProbe(result ProbeResult) {
	if m == nil || m.metrics == nil || result.Component == "" {
		return
	}
	m.metrics.healthStatus.WithLabelValues(normalizeLabel(result.Component)).Set(statusValue(result.Status))
}

func normalizeLabel(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
