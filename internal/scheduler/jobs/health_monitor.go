package jobs

import (
	"context"
	"time"

	"github.com/fleetward/dispatch/internal/health"
)

// HealthMonitor runs one sweep of the health monitor loop.
type HealthMonitor struct {
	monitor *health.Monitor
}

// NewHealthMonitor builds the health-monitor job.
func NewHealthMonitor(monitor *health.Monitor) *HealthMonitor {
	return &HealthMonitor{monitor: monitor}
}

// Name identifies the job for scheduler logging and the per-job-id lock.
func (j *HealthMonitor) Name() string { return "health-monitor" }

// Run executes one sweep of every active driver.
func (j *HealthMonitor) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return j.monitor.SweepOnce(ctx)
}
