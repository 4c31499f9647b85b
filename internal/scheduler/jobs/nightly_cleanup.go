package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetward/dispatch/internal/database/repositories"
)

// NightlyCleanup prunes GPSLog and HealthEvent rows past their retention windows.
type NightlyCleanup struct {
	gpsLogs             *repositories.GPSLogRepository
	healthEvents        *repositories.HealthEventRepository
	gpsRetentionDays    int
	healthRetentionDays int
}

// NewNightlyCleanup builds the nightly-cleanup job.
func NewNightlyCleanup(gpsLogs *repositories.GPSLogRepository, healthEvents *repositories.HealthEventRepository, gpsRetentionDays, healthRetentionDays int) *NightlyCleanup {
	return &NightlyCleanup{
		gpsLogs: gpsLogs, healthEvents: healthEvents,
		gpsRetentionDays: gpsRetentionDays, healthRetentionDays: healthRetentionDays,
	}
}

// Name identifies the job for scheduler logging and the per-job-id lock.
func (j *NightlyCleanup) Name() string { return "nightly-cleanup" }

// Run prunes both retention-bound tables.
func (j *NightlyCleanup) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := j.gpsLogs.DeleteOlderThanDays(ctx, j.gpsRetentionDays); err != nil {
		return fmt.Errorf("prune gps logs: %w", err)
	}
	if _, err := j.healthEvents.DeleteOlderThanDays(ctx, j.healthRetentionDays); err != nil {
		return fmt.Errorf("prune health events: %w", err)
	}
	return nil
}
