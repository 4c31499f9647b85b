// Package jobs wires the five scheduled jobs (scheduler.Job implementations)
// to the components they drive.
package jobs

import (
	"context"
	"time"

	"github.com/fleetward/dispatch/internal/assignment"
)

// DailyAssignment runs the assignment pipeline for the current operational date.
type DailyAssignment struct {
	pipeline *assignment.Pipeline
}

// NewDailyAssignment builds the daily-assignment job.
func NewDailyAssignment(pipeline *assignment.Pipeline) *DailyAssignment {
	return &DailyAssignment{pipeline: pipeline}
}

// Name identifies the job for scheduler logging and the per-job-id lock.
func (j *DailyAssignment) Name() string { return "daily-assignment" }

// Run executes one assignment pipeline pass for today.
func (j *DailyAssignment) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	operationalDate := time.Now().Format("2006-01-02")
	_, err := j.pipeline.Run(ctx, operationalDate)
	return err
}
