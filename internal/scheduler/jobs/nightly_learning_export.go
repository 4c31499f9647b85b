package jobs

import (
	"context"
	"time"

	"github.com/fleetward/dispatch/internal/database/repositories"
)

// NightlyLearningExport copies the day's completed assignments, predicted
// and actual difficulty included, into the learning export table for
// offline model retraining. It only writes the export; it does not train.
type NightlyLearningExport struct {
	exports *repositories.LearningExportRepository
}

// NewNightlyLearningExport builds the nightly-learning-export job.
func NewNightlyLearningExport(exports *repositories.LearningExportRepository) *NightlyLearningExport {
	return &NightlyLearningExport{exports: exports}
}

// Name identifies the job for scheduler logging and the per-job-id lock.
func (j *NightlyLearningExport) Name() string { return "nightly-learning-export" }

// Run exports the previous operational date's completed assignments.
func (j *NightlyLearningExport) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	date := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	_, err := j.exports.ExportCompletedForDate(ctx, date)
	return err
}
