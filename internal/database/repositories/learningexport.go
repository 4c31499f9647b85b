package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// LearningExportRepository writes the nightly export rows used for offline
// model retraining. It never trains anything itself.
type LearningExportRepository struct {
	*BaseRepository
}

// NewLearningExportRepository constructs a LearningExportRepository.
func NewLearningExportRepository(db *sql.DB, log zerolog.Logger) *LearningExportRepository {
	return &LearningExportRepository{BaseRepository: NewBase(db, log.With().Str("repo", "learning_export").Logger())}
}

// ExportRow is one completed assignment's predicted-vs-actual record.
type ExportRow struct {
	AssignmentID        int64
	PackageID           int64
	DriverID            int64
	PredictedDifficulty float64
	ActualDifficulty    float64
}

// ExportCompletedForDate copies every completed assignment's predicted and
// actual difficulty for the given operational date into the export table.
func (r *LearningExportRepository) ExportCompletedForDate(ctx context.Context, date string) (int64, error) {
	res, err := r.DB().ExecContext(ctx, `
		INSERT INTO learning_exports (operational_date, assignment_id, package_id, driver_id, predicted_difficulty, actual_difficulty)
		SELECT operational_date, id, package_id, driver_id, predicted_difficulty, COALESCE(actual_difficulty, predicted_difficulty)
		FROM assignments
		WHERE operational_date = ? AND completed = 1`, date)
	if err != nil {
		return 0, fmt.Errorf("export completed assignments for %s: %w", date, err)
	}
	return res.RowsAffected()
}
