package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/apperror"
	"github.com/fleetward/dispatch/internal/domain"
)

// AssignmentRepository persists Assignment records.
type AssignmentRepository struct {
	*BaseRepository
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sql.DB, log zerolog.Logger) *AssignmentRepository {
	return &AssignmentRepository{BaseRepository: NewBase(db, log.With().Str("repo", "assignment").Logger())}
}

const assignmentColumns = `id, driver_id, package_id, operational_date, predicted_difficulty, actual_difficulty,
	accepted, completed, failed, explanation, assigned_at, accepted_at, started_at, completed_at`

func scanAssignment(row interface{ Scan(...interface{}) error }) (*domain.Assignment, error) {
	var a domain.Assignment
	var actualDifficulty sql.NullFloat64
	var acceptedAt, startedAt, completedAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.DriverID, &a.PackageID, &a.OperationalDate, &a.PredictedDifficulty, &actualDifficulty,
		&a.Accepted, &a.Completed, &a.Failed, &a.Explanation, &a.AssignedAt, &acceptedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if actualDifficulty.Valid {
		a.ActualDifficulty = &actualDifficulty.Float64
	}
	if acceptedAt.Valid {
		a.AcceptedAt = &acceptedAt.Time
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

// GetByID fetches an assignment by id.
func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*domain.Assignment, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment %d: %w", id, err)
	}
	return a, nil
}

// GetByIDForUpdate fetches an assignment within tx, for the re-read-verify
// step of the swap exchange and other conflict-sensitive mutations.
func (r *AssignmentRepository) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Assignment, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment %d for update: %w", id, err)
	}
	return a, nil
}

// ListByDriverAndDate returns a driver's assignments for one operational date.
func (r *AssignmentRepository) ListByDriverAndDate(ctx context.Context, driverID int64, date string) ([]*domain.Assignment, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE driver_id = ? AND operational_date = ? ORDER BY id`, driverID, date)
	if err != nil {
		return nil, fmt.Errorf("list assignments for driver %d on %s: %w", driverID, date, err)
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByDate returns every assignment for an operational date, across all drivers.
func (r *AssignmentRepository) ListByDate(ctx context.Context, date string) ([]*domain.Assignment, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE operational_date = ? ORDER BY driver_id, id`, date)
	if err != nil {
		return nil, fmt.Errorf("list assignments for %s: %w", date, err)
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateInTx inserts a new assignment within tx. The unique index on
// (package_id, operational_date) turns a duplicate attempt into a
// ConcurrencyConflict instead of a silent double-assignment.
func (r *AssignmentRepository) CreateInTx(ctx context.Context, tx *sql.Tx, a *domain.Assignment) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO assignments
		(driver_id, package_id, operational_date, predicted_difficulty, explanation)
		VALUES (?, ?, ?, ?, ?)`,
		a.DriverID, a.PackageID, a.OperationalDate, a.PredictedDifficulty, a.Explanation,
	)
	if err != nil {
		return 0, apperror.New(apperror.KindConcurrencyConflict, fmt.Sprintf("package %d already assigned for %s", a.PackageID, a.OperationalDate), err)
	}
	return res.LastInsertId()
}

// SwapDriversInTx reassigns two assignments' driver_id fields atomically,
// the core mutation of a completed swap exchange.
func (r *AssignmentRepository) SwapDriversInTx(ctx context.Context, tx *sql.Tx, offeredID, requestedID, newOfferedDriver, newRequestedDriver int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE assignments SET driver_id = ? WHERE id = ?`, newOfferedDriver, offeredID); err != nil {
		return fmt.Errorf("swap assignment %d: %w", offeredID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE assignments SET driver_id = ? WHERE id = ?`, newRequestedDriver, requestedID); err != nil {
		return fmt.Errorf("swap assignment %d: %w", requestedID, err)
	}
	return nil
}

// MarkAcceptedInTx sets the accepted flag and timestamp.
func (r *AssignmentRepository) MarkAcceptedInTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE assignments SET accepted = 1, accepted_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// MarkCompletedInTx sets the completed flag, actual difficulty, and timestamp.
func (r *AssignmentRepository) MarkCompletedInTx(ctx context.Context, tx *sql.Tx, id int64, actualDifficulty float64) error {
	_, err := tx.ExecContext(ctx, `UPDATE assignments SET completed = 1, actual_difficulty = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`, actualDifficulty, id)
	return err
}

// MarkFailedInTx sets the failed flag and timestamp.
func (r *AssignmentRepository) MarkFailedInTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE assignments SET failed = 1, completed_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// SumDifficultyByDriver returns the total predicted_difficulty already
// assigned to each driver for a date.
func (r *AssignmentRepository) SumDifficultyByDriver(ctx context.Context, date string) (map[int64]float64, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT driver_id, COALESCE(SUM(predicted_difficulty), 0) FROM assignments WHERE operational_date = ? GROUP BY driver_id`, date)
	if err != nil {
		return nil, fmt.Errorf("sum difficulty by driver for %s: %w", date, err)
	}
	defer rows.Close()

	out := map[int64]float64{}
	for rows.Next() {
		var driverID int64
		var total float64
		if err := rows.Scan(&driverID, &total); err != nil {
			return nil, fmt.Errorf("scan difficulty sum: %w", err)
		}
		out[driverID] = total
	}
	return out, rows.Err()
}
