package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// SwapRepository persists Swap records.
type SwapRepository struct {
	*BaseRepository
}

// NewSwapRepository constructs a SwapRepository.
func NewSwapRepository(db *sql.DB, log zerolog.Logger) *SwapRepository {
	return &SwapRepository{BaseRepository: NewBase(db, log.With().Str("repo", "swap").Logger())}
}

const swapColumns = `id, proposer_driver_id, acceptor_driver_id, offered_assignment_id, requested_assignment_id,
	status, reason, compatibility_score, distance_saved_km, proposed_at, responded_at, completed_at`

func scanSwap(row interface{ Scan(...interface{}) error }) (*domain.Swap, error) {
	var s domain.Swap
	var respondedAt, completedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.ProposerDriverID, &s.AcceptorDriverID, &s.OfferedAssignmentID, &s.RequestedAssignmentID,
		&s.Status, &s.Reason, &s.CompatibilityScore, &s.DistanceSavedKm, &s.ProposedAt, &respondedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if respondedAt.Valid {
		s.RespondedAt = &respondedAt.Time
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return &s, nil
}

// Create inserts a new pending swap proposal.
func (r *SwapRepository) Create(ctx context.Context, s *domain.Swap) (int64, error) {
	res, err := r.DB().ExecContext(ctx, `INSERT INTO swaps
		(proposer_driver_id, acceptor_driver_id, offered_assignment_id, requested_assignment_id,
		 status, reason, compatibility_score, distance_saved_km)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ProposerDriverID, s.AcceptorDriverID, s.OfferedAssignmentID, s.RequestedAssignmentID,
		domain.SwapStatusPending, s.Reason, s.CompatibilityScore, s.DistanceSavedKm,
	)
	if err != nil {
		return 0, fmt.Errorf("create swap: %w", err)
	}
	return res.LastInsertId()
}

// GetByID fetches a swap by id.
func (r *SwapRepository) GetByID(ctx context.Context, id int64) (*domain.Swap, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+swapColumns+` FROM swaps WHERE id = ?`, id)
	s, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap %d: %w", id, err)
	}
	return s, nil
}

// GetByIDForUpdate re-reads a swap within tx for the verify-then-mutate step.
func (r *SwapRepository) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Swap, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+swapColumns+` FROM swaps WHERE id = ?`, id)
	s, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap %d for update: %w", id, err)
	}
	return s, nil
}

// ListOpenForDriver returns every pending swap where driverID is either
// party, used to enforce the marketplace listing and expiry flag.
func (r *SwapRepository) ListOpenForDriver(ctx context.Context, driverID int64) ([]*domain.Swap, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+swapColumns+` FROM swaps
		WHERE (proposer_driver_id = ? OR acceptor_driver_id = ?) AND status = ?
		ORDER BY proposed_at`, driverID, driverID, domain.SwapStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list open swaps for driver %d: %w", driverID, err)
	}
	defer rows.Close()

	var out []*domain.Swap
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountCompletedForDriverOnDate counts a driver's completed swaps (as either
// party) whose completion falls on the given calendar date, for the daily
// swap cap.
func (r *SwapRepository) CountCompletedForDriverOnDate(ctx context.Context, driverID int64, date string) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM swaps
		WHERE (proposer_driver_id = ? OR acceptor_driver_id = ?)
		AND status = ? AND date(completed_at) = ?`,
		driverID, driverID, domain.SwapStatusCompleted, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed swaps for driver %d: %w", driverID, err)
	}
	return count, nil
}

// LastCompletedForAssignment returns the most recent completed swap touching
// assignmentID, for the per-assignment cooldown check.
func (r *SwapRepository) LastCompletedForAssignment(ctx context.Context, assignmentID int64) (*domain.Swap, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+swapColumns+` FROM swaps
		WHERE (offered_assignment_id = ? OR requested_assignment_id = ?) AND status = ?
		ORDER BY completed_at DESC LIMIT 1`, assignmentID, assignmentID, domain.SwapStatusCompleted)
	s, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed swap for assignment %d: %w", assignmentID, err)
	}
	return s, nil
}

// UpdateStatusInTx transitions a swap's status within tx, stamping the
// appropriate timestamp column.
func (r *SwapRepository) UpdateStatusInTx(ctx context.Context, tx *sql.Tx, id int64, status domain.SwapStatus) error {
	switch status {
	case domain.SwapStatusAccepted, domain.SwapStatusRejected, domain.SwapStatusCancelled:
		_, err := tx.ExecContext(ctx, `UPDATE swaps SET status = ?, responded_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
		return err
	case domain.SwapStatusCompleted:
		_, err := tx.ExecContext(ctx, `UPDATE swaps SET status = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
		return err
	default:
		_, err := tx.ExecContext(ctx, `UPDATE swaps SET status = ? WHERE id = ?`, status, id)
		return err
	}
}
