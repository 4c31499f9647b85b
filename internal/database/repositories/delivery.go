package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// DeliveryRepository persists Delivery records, the terminal outcome of an
// Assignment.
type DeliveryRepository struct {
	*BaseRepository
}

// NewDeliveryRepository constructs a DeliveryRepository.
func NewDeliveryRepository(db *sql.DB, log zerolog.Logger) *DeliveryRepository {
	return &DeliveryRepository{BaseRepository: NewBase(db, log.With().Str("repo", "delivery").Logger())}
}

// CreateInTx inserts the delivery outcome row within tx.
func (r *DeliveryRepository) CreateInTx(ctx context.Context, tx *sql.Tx, d *domain.Delivery) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO deliveries
		(assignment_id, actual_difficulty, duration_minutes, successful, notes)
		VALUES (?, ?, ?, ?, ?)`,
		d.AssignmentID, d.ActualDifficulty, d.DurationMinutes, d.Successful, d.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("create delivery for assignment %d: %w", d.AssignmentID, err)
	}
	return res.LastInsertId()
}

// ListForDriverSince returns completed deliveries for a driver since a date.
func (r *DeliveryRepository) ListForDriverSince(ctx context.Context, driverID int64, sinceOperationalDate string) ([]*domain.Delivery, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT d.id, d.assignment_id, d.actual_difficulty, d.duration_minutes, d.successful, d.notes, d.completed_at
		FROM deliveries d
		JOIN assignments a ON a.id = d.assignment_id
		WHERE a.driver_id = ? AND a.operational_date >= ?
		ORDER BY d.completed_at`, driverID, sinceOperationalDate)
	if err != nil {
		return nil, fmt.Errorf("list deliveries for driver %d: %w", driverID, err)
	}
	defer rows.Close()

	var out []*domain.Delivery
	for rows.Next() {
		var d domain.Delivery
		if err := rows.Scan(&d.ID, &d.AssignmentID, &d.ActualDifficulty, &d.DurationMinutes, &d.Successful, &d.Notes, &d.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
