package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// DriverRepository persists Driver records.
type DriverRepository struct {
	*BaseRepository
}

// NewDriverRepository constructs a DriverRepository.
func NewDriverRepository(db *sql.DB, log zerolog.Logger) *DriverRepository {
	return &DriverRepository{BaseRepository: NewBase(db, log.With().Str("repo", "driver").Logger())}
}

func scanDriver(row interface{ Scan(...interface{}) error }) (*domain.Driver, error) {
	var d domain.Driver
	err := row.Scan(
		&d.ID, &d.Email, &d.Phone, &d.PasswordHash, &d.Name,
		&d.Vehicle.Type, &d.Vehicle.CapacityKg, &d.Active, &d.ExperienceDays,
		&d.TotalDeliveries, &d.SuccessfulDeliveries, &d.FailedDeliveries,
		&d.AvgDeliveryTimeMinutes, &d.LastLatitude, &d.LastLongitude, &d.PushToken,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const driverColumns = `id, email, phone, password_hash, name, vehicle_type, vehicle_capacity_kg,
	active, experience_days, total_deliveries, successful_deliveries, failed_deliveries,
	avg_delivery_time_minutes, last_latitude, last_longitude, push_token, created_at, updated_at`

// GetByID fetches a driver by id, returning nil if not found.
func (r *DriverRepository) GetByID(ctx context.Context, id int64) (*domain.Driver, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = ?`, id)
	d, err := scanDriver(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get driver %d: %w", id, err)
	}
	return d, nil
}

// ListActive returns every active driver, ordered by id for deterministic
// optimizer input.
func (r *DriverRepository) ListActive(ctx context.Context) ([]*domain.Driver, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active drivers: %w", err)
	}
	defer rows.Close()

	var out []*domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create inserts a new driver and returns its id.
func (r *DriverRepository) Create(ctx context.Context, d *domain.Driver) (int64, error) {
	res, err := r.DB().ExecContext(ctx, `INSERT INTO drivers
		(email, phone, password_hash, name, vehicle_type, vehicle_capacity_kg, active, experience_days, push_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Email, d.Phone, d.PasswordHash, d.Name, d.Vehicle.Type, d.Vehicle.CapacityKg,
		d.Active, d.ExperienceDays, d.PushToken,
	)
	if err != nil {
		return 0, fmt.Errorf("create driver: %w", err)
	}
	return res.LastInsertId()
}

// RecordDeliveryOutcome atomically bumps the driver's counters and rolling
// average delivery time after a completed or failed delivery.
func (r *DriverRepository) RecordDeliveryOutcome(ctx context.Context, tx *sql.Tx, driverID int64, successful bool, durationMinutes float64) error {
	successInc, failInc := 0, 1
	if successful {
		successInc, failInc = 1, 0
	}
	_, err := tx.ExecContext(ctx, `UPDATE drivers SET
		total_deliveries = total_deliveries + 1,
		successful_deliveries = successful_deliveries + ?,
		failed_deliveries = failed_deliveries + ?,
		avg_delivery_time_minutes = (avg_delivery_time_minutes * total_deliveries + ?) / (total_deliveries + 1),
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		successInc, failInc, durationMinutes, driverID,
	)
	if err != nil {
		return fmt.Errorf("record delivery outcome for driver %d: %w", driverID, err)
	}
	return nil
}

// UpdateLastLocation updates a driver's last known GPS position.
func (r *DriverRepository) UpdateLastLocation(ctx context.Context, driverID int64, lat, lon float64) error {
	_, err := r.DB().ExecContext(ctx, `UPDATE drivers SET last_latitude = ?, last_longitude = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, lat, lon, driverID)
	if err != nil {
		return fmt.Errorf("update last location for driver %d: %w", driverID, err)
	}
	return nil
}
