package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// GPSLogRepository persists append-only GPSLog pings.
type GPSLogRepository struct {
	*BaseRepository
}

// NewGPSLogRepository constructs a GPSLogRepository.
func NewGPSLogRepository(db *sql.DB, log zerolog.Logger) *GPSLogRepository {
	return &GPSLogRepository{BaseRepository: NewBase(db, log.With().Str("repo", "gps_log").Logger())}
}

// Create inserts a new GPS ping.
func (r *GPSLogRepository) Create(ctx context.Context, g *domain.GPSLog) error {
	_, err := r.DB().ExecContext(ctx, `INSERT INTO gps_logs (driver_id, latitude, longitude) VALUES (?, ?, ?)`,
		g.DriverID, g.Latitude, g.Longitude)
	if err != nil {
		return fmt.Errorf("create gps log for driver %d: %w", g.DriverID, err)
	}
	return nil
}

// RecentForDriver returns a driver's most recent pings, newest first, up to limit.
func (r *GPSLogRepository) RecentForDriver(ctx context.Context, driverID int64, limit int) ([]*domain.GPSLog, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT id, driver_id, latitude, longitude, recorded_at
		FROM gps_logs WHERE driver_id = ? ORDER BY recorded_at DESC LIMIT ?`, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent gps logs for driver %d: %w", driverID, err)
	}
	defer rows.Close()

	var out []*domain.GPSLog
	for rows.Next() {
		var g domain.GPSLog
		if err := rows.Scan(&g.ID, &g.DriverID, &g.Latitude, &g.Longitude, &g.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan gps log: %w", err)
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

// DeleteOlderThanDays prunes GPS pings past the retention window.
func (r *GPSLogRepository) DeleteOlderThanDays(ctx context.Context, days int) (int64, error) {
	res, err := r.DB().ExecContext(ctx, `DELETE FROM gps_logs WHERE recorded_at <= datetime('now', printf('-%d days', ?))`, days)
	if err != nil {
		return 0, fmt.Errorf("prune gps logs: %w", err)
	}
	return res.RowsAffected()
}
