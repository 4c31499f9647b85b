package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// PackageRepository persists Package records. Named package_repo.go because
// "package.go" would collide with the reserved word in tooling that globs by
// stem, matching the teacher's avoidance of that collision elsewhere.
type PackageRepository struct {
	*BaseRepository
}

// NewPackageRepository constructs a PackageRepository.
func NewPackageRepository(db *sql.DB, log zerolog.Logger) *PackageRepository {
	return &PackageRepository{BaseRepository: NewBase(db, log.With().Str("repo", "package").Logger())}
}

const packageColumns = `id, tracking_number, status, weight_kg, fragile, latitude, longitude,
	address, floor, window_start_hour, window_end_hour, priority, distance_from_hub_km, created_at`

func scanPackage(row interface{ Scan(...interface{}) error }) (*domain.Package, error) {
	var p domain.Package
	var windowStart, windowEnd sql.NullInt64
	err := row.Scan(
		&p.ID, &p.TrackingNumber, &p.Status, &p.WeightKg, &p.Fragile, &p.Latitude, &p.Longitude,
		&p.Address, &p.Floor, &windowStart, &windowEnd, &p.Priority, &p.DistanceFromHubKm, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if windowStart.Valid && windowEnd.Valid {
		p.Window = &domain.DeliveryWindow{StartHour: int(windowStart.Int64), EndHour: int(windowEnd.Int64)}
	}
	return &p, nil
}

// GetByID fetches a package by id.
func (r *PackageRepository) GetByID(ctx context.Context, id int64) (*domain.Package, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = ?`, id)
	p, err := scanPackage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get package %d: %w", id, err)
	}
	return p, nil
}

// ListPendingForDate returns every pending package eligible for assignment.
// The fleet does not schedule by operational date on the package side, so
// all currently-pending packages are candidates every run.
func (r *PackageRepository) ListPendingForDate(ctx context.Context) ([]*domain.Package, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE status = ? ORDER BY priority DESC, id`, domain.PackageStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending packages: %w", err)
	}
	defer rows.Close()

	var out []*domain.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a new package and returns its id.
func (r *PackageRepository) Create(ctx context.Context, p *domain.Package) (int64, error) {
	var windowStart, windowEnd interface{}
	if p.Window != nil {
		windowStart, windowEnd = p.Window.StartHour, p.Window.EndHour
	}
	res, err := r.DB().ExecContext(ctx, `INSERT INTO packages
		(tracking_number, status, weight_kg, fragile, latitude, longitude, address, floor,
		 window_start_hour, window_end_hour, priority, distance_from_hub_km)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TrackingNumber, domain.PackageStatusPending, p.WeightKg, p.Fragile, p.Latitude, p.Longitude,
		p.Address, p.Floor, windowStart, windowEnd, p.Priority, p.DistanceFromHubKm,
	)
	if err != nil {
		return 0, fmt.Errorf("create package: %w", err)
	}
	return res.LastInsertId()
}

// DailyVolumeHistory returns the count of packages created per calendar day
// over the last `days` days, keyed by YYYY-MM-DD date, for the volume
// forecaster's input series. Days with no packages are omitted by the query
// and filled in by the caller.
func (r *PackageRepository) DailyVolumeHistory(ctx context.Context, days int) (map[string]int, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT date(created_at), COUNT(*) FROM packages
		WHERE created_at >= datetime('now', printf('-%d days', ?))
		GROUP BY date(created_at)`, days)
	if err != nil {
		return nil, fmt.Errorf("daily volume history: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan daily volume: %w", err)
		}
		out[day] = count
	}
	return out, rows.Err()
}

// UpdateStatus transitions a package to a new status within tx.
func (r *PackageRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id int64, status domain.PackageStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE packages SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update package %d status: %w", id, err)
	}
	return nil
}
