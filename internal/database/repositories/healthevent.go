package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// HealthEventRepository persists append-only HealthEvent readings.
type HealthEventRepository struct {
	*BaseRepository
}

// NewHealthEventRepository constructs a HealthEventRepository.
func NewHealthEventRepository(db *sql.DB, log zerolog.Logger) *HealthEventRepository {
	return &HealthEventRepository{BaseRepository: NewBase(db, log.With().Str("repo", "health_event").Logger())}
}

const healthEventColumns = `id, driver_id, recorded_at, heart_rate, fatigue_level, hours_worked, hours_since_last_break,
	delivered, remaining, distance_km, avg_difficulty, predicted_risk_score, severity,
	recommended_break_minutes, recommended_break_urgency, recommended_break_reason, recommended_break_timing,
	alert_dispatched_at`

func scanHealthEvent(row interface{ Scan(...interface{}) error }) (*domain.HealthEvent, error) {
	var h domain.HealthEvent
	var breakMinutes sql.NullInt64
	var breakUrgency, breakReason, breakTiming sql.NullString
	var alertDispatchedAt sql.NullTime

	err := row.Scan(
		&h.ID, &h.DriverID, &h.RecordedAt, &h.Vitals.HeartRate, &h.Vitals.FatigueLevel,
		&h.Vitals.HoursWorked, &h.Vitals.HoursSinceLastBreak,
		&h.Workload.Delivered, &h.Workload.Remaining, &h.Workload.DistanceKm, &h.Workload.AvgDifficulty,
		&h.PredictedRisk, &h.Severity,
		&breakMinutes, &breakUrgency, &breakReason, &breakTiming, &alertDispatchedAt,
	)
	if err != nil {
		return nil, err
	}
	if breakMinutes.Valid {
		h.RecommendedBreak = &domain.RecommendedBreak{
			DurationMinutes: int(breakMinutes.Int64),
			Urgency:         breakUrgency.String,
			Reason:          breakReason.String,
			Timing:          breakTiming.String,
		}
	}
	if alertDispatchedAt.Valid {
		h.AlertDispatchedAt = &alertDispatchedAt.Time
	}
	return &h, nil
}

// Create inserts a new health event.
func (r *HealthEventRepository) Create(ctx context.Context, h *domain.HealthEvent) (int64, error) {
	var breakMinutes, breakUrgency, breakReason, breakTiming interface{}
	if h.RecommendedBreak != nil {
		breakMinutes = h.RecommendedBreak.DurationMinutes
		breakUrgency = h.RecommendedBreak.Urgency
		breakReason = h.RecommendedBreak.Reason
		breakTiming = h.RecommendedBreak.Timing
	}
	res, err := r.DB().ExecContext(ctx, `INSERT INTO health_events
		(driver_id, heart_rate, fatigue_level, hours_worked, hours_since_last_break,
		 delivered, remaining, distance_km, avg_difficulty, predicted_risk_score, severity,
		 recommended_break_minutes, recommended_break_urgency, recommended_break_reason, recommended_break_timing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.DriverID, h.Vitals.HeartRate, h.Vitals.FatigueLevel, h.Vitals.HoursWorked, h.Vitals.HoursSinceLastBreak,
		h.Workload.Delivered, h.Workload.Remaining, h.Workload.DistanceKm, h.Workload.AvgDifficulty,
		h.PredictedRisk, h.Severity, breakMinutes, breakUrgency, breakReason, breakTiming,
	)
	if err != nil {
		return 0, fmt.Errorf("create health event for driver %d: %w", h.DriverID, err)
	}
	return res.LastInsertId()
}

// GetLatestForDriver returns the most recent health event for a driver, or
// nil when the driver has none yet.
func (r *HealthEventRepository) GetLatestForDriver(ctx context.Context, driverID int64) (*domain.HealthEvent, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+healthEventColumns+` FROM health_events WHERE driver_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`, driverID)
	h, err := scanHealthEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest health event for driver %d: %w", driverID, err)
	}
	return h, nil
}

// MarkAlertDispatched stamps the dedup timestamp so the monitor loop does not
// re-alert within the dedup window.
func (r *HealthEventRepository) MarkAlertDispatched(ctx context.Context, id int64) error {
	_, err := r.DB().ExecContext(ctx, `UPDATE health_events SET alert_dispatched_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// DeleteOlderThanDays prunes health events past the retention window.
func (r *HealthEventRepository) DeleteOlderThanDays(ctx context.Context, days int) (int64, error) {
	res, err := r.DB().ExecContext(ctx, `DELETE FROM health_events WHERE recorded_at <= datetime('now', printf('-%d days', ?))`, days)
	if err != nil {
		return 0, fmt.Errorf("prune health events: %w", err)
	}
	return res.RowsAffected()
}
