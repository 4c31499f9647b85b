package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// InsurancePayoutRepository persists InsurancePayout records.
type InsurancePayoutRepository struct {
	*BaseRepository
}

// NewInsurancePayoutRepository constructs an InsurancePayoutRepository.
func NewInsurancePayoutRepository(db *sql.DB, log zerolog.Logger) *InsurancePayoutRepository {
	return &InsurancePayoutRepository{BaseRepository: NewBase(db, log.With().Str("repo", "insurance_payout").Logger())}
}

// Create inserts a computed payout record.
func (r *InsurancePayoutRepository) Create(ctx context.Context, p *domain.InsurancePayout) (int64, error) {
	res, err := r.DB().ExecContext(ctx, `INSERT INTO insurance_payouts
		(driver_id, window_start, window_end, driver_rate, population_mean, population_std,
		 z_score, excess_failures, payout_amount, eligible, reason, approved, paid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.DriverID, p.WindowStart, p.WindowEnd, p.DriverRate, p.PopulationMean, p.PopulationStdDev,
		p.ZScore, p.ExcessFailures, p.PayoutAmount, p.Eligible, p.Reason, p.Approved, p.Paid,
	)
	if err != nil {
		return 0, fmt.Errorf("create insurance payout for driver %d: %w", p.DriverID, err)
	}
	return res.LastInsertId()
}

// ListForDriver returns a driver's payout history, most recent first.
func (r *InsurancePayoutRepository) ListForDriver(ctx context.Context, driverID int64) ([]*domain.InsurancePayout, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT
		id, driver_id, window_start, window_end, driver_rate, population_mean, population_std,
		z_score, excess_failures, payout_amount, eligible, reason, approved, paid, computed_at
		FROM insurance_payouts WHERE driver_id = ? ORDER BY computed_at DESC`, driverID)
	if err != nil {
		return nil, fmt.Errorf("list insurance payouts for driver %d: %w", driverID, err)
	}
	defer rows.Close()

	var out []*domain.InsurancePayout
	for rows.Next() {
		var p domain.InsurancePayout
		if err := rows.Scan(
			&p.ID, &p.DriverID, &p.WindowStart, &p.WindowEnd, &p.DriverRate, &p.PopulationMean, &p.PopulationStdDev,
			&p.ZScore, &p.ExcessFailures, &p.PayoutAmount, &p.Eligible, &p.Reason, &p.Approved, &p.Paid, &p.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan insurance payout: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// ApproveInTx marks a payout approved within tx.
func (r *InsurancePayoutRepository) ApproveInTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE insurance_payouts SET approved = 1 WHERE id = ?`, id)
	return err
}
