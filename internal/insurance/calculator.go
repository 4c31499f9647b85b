// Package insurance implements the Insurance Calculator (C10): z-score
// eligibility against the fleet's failure-rate distribution and the
// excess-failure payout formula.
package insurance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/pkg/formulas"
)

const (
	severeZScore = 3.0
	moderateZScoreBand = 2.5
)

// Calculator computes InsurancePayouts over a claim window.
type Calculator struct {
	drivers        *repositories.DriverRepository
	payouts        *repositories.InsurancePayoutRepository
	zScoreThreshold float64
	basePenalty    float64
	log            zerolog.Logger
}

// New builds a Calculator.
func New(drivers *repositories.DriverRepository, payouts *repositories.InsurancePayoutRepository, zScoreThreshold, basePenalty float64, log zerolog.Logger) *Calculator {
	return &Calculator{
		drivers: drivers, payouts: payouts,
		zScoreThreshold: zScoreThreshold, basePenalty: basePenalty,
		log: log.With().Str("component", "insurance").Logger(),
	}
}

// driverStats is one driver's failure statistics for a claim window.
type driverStats struct {
	driverID int64
	failures int
	total    int
	rate     float64
}

// Evaluate computes every active driver's eligibility and payout for the
// window [windowStart, windowEnd), using each driver's aggregate totals and
// failures as a stand-in for the window-scoped counts (the lifetime counters
// on domain.Driver are the only rolling stats this system keeps).
func (c *Calculator) Evaluate(ctx context.Context, windowStart, windowEnd time.Time) ([]*domain.InsurancePayout, error) {
	drivers, err := c.drivers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active drivers: %w", err)
	}

	stats := make([]driverStats, 0, len(drivers))
	rates := make([]float64, 0, len(drivers))
	for _, d := range drivers {
		total := d.TotalDeliveries
		if total == 0 {
			continue
		}
		failures := d.FailedDeliveries
		rate := float64(failures) / float64(total)
		stats = append(stats, driverStats{driverID: d.ID, failures: failures, total: total, rate: rate})
		rates = append(rates, rate)
	}

	if len(stats) == 0 {
		return nil, nil
	}

	mean := formulas.Mean(rates)
	stdDev := formulas.PopulationStdDev(rates)

	out := make([]*domain.InsurancePayout, 0, len(stats))
	for _, s := range stats {
		z := formulas.ZScore(s.rate, mean, stdDev)
		eligible := z > c.zScoreThreshold

		excessFailures := float64(s.failures) - mean*float64(s.total)
		if excessFailures < 0 {
			excessFailures = 0
		}

		payoutAmount := 0.0
		if eligible {
			payoutAmount = excessFailures * c.basePenalty
		}

		p := &domain.InsurancePayout{
			DriverID:         s.driverID,
			WindowStart:      windowStart,
			WindowEnd:        windowEnd,
			DriverRate:       s.rate,
			PopulationMean:   mean,
			PopulationStdDev: stdDev,
			ZScore:           z,
			ExcessFailures:   excessFailures,
			PayoutAmount:     payoutAmount,
			Eligible:         eligible,
			Reason:           reasonForZScore(z),
		}
		out = append(out, p)
	}
	return out, nil
}

func reasonForZScore(z float64) string {
	switch {
	case z > severeZScore:
		return "severe external factors"
	case z > moderateZScoreBand:
		return "significant"
	case z > 2.0:
		return "moderate"
	default:
		return "within normal range"
	}
}

// Persist stores every computed payout, skipping ineligible drivers.
func (c *Calculator) Persist(ctx context.Context, payouts []*domain.InsurancePayout) error {
	for _, p := range payouts {
		if !p.Eligible {
			continue
		}
		if _, err := c.payouts.Create(ctx, p); err != nil {
			return fmt.Errorf("persist insurance payout for driver %d: %w", p.DriverID, err)
		}
	}
	return nil
}
