package forecast

import (
	"context"
	"math"
	"time"
)

// EarningsDay is one day of a driver's earnings projection.
type EarningsDay struct {
	Date              time.Time
	PackagesForDriver int
	Earnings          float64
}

// Week aggregates EarningsDays into a calendar week (7 days, last group may
// be shorter).
type Week struct {
	Days          []EarningsDay
	TotalPackages int
	TotalEarnings float64
}

// EarningsForecaster projects a driver's share of future volume into
// expected package counts and earnings.
type EarningsForecaster struct {
	volume *Forecaster
}

// NewEarningsForecaster builds an EarningsForecaster over a volume Forecaster.
func NewEarningsForecaster(volume *Forecaster) *EarningsForecaster {
	return &EarningsForecaster{volume: volume}
}

// Forecast computes per-day and weekly-aggregated earnings for a driver over
// the next `days` days, given their historical share of total daily volume
// and their per-package unit pay.
func (e *EarningsForecaster) Forecast(ctx context.Context, history []float64, start time.Time, days int, city string, driverShare, unitPay float64) ([]EarningsDay, []Week) {
	volumeDays := e.volume.Forecast(ctx, history, start, days, city)

	out := make([]EarningsDay, len(volumeDays))
	for i, vd := range volumeDays {
		packages := int(math.Round(float64(vd.PredictedVolume) * driverShare))
		out[i] = EarningsDay{
			Date:              vd.Date,
			PackagesForDriver: packages,
			Earnings:          float64(packages) * unitPay,
		}
	}

	return out, aggregateWeeks(out)
}

func aggregateWeeks(days []EarningsDay) []Week {
	var weeks []Week
	for start := 0; start < len(days); start += 7 {
		end := start + 7
		if end > len(days) {
			end = len(days)
		}
		group := days[start:end]
		week := Week{Days: group}
		for _, d := range group {
			week.TotalPackages += d.PackagesForDriver
			week.TotalEarnings += d.Earnings
		}
		weeks = append(weeks, week)
	}
	return weeks
}
