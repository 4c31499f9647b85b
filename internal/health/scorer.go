// Package health implements the Health Scorer & Break Advisor (C5) and the
// Health Monitor Loop (C6): a 12-feature linear risk model, severity
// banding, break recommendations, and the periodic re-scoring job.
package health

import (
	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// FeatureCount is the width of the health feature vector.
const FeatureCount = 12

// Scaler z-score standardizes a raw health feature vector.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// Transform applies z-score standardization, passing constant features through untouched.
func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if i >= len(s.Mean) || i >= len(s.Std) || s.Std[i] == 0 {
			out[i] = v
			continue
		}
		out[i] = (v - s.Mean[i]) / s.Std[i]
	}
	return out
}

// LinearModel predicts a raw (unclamped) risk score.
type LinearModel struct {
	Weights []float64
	Bias    float64
}

// Predict computes dot(w, x) + b.
func (m LinearModel) Predict(x []float64) float64 {
	n := len(m.Weights)
	if len(x) < n {
		n = len(x)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += m.Weights[i] * x[i]
	}
	return sum + m.Bias
}

// Thresholds define the severity bands over a [0,100] risk score:
// [0,Medium) low, [Medium,High) medium, [High,Critical) high, [Critical,100] critical.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// Scorer computes health risk scores and severity bands.
type Scorer struct {
	model      *LinearModel
	scaler     *Scaler
	thresholds Thresholds
	log        zerolog.Logger
}

// New builds a Scorer. model/scaler may be nil, in which case Score always
// returns the flat fallback.
func New(model *LinearModel, scaler *Scaler, thresholds Thresholds, log zerolog.Logger) *Scorer {
	return &Scorer{model: model, scaler: scaler, thresholds: thresholds, log: log.With().Str("component", "health").Logger()}
}

// FlatFallback mirrors the difficulty scorer's "no model loaded" behavior: a
// neutral score landing in the medium band, so an absent predictor degrades
// to "watch this driver" rather than silently suppressing every alert.
const FlatFallback = 50.0

// FeatureVector builds the 12-dim feature vector for one driver at a point
// in time. Index layout:
//
//	0 heart_rate                 6 avg_difficulty_today
//	1 fatigue_level              7 experience_days
//	2 hours_worked               8 success_rate
//	3 hours_since_last_break     9 avg_delivery_time_minutes
//	4 packages_delivered_today  10 hour_of_day
//	5 packages_remaining_today  11 day_of_week
func FeatureVector(v domain.Vitals, w domain.Workload, d *domain.Driver, hour, dayOfWeek int) []float64 {
	return []float64{
		v.HeartRate,
		v.FatigueLevel,
		v.HoursWorked,
		v.HoursSinceLastBreak,
		float64(w.Delivered),
		float64(w.Remaining),
		w.AvgDifficulty,
		float64(d.ExperienceDays),
		d.SuccessRate(),
		d.AvgDeliveryTimeMinutes,
		float64(hour),
		float64(dayOfWeek),
	}
}

// Score predicts a clamped [0,100] risk score and its severity band.
func (s *Scorer) Score(features []float64) (risk float64, severity domain.Severity) {
	if s.model == nil || s.scaler == nil {
		return FlatFallback, s.band(FlatFallback)
	}
	x := s.scaler.Transform(features)
	raw := s.model.Predict(x)
	risk = clamp(raw, 0, 100)
	return risk, s.band(risk)
}

func (s *Scorer) band(risk float64) domain.Severity {
	switch {
	case risk >= s.thresholds.Critical:
		return domain.SeverityCritical
	case risk >= s.thresholds.High:
		return domain.SeverityHigh
	case risk >= s.thresholds.Medium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
