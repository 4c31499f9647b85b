// Package difficulty implements the Difficulty Scorer (C2): a 15-feature
// linear model over package/driver descriptor features, standardized with a
// z-score scaler and clamped to the [0, 100] difficulty scale.
package difficulty

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/domain"
)

// FeatureCount is the width of the feature vector FeatureVector produces.
const FeatureCount = 15

// Scaler holds the per-feature mean/std used to standardize a raw feature
// vector before it is fed to the linear model.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// Transform applies z-score standardization into a fresh copy, leaving a
// feature untouched when its std is zero (a constant feature carries no
// signal, and dividing by zero would poison the whole vector).
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

// LinearModel is a weights+bias predictor: Predict(x) = dot(w, x) + b.
type LinearModel struct {
	Weights []float64
	Bias    float64
}

// Predict computes the raw (unclamped) score for a standardized feature vector.
func (m LinearModel) Predict(x []float64) float64 {
	n := len(m.Weights)
	if len(x) < n {
		n = len(x)
	}
	wv := mat.NewVecDense(n, m.Weights[:n])
	xv := mat.NewVecDense(n, x[:n])
	return mat.Dot(wv, xv) + m.Bias
}

// Scorer computes difficulty scores for packages.
type Scorer struct {
	model  *LinearModel
	scaler *Scaler
	log    zerolog.Logger
}

// New builds a Scorer. model/scaler may be nil, in which case Score always
// returns the flat fallback.
func New(model *LinearModel, scaler *Scaler, log zerolog.Logger) *Scorer {
	return &Scorer{model: model, scaler: scaler, log: log.With().Str("component", "difficulty").Logger()}
}

// FlatFallback is returned when no model is loaded, matching the rest of the
// core's "best effort, never fail the enclosing operation" policy.
const FlatFallback = 50.0

// FeatureVector builds the 15-dim feature vector for one package/driver
// pair: the nine raw descriptor values (floor and fragile each get their
// own raw dim, on top of the eight named in §4.2, since both also feed the
// derived terms below) plus the six derived terms. Index layout:
//
//	0 weight_kg             5 experience_days         10 experience/distance
//	1 fragile (0/1)         6 avg_delivery_time_min    11 success_rate*weight_kg
//	2 floor                 7 success_rate             12 distance*max(floor,1)
//	3 distance_km           8 vehicle_capacity_kg       13 1/time_window_hours
//	4 time_window_hours     9 weight/capacity           14 (weight*distance*max(floor,1))/(experience+1)
func FeatureVector(p *domain.Package, d *domain.Driver) []float64 {
	fragile := 0.0
	if p.Fragile {
		fragile = 1.0
	}
	floorFactor := math.Max(float64(p.Floor), 1)
	windowHours := p.Window.Hours()
	capacity := d.Vehicle.CapacityKg
	distance := p.DistanceFromHubKm

	weightOverCapacity := 0.0
	if capacity != 0 {
		weightOverCapacity = p.WeightKg / capacity
	}
	experienceOverDistance := 0.0
	if distance != 0 {
		experienceOverDistance = float64(d.ExperienceDays) / distance
	}
	inverseWindow := 0.0
	if windowHours != 0 {
		inverseWindow = 1 / windowHours
	}
	compound := (p.WeightKg * distance * floorFactor) / (float64(d.ExperienceDays) + 1)

	return []float64{
		p.WeightKg,
		fragile,
		float64(p.Floor),
		distance,
		windowHours,
		float64(d.ExperienceDays),
		d.AvgDeliveryTimeMinutes,
		d.SuccessRate(),
		capacity,
		weightOverCapacity,
		experienceOverDistance,
		d.SuccessRate() * p.WeightKg,
		distance * floorFactor,
		inverseWindow,
		compound,
	}
}

// Score predicts and clamps a single difficulty score to [0, 100].
func (s *Scorer) Score(ctx context.Context, features []float64) float64 {
	if s.model == nil || s.scaler == nil {
		return FlatFallback
	}
	x := s.scaler.Transform(features)
	raw := s.model.Predict(x)
	return clamp(raw, 0, 100)
}

// ScoreBatch scores many feature vectors in one call.
func (s *Scorer) ScoreBatch(ctx context.Context, batch [][]float64) []float64 {
	out := make([]float64, len(batch))
	for i, f := range batch {
		out[i] = s.Score(ctx, f)
	}
	return out
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
