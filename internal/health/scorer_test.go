package health

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/fleetward/dispatch/internal/domain"
)

func TestScore_FlatFallbackWhenNoModel(t *testing.T) {
	s := New(nil, nil, Thresholds{Medium: 40, High: 60, Critical: 75}, zerolog.Nop())
	risk, severity := s.Score(make([]float64, FeatureCount))
	assert.Equal(t, FlatFallback, risk)
	assert.Equal(t, domain.SeverityMedium, severity)
}

func TestScore_Bands(t *testing.T) {
	s := New(nil, nil, Thresholds{Medium: 40, High: 60, Critical: 75}, zerolog.Nop())
	assert.Equal(t, domain.SeverityCritical, s.band(95))
	assert.Equal(t, domain.SeverityCritical, s.band(75))
	assert.Equal(t, domain.SeverityHigh, s.band(70))
	assert.Equal(t, domain.SeverityMedium, s.band(50))
	assert.Equal(t, domain.SeverityLow, s.band(39))
}

func TestAdvisor_RecommendScalesWithRisk(t *testing.T) {
	a := NewAdvisor()
	assert.Nil(t, a.Recommend(10, 0, 0))

	rec := a.Recommend(95, 80, 2)
	assert.NotNil(t, rec)
	assert.Equal(t, "critical", rec.Urgency)
	assert.Equal(t, "risk_critical", rec.Reason)
	assert.Equal(t, 60, rec.DurationMinutes)
	assert.Equal(t, "after_next_delivery", rec.Timing)
}

func TestAdvisor_Recommend_MediumBandRequiresWorkloadOrHours(t *testing.T) {
	a := NewAdvisor()
	assert.Nil(t, a.Recommend(45, 10, 2))

	rec := a.Recommend(45, 500, 2)
	assert.NotNil(t, rec)
	assert.Equal(t, "medium", rec.Urgency)
	assert.Equal(t, 15, rec.DurationMinutes)
}

func TestAdvisor_Recommend_LongShiftForcesBreakRegardlessOfRisk(t *testing.T) {
	a := NewAdvisor()
	rec := a.Recommend(10, 0, 9)
	assert.NotNil(t, rec)
	assert.Equal(t, "long_shift_no_break", rec.Reason)
	assert.Equal(t, 15, rec.DurationMinutes)
}

func TestFeatureVector_Length(t *testing.T) {
	d := &domain.Driver{ExperienceDays: 100, TotalDeliveries: 10, SuccessfulDeliveries: 9}
	fv := FeatureVector(domain.Vitals{HeartRate: 80}, domain.Workload{Delivered: 3}, d, 14, 2)
	assert.Len(t, fv, FeatureCount)
}
