package health

import "github.com/fleetward/dispatch/internal/domain"

// Advisor turns a risk score and the workload behind it into a concrete
// break recommendation, or nil if no break is warranted.
type Advisor struct{}

// NewAdvisor builds an Advisor.
func NewAdvisor() *Advisor {
	return &Advisor{}
}

// Recommend walks the fixed risk-band rule table top to bottom and returns
// the first match: higher risk bands get longer, more urgent breaks, and
// two rules below the bands catch drivers the risk score alone would miss
// (heavy remaining workload or a long stretch without a break).
func (a *Advisor) Recommend(risk, remainingDifficulty, hoursWorked float64) *domain.RecommendedBreak {
	switch {
	case risk >= 90:
		return a.build(60, "critical", "risk_critical", remainingDifficulty, hoursWorked)
	case risk >= 80:
		return a.build(45, "critical", "risk_very_high", remainingDifficulty, hoursWorked)
	case risk >= 75:
		return a.build(30, "critical", "risk_high", remainingDifficulty, hoursWorked)
	case risk >= 60:
		return a.build(20, "high", "risk_elevated", remainingDifficulty, hoursWorked)
	case risk >= 40 && (remainingDifficulty > 50 || hoursWorked > 6):
		return a.build(15, "medium", "risk_moderate_with_workload", remainingDifficulty, hoursWorked)
	case hoursWorked > 8:
		return a.build(15, "medium", "long_shift_no_break", remainingDifficulty, hoursWorked)
	default:
		return nil
	}
}

func (a *Advisor) build(durationMinutes int, urgency, reason string, remainingDifficulty, hoursWorked float64) *domain.RecommendedBreak {
	return &domain.RecommendedBreak{
		DurationMinutes: durationMinutes,
		Urgency:         urgency,
		Reason:          reason,
		Timing:          timingHint(remainingDifficulty, hoursWorked),
	}
}

// timingHint favors letting the driver finish what's in hand over an
// immediate stop, unless the shift itself has run long enough that waiting
// is the bigger risk.
func timingHint(remainingDifficulty, hoursWorked float64) string {
	switch {
	case remainingDifficulty > 70:
		return "after_next_delivery"
	case hoursWorked > 7:
		return "immediately"
	default:
		return "within_30_minutes"
	}
}
