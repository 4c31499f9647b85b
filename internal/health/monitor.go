package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/events"
)

// Notifier dispatches a break alert to a driver's device. Implemented by
// internal/notify against the push dispatch service.
type Notifier interface {
	NotifyBreak(ctx context.Context, driverID int64, rec domain.RecommendedBreak) error
}

// Monitor periodically re-scores every active driver from their latest
// HealthEvent and dispatches deduplicated break alerts.
type Monitor struct {
	drivers      *repositories.DriverRepository
	healthEvents *repositories.HealthEventRepository
	scorer       *Scorer
	advisor      *Advisor
	notifier     Notifier
	events       *events.Manager
	log          zerolog.Logger

	dedupWindow time.Duration
}

// NewMonitor builds a Monitor. notifier may be nil, in which case alerts are
// only logged and persisted, never pushed.
func NewMonitor(
	drivers *repositories.DriverRepository,
	healthEvents *repositories.HealthEventRepository,
	scorer *Scorer,
	advisor *Advisor,
	notifier Notifier,
	em *events.Manager,
	dedupWindow time.Duration,
	log zerolog.Logger,
) *Monitor {
	return &Monitor{
		drivers: drivers, healthEvents: healthEvents, scorer: scorer, advisor: advisor,
		notifier: notifier, events: em, dedupWindow: dedupWindow,
		log: log.With().Str("component", "health_monitor").Logger(),
	}
}

// SweepOnce re-scores every active driver's latest health event and
// dispatches a deduplicated alert when the resulting severity crosses into
// medium or above. Drivers with no health event yet are skipped silently:
// there is no vitals reading to re-score.
func (m *Monitor) SweepOnce(ctx context.Context) error {
	drivers, err := m.drivers.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active drivers: %w", err)
	}

	for _, d := range drivers {
		latest, err := m.healthEvents.GetLatestForDriver(ctx, d.ID)
		if err != nil {
			m.log.Error().Err(err).Int64("driver_id", d.ID).Msg("read latest health event failed")
			continue
		}
		if latest == nil {
			continue
		}
		if err := m.rescoreAndAlert(ctx, d, latest); err != nil {
			m.log.Error().Err(err).Int64("driver_id", d.ID).Msg("rescore failed")
		}
	}
	return nil
}

func (m *Monitor) rescoreAndAlert(ctx context.Context, d *domain.Driver, latest *domain.HealthEvent) error {
	now := time.Now()
	hour, dow := now.Hour(), int(now.Weekday())
	features := FeatureVector(latest.Vitals, latest.Workload, d, hour, dow)
	risk, severity := m.scorer.Score(features)

	remainingDifficulty := float64(latest.Workload.Remaining) * latest.Workload.AvgDifficulty
	rec := m.advisor.Recommend(risk, remainingDifficulty, latest.Vitals.HoursWorked)

	event := &domain.HealthEvent{
		DriverID:         d.ID,
		Vitals:           latest.Vitals,
		Workload:         latest.Workload,
		PredictedRisk:    risk,
		Severity:         severity,
		RecommendedBreak: rec,
	}
	id, err := m.healthEvents.Create(ctx, event)
	if err != nil {
		return fmt.Errorf("persist rescored health event: %w", err)
	}

	if rec == nil {
		return nil
	}

	if latest.AlertDispatchedAt != nil && time.Since(*latest.AlertDispatchedAt) < m.dedupWindow {
		return nil
	}

	m.events.Emit(events.HealthRiskElevated, "health", map[string]interface{}{
		"driver_id": d.ID,
		"risk":      risk,
		"severity":  string(severity),
	})
	m.events.Emit(events.BreakRecommended, "health", map[string]interface{}{
		"driver_id": d.ID,
		"urgency":   rec.Urgency,
		"reason":    rec.Reason,
	})

	if m.notifier != nil {
		if err := m.notifier.NotifyBreak(ctx, d.ID, *rec); err != nil {
			m.log.Warn().Err(err).Int64("driver_id", d.ID).Msg("break push notification failed")
		}
	}

	return m.healthEvents.MarkAlertDispatched(ctx, id)
}
