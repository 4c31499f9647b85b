package health

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/database"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/events"
)

func newTestMonitorDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeNotifier struct {
	calls int
}

func (f *fakeNotifier) NotifyBreak(ctx context.Context, driverID int64, rec domain.RecommendedBreak) error {
	f.calls++
	return nil
}

func newRiskyModel() (*LinearModel, *Scaler) {
	weights := make([]float64, FeatureCount)
	weights[0] = 1000 // heart_rate dominates, forces a high risk score
	return &LinearModel{Weights: weights, Bias: 0}, &Scaler{Mean: make([]float64, FeatureCount), Std: ones(FeatureCount)}
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestMonitor_SweepOnce_DispatchesAlertForElevatedRisk(t *testing.T) {
	ctx := context.Background()
	db := newTestMonitorDB(t)
	log := zerolog.Nop()

	drivers := repositories.NewDriverRepository(db.Conn(), log)
	healthEvents := repositories.NewHealthEventRepository(db.Conn(), log)

	driverID, err := drivers.Create(ctx, &domain.Driver{Email: "d@example.com", Phone: "1", Name: "D", Active: true})
	require.NoError(t, err)
	_, err = healthEvents.Create(ctx, &domain.HealthEvent{
		DriverID: driverID,
		Vitals:   domain.Vitals{HeartRate: 190, FatigueLevel: 9, HoursWorked: 9, HoursSinceLastBreak: 5},
		Workload: domain.Workload{Delivered: 10, Remaining: 2, DistanceKm: 40, AvgDifficulty: 60},
	})
	require.NoError(t, err)

	model, scaler := newRiskyModel()
	scorer := New(model, scaler, Thresholds{Medium: 40, High: 60, Critical: 75}, log)
	advisor := NewAdvisor()
	notifier := &fakeNotifier{}
	em := events.NewManager(log)

	monitor := NewMonitor(drivers, healthEvents, scorer, advisor, notifier, em, time.Hour, log)
	require.NoError(t, monitor.SweepOnce(ctx))

	require.Equal(t, 1, notifier.calls)

	latest, err := healthEvents.GetLatestForDriver(ctx, driverID)
	require.NoError(t, err)
	require.NotNil(t, latest.AlertDispatchedAt)
}

func TestMonitor_SweepOnce_DedupsWithinWindow(t *testing.T) {
	ctx := context.Background()
	db := newTestMonitorDB(t)
	log := zerolog.Nop()

	drivers := repositories.NewDriverRepository(db.Conn(), log)
	healthEvents := repositories.NewHealthEventRepository(db.Conn(), log)

	driverID, err := drivers.Create(ctx, &domain.Driver{Email: "d@example.com", Phone: "1", Name: "D", Active: true})
	require.NoError(t, err)

	model, scaler := newRiskyModel()
	scorer := New(model, scaler, Thresholds{Medium: 40, High: 60, Critical: 75}, log)
	advisor := NewAdvisor()
	notifier := &fakeNotifier{}
	em := events.NewManager(log)

	// A long dedup window means the second sweep's freshly-rescored event
	// (which still carries a very recent AlertDispatchedAt) must not
	// re-alert.
	monitor := NewMonitor(drivers, healthEvents, scorer, advisor, notifier, em, time.Hour, log)

	_, err = healthEvents.Create(ctx, &domain.HealthEvent{
		DriverID: driverID,
		Vitals:   domain.Vitals{HeartRate: 190, FatigueLevel: 9, HoursWorked: 9, HoursSinceLastBreak: 5},
		Workload: domain.Workload{Delivered: 10, Remaining: 2, DistanceKm: 40, AvgDifficulty: 60},
	})
	require.NoError(t, err)

	require.NoError(t, monitor.SweepOnce(ctx))
	require.Equal(t, 1, notifier.calls)

	require.NoError(t, monitor.SweepOnce(ctx))
	require.Equal(t, 1, notifier.calls, "second sweep within the dedup window must not re-alert")
}

func TestMonitor_SweepOnce_SkipsDriverWithNoHealthEvent(t *testing.T) {
	ctx := context.Background()
	db := newTestMonitorDB(t)
	log := zerolog.Nop()

	drivers := repositories.NewDriverRepository(db.Conn(), log)
	healthEvents := repositories.NewHealthEventRepository(db.Conn(), log)

	_, err := drivers.Create(ctx, &domain.Driver{Email: "d@example.com", Phone: "1", Name: "D", Active: true})
	require.NoError(t, err)

	scorer := New(nil, nil, Thresholds{Medium: 40, High: 60, Critical: 75}, log)
	advisor := NewAdvisor()
	notifier := &fakeNotifier{}
	em := events.NewManager(log)

	monitor := NewMonitor(drivers, healthEvents, scorer, advisor, notifier, em, time.Hour, log)
	require.NoError(t, monitor.SweepOnce(ctx))
	require.Equal(t, 0, notifier.calls)
}
