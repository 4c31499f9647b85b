package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/assignment"
	"github.com/fleetward/dispatch/internal/config"
	"github.com/fleetward/dispatch/internal/connreg"
	"github.com/fleetward/dispatch/internal/database"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/difficulty"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/events"
	"github.com/fleetward/dispatch/internal/fairness"
	"github.com/fleetward/dispatch/internal/forecast"
	"github.com/fleetward/dispatch/internal/identity"
	"github.com/fleetward/dispatch/internal/insurance"
	"github.com/fleetward/dispatch/internal/swap"
)

func newTestServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()
	db, err := database.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	drivers := repositories.NewDriverRepository(db.Conn(), log)
	packages := repositories.NewPackageRepository(db.Conn(), log)
	assignments := repositories.NewAssignmentRepository(db.Conn(), log)
	swaps := repositories.NewSwapRepository(db.Conn(), log)
	payouts := repositories.NewInsurancePayoutRepository(db.Conn(), log)
	gpsLogs := repositories.NewGPSLogRepository(db.Conn(), log)
	deliveries := repositories.NewDeliveryRepository(db.Conn(), log)

	em := events.NewManager(log)
	scorer := difficulty.New(nil, nil, log)
	optimizer := fairness.New(log)
	pipeline := assignment.New(db, drivers, packages, assignments, scorer, optimizer, em, nil, assignment.Config{
		KMin: 1, KMax: 3, EquityBandFrac: 0.15, SolveBudget: time.Second,
	}, log)
	marketplace := swap.New(db, assignments, packages, drivers, swaps, em, swap.Config{
		MaxPerDay: 2, CooldownMinutes: 60, NotificationTimeoutMins: 10,
	}, log)
	insuranceCalc := insurance.New(drivers, payouts, 2.0, 5.0, log)
	volume := forecast.New(nil, nil, nil, log)
	earnings := forecast.NewEarningsForecaster(volume)
	connections := connreg.New(log)
	resolver := identity.NewStaticResolver(nil)

	s := New(Config{
		Port: 0, Log: log, DB: db, Config: &config.Config{}, DevMode: true,

		Drivers: drivers, Packages: packages, Assignments: assignments, Swaps: swaps,
		Payouts: payouts, GPSLogs: gpsLogs, Deliveries: deliveries,

		Pipeline: pipeline, Marketplace: marketplace, Insurance: insuranceCalc,
		Volume: volume, Earnings: earnings, Connections: connections, Identity: resolver,

		WeatherCity: "",
	})
	return s, db
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
}

func TestHandleSystemStatus_IncludesHostStats(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/system/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	host, ok := body["host"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, host, "cpu_percent")
	require.Contains(t, host, "ram_percent")
}

func TestDriverCreateGetAndLocation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/drivers/", map[string]interface{}{
		"email": "d@example.com", "phone": "555-0100", "name": "Driver", "vehicle_type": "van", "vehicle_capacity_kg": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Driver
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/drivers/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/drivers/999999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/drivers/%d/location", created.ID), map[string]float64{
		"latitude": 40.1, "longitude": -73.2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPackageCreateAndGet(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/packages/", map[string]interface{}{
		"tracking_number": "TRACK-1", "weight_kg": 2.5, "latitude": 40.0, "longitude": -73.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Package
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/packages/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAssignmentLifecycle_RunAcceptComplete(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	driverID, err := s.drivers.Create(ctx, &domain.Driver{Email: "a@example.com", Phone: "1", Name: "A", Active: true})
	require.NoError(t, err)
	_, err = s.packages.Create(ctx, &domain.Package{TrackingNumber: "T1", WeightKg: 1, Latitude: 40.0, Longitude: -73.0})
	require.NoError(t, err)

	today := time.Now().Format("2006-01-02")
	rec := doJSON(t, s, http.MethodPost, "/api/assignments/run", map[string]string{"operational_date": today})
	require.Equal(t, http.StatusOK, rec.Code)

	assigned, err := s.assignments.ListByDriverAndDate(ctx, driverID, today)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assignmentID := assigned[0].ID

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/assignments/%d/accept", assignmentID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/assignments/%d/complete", assignmentID), map[string]interface{}{
		"actual_difficulty": 10.0, "duration_minutes": 20.0, "successful": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestForecastVolumeAndEarnings(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/forecast/volume?days=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var days []forecast.Day
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &days))
	require.Len(t, days, 5)

	rec = doJSON(t, s, http.MethodGet, "/api/forecast/earnings?days=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInsuranceEvaluate(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/insurance/evaluate", map[string]string{
		"window_start": "2026-07-01", "window_end": "2026-07-31",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInsuranceEvaluate_InvalidWindowIsValidationError(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/insurance/evaluate", map[string]string{
		"window_start": "not-a-date", "window_end": "2026-07-31",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
