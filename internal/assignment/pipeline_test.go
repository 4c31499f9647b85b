package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/database"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/difficulty"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/events"
	"github.com/fleetward/dispatch/internal/fairness"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPipeline_Run_CoversEveryPendingPackage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log := zerolog.Nop()

	driverRepo := repositories.NewDriverRepository(db.Conn(), log)
	pkgRepo := repositories.NewPackageRepository(db.Conn(), log)
	assignRepo := repositories.NewAssignmentRepository(db.Conn(), log)

	for i := 0; i < 3; i++ {
		_, err := driverRepo.Create(ctx, &domain.Driver{
			Email: "driver" + string(rune('a'+i)) + "@example.com",
			Phone: "555-000" + string(rune('0'+i)),
			Name:  "Driver",
			Active: true,
		})
		require.NoError(t, err)
	}
	for i := 0; i < 6; i++ {
		_, err := pkgRepo.Create(ctx, &domain.Package{
			TrackingNumber: "TRACK-" + string(rune('A'+i)),
			WeightKg:       2,
			Latitude:       40.0,
			Longitude:      -73.0,
		})
		require.NoError(t, err)
	}

	scorer := difficulty.New(nil, nil, log) // nil model -> flat fallback
	optimizer := fairness.New(log)
	em := events.NewManager(log)

	pipeline := New(db, driverRepo, pkgRepo, assignRepo, scorer, optimizer, em, nil, Config{
		KMin: 2, KMax: 3, EquityBandFrac: 0.15, SolveBudget: time.Second,
	}, log)

	summary, err := pipeline.Run(ctx, "2026-08-01")
	require.NoError(t, err)
	require.Equal(t, 6, summary.PackagesCovered)

	assigned, err := assignRepo.ListByDate(ctx, "2026-08-01")
	require.NoError(t, err)
	require.Len(t, assigned, 6)
}
