package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/assignment"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/difficulty"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/events"
	"github.com/fleetward/dispatch/internal/fairness"
)

func TestDailyAssignment_RunCoversTodaysPendingPackages(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log := zerolog.Nop()

	driverRepo := repositories.NewDriverRepository(db.Conn(), log)
	pkgRepo := repositories.NewPackageRepository(db.Conn(), log)
	assignRepo := repositories.NewAssignmentRepository(db.Conn(), log)

	for i := 0; i < 2; i++ {
		_, err := driverRepo.Create(ctx, &domain.Driver{
			Email: "driver" + string(rune('a'+i)) + "@example.com",
			Phone: "555-100" + string(rune('0'+i)),
			Name:  "Driver",
			Active: true,
		})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := pkgRepo.Create(ctx, &domain.Package{
			TrackingNumber: "TRACK-" + string(rune('A'+i)),
			WeightKg:       2,
			Latitude:       40.0,
			Longitude:      -73.0,
		})
		require.NoError(t, err)
	}

	scorer := difficulty.New(nil, nil, log)
	optimizer := fairness.New(log)
	em := events.NewManager(log)
	pipeline := assignment.New(db, driverRepo, pkgRepo, assignRepo, scorer, optimizer, em, nil, assignment.Config{
		KMin: 2, KMax: 3, EquityBandFrac: 0.15, SolveBudget: time.Second,
	}, log)

	job := NewDailyAssignment(pipeline)
	require.NoError(t, job.Run())

	today := time.Now().Format("2006-01-02")
	assigned, err := assignRepo.ListByDate(ctx, today)
	require.NoError(t, err)
	require.Len(t, assigned, 3)
}

func TestDailyAssignment_Name(t *testing.T) {
	job := NewDailyAssignment(nil)
	require.Equal(t, "daily-assignment", job.Name())
}
