package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/cache"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/forecast"
)

func TestDailyForecastRefresh_WarmsVolumeForecastCache(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log := zerolog.Nop()

	pkgRepo := repositories.NewPackageRepository(db.Conn(), log)
	_, err := pkgRepo.Create(ctx, &domain.Package{TrackingNumber: "T1", WeightKg: 1})
	require.NoError(t, err)

	forecaster := forecast.New(nil, nil, nil, log)
	store := cache.NewSQLiteStore(db.Conn(), log)

	job := NewDailyForecastRefresh(pkgRepo, forecaster, store, "metro", 5*time.Minute)
	require.NoError(t, job.Run())

	var days []forecast.Day
	ok, err := cache.GetJSON(ctx, store, cache.VolumeForecastKey(forecastHorizonDays), &days)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, days, forecastHorizonDays)
}

func TestDailyForecastRefresh_Name(t *testing.T) {
	job := NewDailyForecastRefresh(nil, nil, nil, "", 0)
	require.Equal(t, "daily-forecast-refresh", job.Name())
}
