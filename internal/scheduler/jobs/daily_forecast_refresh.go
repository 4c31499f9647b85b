package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetward/dispatch/internal/cache"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/forecast"
)

const forecastHorizonDays = 14

// DailyForecastRefresh recomputes the volume forecast and warms the cache.
type DailyForecastRefresh struct {
	packages   *repositories.PackageRepository
	forecaster *forecast.Forecaster
	store      cache.Store
	city       string
	ttl        time.Duration
}

// NewDailyForecastRefresh builds the daily-forecast-refresh job.
func NewDailyForecastRefresh(packages *repositories.PackageRepository, forecaster *forecast.Forecaster, store cache.Store, city string, ttl time.Duration) *DailyForecastRefresh {
	return &DailyForecastRefresh{packages: packages, forecaster: forecaster, store: store, city: city, ttl: ttl}
}

// Name identifies the job for scheduler logging and the per-job-id lock.
func (j *DailyForecastRefresh) Name() string { return "daily-forecast-refresh" }

// Run recomputes the forecast.WindowLength-day history into an N-day
// forecast and stores it under the canonical volume forecast cache key.
func (j *DailyForecastRefresh) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	counts, err := j.packages.DailyVolumeHistory(ctx, forecast.WindowLength)
	if err != nil {
		return fmt.Errorf("load daily volume history: %w", err)
	}

	now := time.Now()
	history := make([]float64, forecast.WindowLength)
	for i := 0; i < forecast.WindowLength; i++ {
		day := now.AddDate(0, 0, -(forecast.WindowLength - i)).Format("2006-01-02")
		history[i] = float64(counts[day])
	}

	days := j.forecaster.Forecast(ctx, history, now, forecastHorizonDays, j.city)

	return cache.SetJSON(ctx, j.store, cache.VolumeForecastKey(forecastHorizonDays), days, j.ttl)
}
