package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/assignment"
	"github.com/fleetward/dispatch/internal/cache"
	"github.com/fleetward/dispatch/internal/config"
	"github.com/fleetward/dispatch/internal/connreg"
	"github.com/fleetward/dispatch/internal/database"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/difficulty"
	"github.com/fleetward/dispatch/internal/events"
	"github.com/fleetward/dispatch/internal/fairness"
	"github.com/fleetward/dispatch/internal/forecast"
	"github.com/fleetward/dispatch/internal/health"
	"github.com/fleetward/dispatch/internal/identity"
	"github.com/fleetward/dispatch/internal/insurance"
	"github.com/fleetward/dispatch/internal/notify"
	"github.com/fleetward/dispatch/internal/scheduler"
	"github.com/fleetward/dispatch/internal/scheduler/jobs"
	"github.com/fleetward/dispatch/internal/server"
	"github.com/fleetward/dispatch/internal/swap"
	"github.com/fleetward/dispatch/internal/weather"
	"github.com/fleetward/dispatch/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting fleet dispatch core")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.SetGlobalLogger(log)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	cacheStore, err := newCacheStore(db, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache store")
	}

	drivers := repositories.NewDriverRepository(db.Conn(), log)
	packages := repositories.NewPackageRepository(db.Conn(), log)
	assignments := repositories.NewAssignmentRepository(db.Conn(), log)
	swaps := repositories.NewSwapRepository(db.Conn(), log)
	payouts := repositories.NewInsurancePayoutRepository(db.Conn(), log)
	gpsLogs := repositories.NewGPSLogRepository(db.Conn(), log)
	deliveries := repositories.NewDeliveryRepository(db.Conn(), log)
	healthEvents := repositories.NewHealthEventRepository(db.Conn(), log)
	learningExports := repositories.NewLearningExportRepository(db.Conn(), log)

	em := events.NewManager(log)

	// Model artifacts are optional: any path left unset leaves that kind
	// absent in the registry, and the owning scorer/forecaster falls back to
	// its flat/absence default.
	modelRegistry := newModelRegistry(cfg, log)
	modelRegistry.Load(context.Background())

	diffModel, diffScaler := difficultyHandles(modelRegistry)
	difficultyScorer := difficulty.New(diffModel, diffScaler, log)
	optimizer := fairness.New(log)

	dispatcher := notify.NewDispatcher(cfg.PushDispatchURL, log)
	assignmentNotifier := notify.NewAssignmentNotifier(dispatcher, drivers)
	breakNotifier := notify.NewBreakNotifier(dispatcher, drivers)

	pipeline := assignment.New(db, drivers, packages, assignments, difficultyScorer, optimizer, em, assignmentNotifier, assignment.Config{
		KMin:           cfg.FairnessKMin,
		KMax:           cfg.FairnessKMax,
		EquityBandFrac: cfg.FairnessEquityBandPct,
		SolveBudget:    time.Duration(cfg.FairnessSolveBudgetMs) * time.Millisecond,
	}, log)

	healthModel, healthScalerHandle := healthHandles(modelRegistry)
	healthScorer := health.New(healthModel, healthScalerHandle, health.Thresholds{
		Medium:   cfg.HealthRiskThresholdMedium,
		High:     cfg.HealthRiskThresholdHigh,
		Critical: cfg.HealthRiskThresholdCritical,
	}, log)
	healthAdvisor := health.NewAdvisor()
	healthMonitor := health.NewMonitor(drivers, healthEvents, healthScorer, healthAdvisor, breakNotifier, em,
		time.Duration(cfg.HealthAlertDedupMinutes)*time.Minute, log)

	weatherClient := weather.NewClient(cfg.WeatherAPIBaseURL, cfg.WeatherAPIKey, log)
	volumeModel, volumeScaler := volumeHandles(modelRegistry)
	volumeForecaster := forecast.New(volumeModel, volumeScaler, weatherClient, log)
	earningsForecaster := forecast.NewEarningsForecaster(volumeForecaster)

	marketplace := swap.New(db, assignments, packages, drivers, swaps, em, swap.Config{
		MaxPerDay:               cfg.SwapMaxPerDay,
		CooldownMinutes:         cfg.SwapCooldownMinutes,
		NotificationTimeoutMins: cfg.SwapNotificationTimeoutMins,
	}, log)

	insuranceCalc := insurance.New(drivers, payouts, cfg.InsuranceZScoreThreshold, cfg.InsuranceBasePenalty, log)

	connections := connreg.New(log)

	// StaticResolver with no tokens loaded: a real deployment swaps this for
	// an identity-service-backed Resolver without touching any caller.
	identityResolver := identity.NewStaticResolver(map[string]identity.Subject{})

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if err := registerJobs(sched, cfg, pipeline, packages, volumeForecaster, healthMonitor, learningExports, gpsLogs, healthEvents, cacheStore); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DB:      db,
		Config:  cfg,
		DevMode: cfg.DevMode,

		Drivers:     drivers,
		Packages:    packages,
		Assignments: assignments,
		Swaps:       swaps,
		Payouts:     payouts,
		GPSLogs:     gpsLogs,
		Deliveries:  deliveries,

		Pipeline:    pipeline,
		Marketplace: marketplace,
		Insurance:   insuranceCalc,
		Volume:      volumeForecaster,
		Earnings:    earningsForecaster,
		Connections: connections,
		Identity:    identityResolver,

		WeatherCity: cfg.FleetCity,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func newCacheStore(db *database.DB, cfg *config.Config, log zerolog.Logger) (cache.Store, error) {
	if cfg.UseRedisCache {
		return cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	}
	return cache.NewSQLiteStore(db.Conn(), log), nil
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	pipeline *assignment.Pipeline,
	packages *repositories.PackageRepository,
	volumeForecaster *forecast.Forecaster,
	healthMonitor *health.Monitor,
	learningExports *repositories.LearningExportRepository,
	gpsLogs *repositories.GPSLogRepository,
	healthEvents *repositories.HealthEventRepository,
	cacheStore cache.Store,
) error {
	if err := sched.AddJob(cfg.CronDailyAssignment, jobs.NewDailyAssignment(pipeline)); err != nil {
		return err
	}
	forecastTTL := time.Duration(cfg.ForecastCacheTTLMinutes) * time.Minute
	if err := sched.AddJob(cfg.CronDailyForecastRefresh, jobs.NewDailyForecastRefresh(packages, volumeForecaster, cacheStore, cfg.FleetCity, forecastTTL)); err != nil {
		return err
	}
	if err := sched.AddJob(cfg.CronHealthMonitor, jobs.NewHealthMonitor(healthMonitor)); err != nil {
		return err
	}
	if err := sched.AddJob(cfg.CronNightlyLearningExport, jobs.NewNightlyLearningExport(learningExports)); err != nil {
		return err
	}
	if err := sched.AddJob(cfg.CronNightlyCleanup, jobs.NewNightlyCleanup(gpsLogs, healthEvents, cfg.GPSLogRetentionDays, cfg.HealthEventRetentionDays)); err != nil {
		return err
	}
	return nil
}
