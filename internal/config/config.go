package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting for the dispatch core.
type Config struct {
	Port    int
	DevMode bool

	DatabasePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	UseRedisCache bool

	LogLevel string

	// Fairness optimizer
	FairnessKMin           int
	FairnessKMax           int
	FairnessEquityBandPct  float64
	FairnessSolveBudgetMs  int

	// Health monitor
	HealthRiskThresholdMedium   float64
	HealthRiskThresholdHigh     float64
	HealthRiskThresholdCritical float64
	HealthMonitorIntervalSecs   int
	HealthAlertDedupMinutes     int

	// Swap marketplace
	SwapMaxPerDay                int
	SwapCooldownMinutes          int
	SwapNotificationTimeoutMins  int

	// Insurance
	InsuranceZScoreThreshold float64
	InsuranceBasePenalty     float64

	// Retention
	GPSLogRetentionDays     int
	HealthEventRetentionDays int

	// Cron expressions
	CronDailyAssignment       string
	CronDailyForecastRefresh  string
	CronHealthMonitor         string
	CronNightlyLearningExport string
	CronNightlyCleanup        string

	// External adapters
	WeatherAPIBaseURL string
	WeatherAPIKey     string
	PushDispatchURL   string

	// Forecasting
	FleetCity               string
	ForecastCacheTTLMinutes int

	// Model artifacts (C1). Empty paths mean the corresponding scorer runs
	// its flat/absence fallback instead of a trained model.
	DifficultyModelPath string
	HealthModelPath     string
	VolumeModelPath     string
	ScalersPath         string
}

// Load reads configuration from the environment, applying the defaults named
// in the configuration surface.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8080),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		DatabasePath: getEnv("DATABASE_PATH", "./data/dispatch.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		UseRedisCache: getEnvAsBool("USE_REDIS_CACHE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		FairnessKMin:          getEnvAsInt("FAIRNESS_K_MIN", 8),
		FairnessKMax:          getEnvAsInt("FAIRNESS_K_MAX", 15),
		FairnessEquityBandPct: getEnvAsFloat("FAIRNESS_EQUITY_BAND_PCT", 0.15),
		FairnessSolveBudgetMs: getEnvAsInt("FAIRNESS_SOLVE_BUDGET_MS", 2000),

		HealthRiskThresholdMedium:   getEnvAsFloat("HEALTH_RISK_THRESHOLD_MEDIUM", 40),
		HealthRiskThresholdHigh:     getEnvAsFloat("HEALTH_RISK_THRESHOLD_HIGH", 60),
		HealthRiskThresholdCritical: getEnvAsFloat("HEALTH_RISK_THRESHOLD_CRITICAL", 75),
		HealthMonitorIntervalSecs:   getEnvAsInt("HEALTH_MONITOR_INTERVAL_SECONDS", 60),
		HealthAlertDedupMinutes:     getEnvAsInt("HEALTH_ALERT_DEDUP_MINUTES", 15),

		SwapMaxPerDay:               getEnvAsInt("SWAP_MAX_PER_DAY", 2),
		SwapCooldownMinutes:         getEnvAsInt("SWAP_COOLDOWN_MINUTES", 60),
		SwapNotificationTimeoutMins: getEnvAsInt("SWAP_NOTIFICATION_TIMEOUT_MINUTES", 10),

		InsuranceZScoreThreshold: getEnvAsFloat("INSURANCE_Z_SCORE_THRESHOLD", 2.0),
		InsuranceBasePenalty:     getEnvAsFloat("INSURANCE_BASE_PENALTY", 100.0),

		GPSLogRetentionDays:      getEnvAsInt("GPS_LOG_RETENTION_DAYS", 30),
		HealthEventRetentionDays: getEnvAsInt("HEALTH_EVENT_RETENTION_DAYS", 90),

		CronDailyAssignment:       getEnv("CRON_DAILY_ASSIGNMENT", "0 0 5 * * *"),
		CronDailyForecastRefresh:  getEnv("CRON_DAILY_FORECAST_REFRESH", "0 30 5 * * *"),
		CronHealthMonitor:         getEnv("CRON_HEALTH_MONITOR", fmt.Sprintf("@every %ds", getEnvAsInt("HEALTH_MONITOR_INTERVAL_SECONDS", 60))),
		CronNightlyLearningExport: getEnv("CRON_NIGHTLY_LEARNING_EXPORT", "0 0 2 * * *"),
		CronNightlyCleanup:        getEnv("CRON_NIGHTLY_CLEANUP", "0 30 2 * * *"),

		WeatherAPIBaseURL: getEnv("WEATHER_API_BASE_URL", ""),
		WeatherAPIKey:     getEnv("WEATHER_API_KEY", ""),
		PushDispatchURL:   getEnv("PUSH_DISPATCH_URL", ""),

		FleetCity:               getEnv("FLEET_CITY", ""),
		ForecastCacheTTLMinutes: getEnvAsInt("FORECAST_CACHE_TTL_MINUTES", 1440),

		DifficultyModelPath: getEnv("DIFFICULTY_MODEL_PATH", ""),
		HealthModelPath:     getEnv("HEALTH_MODEL_PATH", ""),
		VolumeModelPath:     getEnv("VOLUME_MODEL_PATH", ""),
		ScalersPath:         getEnv("SCALERS_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the minimal set of settings required for the service to
// come up at all; external adapters (weather, push) are optional and fail
// soft at call time instead.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.FairnessKMin <= 0 || c.FairnessKMax < c.FairnessKMin {
		return fmt.Errorf("FAIRNESS_K_MIN/FAIRNESS_K_MAX must satisfy 0 < k_min <= k_max")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
