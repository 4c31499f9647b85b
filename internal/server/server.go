package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/assignment"
	"github.com/fleetward/dispatch/internal/config"
	"github.com/fleetward/dispatch/internal/connreg"
	"github.com/fleetward/dispatch/internal/database"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/forecast"
	"github.com/fleetward/dispatch/internal/identity"
	"github.com/fleetward/dispatch/internal/insurance"
	"github.com/fleetward/dispatch/internal/swap"
)

// Config holds everything the HTTP surface needs. The heavy lifting
// (scoring, optimizing, forecasting) lives in the component packages; the
// server only translates HTTP into calls against them.
type Config struct {
	Port    int
	Log     zerolog.Logger
	DB      *database.DB
	Config  *config.Config
	DevMode bool

	Drivers     *repositories.DriverRepository
	Packages    *repositories.PackageRepository
	Assignments *repositories.AssignmentRepository
	Swaps       *repositories.SwapRepository
	Payouts     *repositories.InsurancePayoutRepository
	GPSLogs     *repositories.GPSLogRepository
	Deliveries  *repositories.DeliveryRepository

	Pipeline    *assignment.Pipeline
	Marketplace *swap.Marketplace
	Insurance   *insurance.Calculator
	Volume      *forecast.Forecaster
	Earnings    *forecast.EarningsForecaster
	Connections *connreg.Registry
	Identity    identity.Resolver

	WeatherCity string
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	db     *database.DB
	cfg    *config.Config

	drivers     *repositories.DriverRepository
	packages    *repositories.PackageRepository
	assignments *repositories.AssignmentRepository
	swaps       *repositories.SwapRepository
	payouts     *repositories.InsurancePayoutRepository
	gpsLogs     *repositories.GPSLogRepository
	deliveries  *repositories.DeliveryRepository

	pipeline    *assignment.Pipeline
	marketplace *swap.Marketplace
	insurance   *insurance.Calculator
	volume      *forecast.Forecaster
	earnings    *forecast.EarningsForecaster
	connections *connreg.Registry
	identity    identity.Resolver

	weatherCity string
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		db:     cfg.DB,
		cfg:    cfg.Config,

		drivers:     cfg.Drivers,
		packages:    cfg.Packages,
		assignments: cfg.Assignments,
		swaps:       cfg.Swaps,
		payouts:     cfg.Payouts,
		gpsLogs:     cfg.GPSLogs,
		deliveries:  cfg.Deliveries,

		pipeline:    cfg.Pipeline,
		marketplace: cfg.Marketplace,
		insurance:   cfg.Insurance,
		volume:      cfg.Volume,
		earnings:    cfg.Earnings,
		connections: cfg.Connections,
		identity:    cfg.Identity,

		weatherCity: cfg.WeatherCity,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		s.setupDriverRoutes(r)
		s.setupPackageRoutes(r)
		s.setupAssignmentRoutes(r)
		s.setupSwapRoutes(r)
		s.setupInsuranceRoutes(r)
		s.setupForecastRoutes(r)
	})

	// WebSocket upgrade for a driver's live connection (pings, location
	// updates, delivery status updates). Break alerts are not sent over
	// this socket; they go out as push notifications only.
	s.router.Get("/ws/{driver_id}", s.handleWebSocket)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
