package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"nhooyr.io/websocket"

	"github.com/fleetward/dispatch/internal/apperror"
	"github.com/fleetward/dispatch/internal/connreg"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/forecast"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "fleetward-dispatch",
	})
}

// handleSystemStatus handles system status requests
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cpuPercent, ramPercent := s.hostStats()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "running",
		"memory": map[string]interface{}{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"num_gc":         m.NumGC,
		},
		"host": map[string]interface{}{
			"cpu_percent": cpuPercent,
			"ram_percent": ramPercent,
		},
		"goroutines": runtime.NumGoroutine(),
		"sockets":    s.connections.Count(),
	})
}

// hostStats samples host CPU and RAM utilization over a short window. Errors
// are logged and reported as zero rather than failing the status endpoint.
func (s *Server) hostStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample cpu percent")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample memory stats")
		return 0, 0
	}

	var cpuAvg float64
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes an error response, mapping apperror.Kind to a status
// code so handlers never have to repeat the switch themselves.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperror.Of(err) {
	case apperror.KindValidation:
		status = http.StatusBadRequest
	case apperror.KindAuthorization:
		status = http.StatusForbidden
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindConcurrencyConflict:
		status = http.StatusConflict
	case apperror.KindDependencyUnavailable:
		status = http.StatusBadGateway
	case apperror.KindInfeasible:
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// --- drivers -----------------------------------------------------------

func (s *Server) setupDriverRoutes(r chi.Router) {
	r.Route("/drivers", func(r chi.Router) {
		r.Post("/", s.handleCreateDriver)
		r.Get("/{driver_id}", s.handleGetDriver)
		r.Get("/{driver_id}/assignments", s.handleListDriverAssignments)
		r.Get("/{driver_id}/swaps", s.handleListDriverSwaps)
		r.Get("/{driver_id}/insurance", s.handleListDriverPayouts)
		r.Post("/{driver_id}/location", s.handleRecordLocation)
	})
}

type createDriverRequest struct {
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Name       string  `json:"name"`
	VehicleType string `json:"vehicle_type"`
	CapacityKg float64 `json:"vehicle_capacity_kg"`
}

func (s *Server) handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	var req createDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}
	d := &domain.Driver{
		Email: req.Email, Phone: req.Phone, Name: req.Name, Active: true,
		Vehicle: domain.Vehicle{Type: req.VehicleType, CapacityKg: req.CapacityKg},
	}
	id, err := s.drivers.Create(r.Context(), d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	d.ID = id
	s.writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "driver_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid driver id", err))
		return
	}
	d, err := s.drivers.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if d == nil {
		s.writeError(w, apperror.New(apperror.KindNotFound, fmt.Sprintf("driver %d not found", id), nil))
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDriverAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "driver_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid driver id", err))
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	list, err := s.assignments.ListByDriverAndDate(r.Context(), id, date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListDriverSwaps(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "driver_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid driver id", err))
		return
	}
	listings, err := s.marketplace.ListForDriver(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleListDriverPayouts(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "driver_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid driver id", err))
		return
	}
	list, err := s.payouts.ListForDriver(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

type recordLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleRecordLocation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "driver_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid driver id", err))
		return
	}
	var req recordLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}
	if err := s.recordLocation(r.Context(), id, req.Latitude, req.Longitude); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordLocation persists a GPS ping and updates the driver's last known
// position. Implements connreg.LocationHandler so the same path serves both
// the REST endpoint and the websocket location_update message.
func (s *Server) recordLocation(ctx context.Context, driverID int64, lat, lon float64) error {
	if err := s.gpsLogs.Create(ctx, &domain.GPSLog{DriverID: driverID, Latitude: lat, Longitude: lon}); err != nil {
		return err
	}
	return s.drivers.UpdateLastLocation(ctx, driverID, lat, lon)
}

// --- packages ------------------------------------------------------------

func (s *Server) setupPackageRoutes(r chi.Router) {
	r.Route("/packages", func(r chi.Router) {
		r.Post("/", s.handleCreatePackage)
		r.Get("/{package_id}", s.handleGetPackage)
	})
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var p domain.Package
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}
	id, err := s.packages.Create(r.Context(), &p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p.ID = id
	s.writeJSON(w, http.StatusCreated, &p)
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "package_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid package id", err))
		return
	}
	p, err := s.packages.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if p == nil {
		s.writeError(w, apperror.New(apperror.KindNotFound, fmt.Sprintf("package %d not found", id), nil))
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// --- assignments -----------------------------------------------------------

func (s *Server) setupAssignmentRoutes(r chi.Router) {
	r.Route("/assignments", func(r chi.Router) {
		r.Post("/run", s.handleRunAssignments)
		r.Post("/{assignment_id}/accept", s.handleAcceptAssignment)
		r.Post("/{assignment_id}/complete", s.handleCompleteAssignment)
		r.Post("/{assignment_id}/fail", s.handleFailAssignment)
	})
}

type runAssignmentsRequest struct {
	OperationalDate string `json:"operational_date"`
}

func (s *Server) handleRunAssignments(w http.ResponseWriter, r *http.Request) {
	var req runAssignmentsRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	date := req.OperationalDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	summary, err := s.pipeline.Run(r.Context(), date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAcceptAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "assignment_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid assignment id", err))
		return
	}
	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer tx.Rollback()

	if err := s.assignments.MarkAcceptedInTx(r.Context(), tx, id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type completeAssignmentRequest struct {
	ActualDifficulty float64 `json:"actual_difficulty"`
	DurationMinutes  float64 `json:"duration_minutes"`
	Successful       bool    `json:"successful"`
	Notes            string  `json:"notes"`
}

func (s *Server) handleCompleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "assignment_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid assignment id", err))
		return
	}
	var req completeAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}

	a, err := s.assignments.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if a == nil {
		s.writeError(w, apperror.New(apperror.KindNotFound, fmt.Sprintf("assignment %d not found", id), nil))
		return
	}

	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer tx.Rollback()

	if err := s.assignments.MarkCompletedInTx(r.Context(), tx, id, req.ActualDifficulty); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.deliveries.CreateInTx(r.Context(), tx, &domain.Delivery{
		AssignmentID: id, ActualDifficulty: req.ActualDifficulty,
		DurationMinutes: req.DurationMinutes, Successful: req.Successful, Notes: req.Notes,
	}); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.drivers.RecordDeliveryOutcome(r.Context(), tx, a.DriverID, req.Successful, req.DurationMinutes); err != nil {
		s.writeError(w, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (s *Server) handleFailAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "assignment_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid assignment id", err))
		return
	}
	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer tx.Rollback()

	if err := s.assignments.MarkFailedInTx(r.Context(), tx, id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "failed"})
}

// --- swaps -----------------------------------------------------------------

func (s *Server) setupSwapRoutes(r chi.Router) {
	r.Route("/swaps", func(r chi.Router) {
		r.Post("/", s.handleProposeSwap)
		r.Post("/{swap_id}/accept", s.handleAcceptSwap)
		r.Post("/{swap_id}/reject", s.handleRejectSwap)
		r.Post("/{swap_id}/cancel", s.handleCancelSwap)
	})
}

type proposeSwapRequest struct {
	ProposerID         int64  `json:"proposer_id"`
	OfferedPackageID   int64  `json:"offered_package_id"`
	RequestedPackageID int64  `json:"requested_package_id"`
	Reason             string `json:"reason"`
}

func (s *Server) handleProposeSwap(w http.ResponseWriter, r *http.Request) {
	var req proposeSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}
	sw, err := s.marketplace.Propose(r.Context(), req.ProposerID, req.OfferedPackageID, req.RequestedPackageID, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sw)
}

type swapCallerRequest struct {
	CallerID int64 `json:"caller_id"`
}

func (s *Server) handleAcceptSwap(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "swap_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid swap id", err))
		return
	}
	var req swapCallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}
	sw, err := s.marketplace.Accept(r.Context(), id, req.CallerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sw)
}

func (s *Server) handleRejectSwap(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "swap_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid swap id", err))
		return
	}
	var req swapCallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}
	if err := s.marketplace.Reject(r.Context(), id, req.CallerID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (s *Server) handleCancelSwap(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "swap_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid swap id", err))
		return
	}
	var req swapCallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}
	if err := s.marketplace.Cancel(r.Context(), id, req.CallerID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// --- insurance ---------------------------------------------------------

func (s *Server) setupInsuranceRoutes(r chi.Router) {
	r.Route("/insurance", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluateInsurance)
	})
}

type evaluateInsuranceRequest struct {
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
}

func (s *Server) handleEvaluateInsurance(w http.ResponseWriter, r *http.Request) {
	var req evaluateInsuranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Validationf("invalid request body", err))
		return
	}
	start, err := time.Parse("2006-01-02", req.WindowStart)
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid window_start", err))
		return
	}
	end, err := time.Parse("2006-01-02", req.WindowEnd)
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid window_end", err))
		return
	}

	payouts, err := s.insurance.Evaluate(r.Context(), start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.insurance.Persist(r.Context(), payouts); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payouts)
}

// --- forecast ------------------------------------------------------------

func (s *Server) setupForecastRoutes(r chi.Router) {
	r.Route("/forecast", func(r chi.Router) {
		r.Get("/volume", s.handleForecastVolume)
		r.Get("/earnings", s.handleForecastEarnings)
	})
}

func (s *Server) forecastDays(r *http.Request) int {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	return days
}

// volumeHistory loads the last forecast.WindowLength days of package volume,
// left-padded with zeros for days with no history yet.
func (s *Server) volumeHistory(ctx context.Context) ([]float64, error) {
	counts, err := s.packages.DailyVolumeHistory(ctx, forecast.WindowLength)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	history := make([]float64, forecast.WindowLength)
	for i := 0; i < forecast.WindowLength; i++ {
		day := now.AddDate(0, 0, -(forecast.WindowLength - i)).Format("2006-01-02")
		history[i] = float64(counts[day])
	}
	return history, nil
}

func (s *Server) handleForecastVolume(w http.ResponseWriter, r *http.Request) {
	history, err := s.volumeHistory(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	days := s.volume.Forecast(r.Context(), history, time.Now(), s.forecastDays(r), s.weatherCity)
	s.writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleForecastEarnings(w http.ResponseWriter, r *http.Request) {
	driverShare, err := strconv.ParseFloat(r.URL.Query().Get("driver_share"), 64)
	if err != nil || driverShare <= 0 {
		driverShare = 0.1
	}
	unitPay, err := strconv.ParseFloat(r.URL.Query().Get("unit_pay"), 64)
	if err != nil || unitPay <= 0 {
		unitPay = 1.0
	}

	history, err := s.volumeHistory(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	days, weeks := s.earnings.Forecast(r.Context(), history, time.Now(), s.forecastDays(r), s.weatherCity, driverShare, unitPay)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"days": days, "weeks": weeks})
}

// --- websocket -----------------------------------------------------------

// handleWebSocket upgrades a driver's connection and serves it through the
// connection registry until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	driverID, err := idParam(r, "driver_id")
	if err != nil {
		s.writeError(w, apperror.Validationf("invalid driver id", err))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn().Err(err).Int64("driver_id", driverID).Msg("websocket upgrade failed")
		return
	}

	s.connections.Connect(driverID, connreg.NewSocket(conn))
	connreg.Serve(r.Context(), conn, driverID, s.connections, s, s, s.log)
}

// RecordLocation implements connreg.LocationHandler.
func (s *Server) RecordLocation(ctx context.Context, driverID int64, lat, lon float64) error {
	return s.recordLocation(ctx, driverID, lat, lon)
}

// RecordDeliveryStatus implements connreg.DeliveryStatusHandler.
func (s *Server) RecordDeliveryStatus(ctx context.Context, driverID, packageID int64, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.packages.UpdateStatus(ctx, tx, packageID, domain.PackageStatus(status)); err != nil {
		return err
	}
	return tx.Commit()
}
