// Package swap implements the Swap Marketplace (C9): propose/accept/cancel
// of two-party assignment exchanges, compatibility scoring, and the
// per-driver daily cap and cooldown guards.
package swap

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/apperror"
	"github.com/fleetward/dispatch/internal/database"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/events"
	"github.com/fleetward/dispatch/pkg/geo"
)

// Marketplace mediates swap proposals between drivers.
type Marketplace struct {
	db          *database.DB
	assignments *repositories.AssignmentRepository
	packages    *repositories.PackageRepository
	drivers     *repositories.DriverRepository
	swaps       *repositories.SwapRepository
	events      *events.Manager
	log         zerolog.Logger

	maxPerDay          int
	cooldown           time.Duration
	notificationWindow time.Duration
}

// Config parameterizes a Marketplace.
type Config struct {
	MaxPerDay               int
	CooldownMinutes         int
	NotificationTimeoutMins int
}

// New builds a Marketplace.
func New(
	db *database.DB,
	assignments *repositories.AssignmentRepository,
	packages *repositories.PackageRepository,
	drivers *repositories.DriverRepository,
	swaps *repositories.SwapRepository,
	em *events.Manager,
	cfg Config,
	log zerolog.Logger,
) *Marketplace {
	return &Marketplace{
		db: db, assignments: assignments, packages: packages, drivers: drivers, swaps: swaps, events: em,
		maxPerDay:          cfg.MaxPerDay,
		cooldown:           time.Duration(cfg.CooldownMinutes) * time.Minute,
		notificationWindow: time.Duration(cfg.NotificationTimeoutMins) * time.Minute,
		log:                log.With().Str("component", "swap_marketplace").Logger(),
	}
}

// Propose creates a pending swap offering the proposer's assignment for the
// requested one.
func (m *Marketplace) Propose(ctx context.Context, proposerID, offeredPackageID, requestedPackageID int64, reason string) (*domain.Swap, error) {
	offeredAssignment, requestedAssignment, err := m.validateProposal(ctx, proposerID, offeredPackageID, requestedPackageID)
	if err != nil {
		return nil, err
	}

	if err := m.checkCaps(ctx, proposerID, offeredAssignment.ID, requestedAssignment.ID); err != nil {
		return nil, err
	}

	score, distanceSaved, err := m.compatibility(ctx, offeredAssignment, requestedAssignment)
	if err != nil {
		return nil, err
	}

	s := &domain.Swap{
		ProposerDriverID:      proposerID,
		AcceptorDriverID:      requestedAssignment.DriverID,
		OfferedAssignmentID:   offeredAssignment.ID,
		RequestedAssignmentID: requestedAssignment.ID,
		Status:                domain.SwapStatusPending,
		Reason:                reason,
		CompatibilityScore:    score,
		DistanceSavedKm:       distanceSaved,
	}
	id, err := m.swaps.Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create swap: %w", err)
	}
	s.ID = id

	m.events.Emit(events.SwapProposed, "swap", map[string]interface{}{
		"swap_id": id, "proposer_driver_id": proposerID, "acceptor_driver_id": s.AcceptorDriverID,
	})
	return s, nil
}

func (m *Marketplace) validateProposal(ctx context.Context, proposerID, offeredPackageID, requestedPackageID int64) (*domain.Assignment, *domain.Assignment, error) {
	offeredPkg, err := m.packages.GetByID(ctx, offeredPackageID)
	if err != nil {
		return nil, nil, fmt.Errorf("look up offered package: %w", err)
	}
	if offeredPkg == nil {
		return nil, nil, apperror.New(apperror.KindNotFound, "offered package not found", nil)
	}
	requestedPkg, err := m.packages.GetByID(ctx, requestedPackageID)
	if err != nil {
		return nil, nil, fmt.Errorf("look up requested package: %w", err)
	}
	if requestedPkg == nil {
		return nil, nil, apperror.New(apperror.KindNotFound, "requested package not found", nil)
	}

	offeredAssignment, err := m.currentAssignmentForPackage(ctx, offeredPackageID)
	if err != nil {
		return nil, nil, err
	}
	if offeredAssignment == nil || offeredAssignment.DriverID != proposerID {
		return nil, nil, apperror.New(apperror.KindValidation, "offered package's assignment does not belong to proposer", nil)
	}
	requestedAssignment, err := m.currentAssignmentForPackage(ctx, requestedPackageID)
	if err != nil {
		return nil, nil, err
	}
	if requestedAssignment == nil {
		return nil, nil, apperror.New(apperror.KindValidation, "requested package has no current assignment", nil)
	}
	if requestedAssignment.DriverID == proposerID {
		return nil, nil, apperror.New(apperror.KindValidation, "requested assignment already belongs to proposer", nil)
	}

	return offeredAssignment, requestedAssignment, nil
}

func (m *Marketplace) currentAssignmentForPackage(ctx context.Context, packageID int64) (*domain.Assignment, error) {
	today := time.Now().Format("2006-01-02")
	assignments, err := m.assignments.ListByDate(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list assignments for %s: %w", today, err)
	}
	for _, a := range assignments {
		if a.PackageID == packageID && !a.IsTerminal() {
			return a, nil
		}
	}
	return nil, nil
}

func (m *Marketplace) checkCaps(ctx context.Context, proposerID, offeredAssignmentID, requestedAssignmentID int64) error {
	today := time.Now().Format("2006-01-02")
	count, err := m.swaps.CountCompletedForDriverOnDate(ctx, proposerID, today)
	if err != nil {
		return fmt.Errorf("count completed swaps: %w", err)
	}
	if count >= m.maxPerDay {
		return apperror.New(apperror.KindValidation, "driver has reached the daily swap cap", nil)
	}

	for _, assignmentID := range []int64{offeredAssignmentID, requestedAssignmentID} {
		last, err := m.swaps.LastCompletedForAssignment(ctx, assignmentID)
		if err != nil {
			return fmt.Errorf("check swap cooldown: %w", err)
		}
		if last != nil && last.CompletedAt != nil && time.Since(*last.CompletedAt) < m.cooldown {
			return apperror.New(apperror.KindValidation, "assignment is still in its swap cooldown window", nil)
		}
	}
	return nil
}

// compatibility computes the 0..1 compatibility score per the swap matching
// formula: 0.4*distance_score + 0.3*difficulty_score + 0.3*benefit_flag.
func (m *Marketplace) compatibility(ctx context.Context, offered, requested *domain.Assignment) (score, distanceSavedKm float64, err error) {
	offeredPkg, err := m.packages.GetByID(ctx, offered.PackageID)
	if err != nil || offeredPkg == nil {
		return 0, 0, fmt.Errorf("look up offered package: %w", err)
	}
	requestedPkg, err := m.packages.GetByID(ctx, requested.PackageID)
	if err != nil || requestedPkg == nil {
		return 0, 0, fmt.Errorf("look up requested package: %w", err)
	}
	proposer, err := m.drivers.GetByID(ctx, offered.DriverID)
	if err != nil || proposer == nil {
		return 0, 0, fmt.Errorf("look up proposer driver: %w", err)
	}
	if acceptor, err := m.drivers.GetByID(ctx, requested.DriverID); err != nil || acceptor == nil {
		return 0, 0, fmt.Errorf("look up acceptor driver: %w", err)
	}

	currentDistance := geo.HaversineKm(proposer.LastLatitude, proposer.LastLongitude, offeredPkg.Latitude, offeredPkg.Longitude)
	swappedDistance := geo.HaversineKm(proposer.LastLatitude, proposer.LastLongitude, requestedPkg.Latitude, requestedPkg.Longitude)

	distanceImprovement := currentDistance - swappedDistance
	distanceScore := 0.0
	if currentDistance > 0 {
		distanceScore = clamp01(2 * (distanceImprovement / currentDistance))
	}

	deltaDifficulty := math.Abs(requested.PredictedDifficulty - offered.PredictedDifficulty)
	difficultyScore := math.Min(1, deltaDifficulty/50)

	benefitFlag := 0.0
	if distanceImprovement > 0 {
		benefitFlag = 1.0
	}

	score = 0.4*distanceScore + 0.3*difficultyScore + 0.3*benefitFlag
	return score, distanceImprovement, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Accept performs the atomic exchange transaction.
func (m *Marketplace) Accept(ctx context.Context, swapID, callerID int64) (*domain.Swap, error) {
	s, err := m.swaps.GetByID(ctx, swapID)
	if err != nil {
		return nil, fmt.Errorf("look up swap %d: %w", swapID, err)
	}
	if s == nil {
		return nil, apperror.New(apperror.KindNotFound, "swap not found", nil)
	}
	if s.Status != domain.SwapStatusPending {
		return nil, apperror.New(apperror.KindValidation, "swap is not pending", nil)
	}
	if s.AcceptorDriverID != callerID {
		return nil, apperror.New(apperror.KindAuthorization, "caller is not the swap's acceptor", nil)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin swap transaction: %w", err)
	}
	defer tx.Rollback()

	offered, err := m.assignments.GetByIDForUpdate(ctx, tx, s.OfferedAssignmentID)
	if err != nil {
		return nil, err
	}
	requested, err := m.assignments.GetByIDForUpdate(ctx, tx, s.RequestedAssignmentID)
	if err != nil {
		return nil, err
	}
	if offered == nil || requested == nil || offered.DriverID != s.ProposerDriverID || requested.DriverID != s.AcceptorDriverID {
		return nil, apperror.New(apperror.KindConcurrencyConflict, "assignments changed since the swap was proposed", nil)
	}

	if err := m.assignments.SwapDriversInTx(ctx, tx, offered.ID, requested.ID, requested.DriverID, offered.DriverID); err != nil {
		return nil, err
	}
	if err := m.swaps.UpdateStatusInTx(ctx, tx, s.ID, domain.SwapStatusAccepted); err != nil {
		return nil, err
	}
	if err := m.swaps.UpdateStatusInTx(ctx, tx, s.ID, domain.SwapStatusCompleted); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit swap transaction: %w", err)
	}

	m.events.Emit(events.SwapAccepted, "swap", map[string]interface{}{"swap_id": s.ID})
	m.events.Emit(events.SwapCompleted, "swap", map[string]interface{}{"swap_id": s.ID})

	s.Status = domain.SwapStatusCompleted
	return s, nil
}

// Reject transitions a pending swap to rejected. Only the acceptor may reject.
func (m *Marketplace) Reject(ctx context.Context, swapID, callerID int64) error {
	s, err := m.swaps.GetByID(ctx, swapID)
	if err != nil {
		return fmt.Errorf("look up swap %d: %w", swapID, err)
	}
	if s == nil {
		return apperror.New(apperror.KindNotFound, "swap not found", nil)
	}
	if s.Status != domain.SwapStatusPending {
		return apperror.New(apperror.KindValidation, "swap is not pending", nil)
	}
	if s.AcceptorDriverID != callerID {
		return apperror.New(apperror.KindAuthorization, "caller is not the swap's acceptor", nil)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := m.swaps.UpdateStatusInTx(ctx, tx, s.ID, domain.SwapStatusRejected); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	m.events.Emit(events.SwapRejected, "swap", map[string]interface{}{"swap_id": s.ID})
	return nil
}

// Cancel transitions a pending swap to cancelled. Only the proposer may cancel.
func (m *Marketplace) Cancel(ctx context.Context, swapID, callerID int64) error {
	s, err := m.swaps.GetByID(ctx, swapID)
	if err != nil {
		return fmt.Errorf("look up swap %d: %w", swapID, err)
	}
	if s == nil {
		return apperror.New(apperror.KindNotFound, "swap not found", nil)
	}
	if s.Status != domain.SwapStatusPending {
		return apperror.New(apperror.KindValidation, "swap is not pending", nil)
	}
	if s.ProposerDriverID != callerID {
		return apperror.New(apperror.KindAuthorization, "caller is not the swap's proposer", nil)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := m.swaps.UpdateStatusInTx(ctx, tx, s.ID, domain.SwapStatusCancelled); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	m.events.Emit(events.SwapCancelled, "swap", map[string]interface{}{"swap_id": s.ID})
	return nil
}

// Listing is one marketplace entry for a driver, with the read-only expiry
// flag surfaced but not acted on.
type Listing struct {
	Swap    *domain.Swap
	Expired bool
}

// compatibleThreshold matches a swap in the listing only when its score
// clears the accept-worthiness bar.
const compatibleThreshold = 0.5

// ListForDriver returns pending swaps where driverID is the acceptor,
// sorted by compatibility score descending, restricted to those above the
// acceptance threshold.
func (m *Marketplace) ListForDriver(ctx context.Context, driverID int64) ([]Listing, error) {
	open, err := m.swaps.ListOpenForDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list open swaps for driver %d: %w", driverID, err)
	}

	out := make([]Listing, 0, len(open))
	for _, s := range open {
		if s.AcceptorDriverID != driverID {
			continue
		}
		if s.CompatibilityScore <= compatibleThreshold {
			continue
		}
		out = append(out, Listing{
			Swap:    s,
			Expired: time.Since(s.ProposedAt) > m.notificationWindow,
		})
	}

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Swap.CompatibilityScore > out[i].Swap.CompatibilityScore {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}
