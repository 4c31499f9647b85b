// Package assignment implements the Assignment Pipeline (C4): the daily job
// that scores every pending package's difficulty, hands the cost matrix to
// the Fairness Optimizer, falls back to the greedy assigner when the
// optimizer can't converge, and persists the result atomically.
package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/apperror"
	"github.com/fleetward/dispatch/internal/database"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/difficulty"
	"github.com/fleetward/dispatch/internal/domain"
	"github.com/fleetward/dispatch/internal/events"
	"github.com/fleetward/dispatch/internal/fairness"
)

// Notifier dispatches a best-effort new-assignment push after a run.
// Implemented by internal/notify against the push dispatch service.
type Notifier interface {
	NotifyNewAssignments(ctx context.Context, driverID int64, packageCount int) error
}

// Pipeline runs one operational date's assignment run.
type Pipeline struct {
	db          *database.DB
	drivers     *repositories.DriverRepository
	packages    *repositories.PackageRepository
	assignments *repositories.AssignmentRepository
	scorer      *difficulty.Scorer
	optimizer   *fairness.Optimizer
	events      *events.Manager
	notifier    Notifier
	log         zerolog.Logger

	kMin, kMax     int
	equityBandFrac float64
	solveBudget    time.Duration
}

// Config parameterizes a Pipeline.
type Config struct {
	KMin           int
	KMax           int
	EquityBandFrac float64
	SolveBudget    time.Duration
}

// New builds an assignment Pipeline.
func New(
	db *database.DB,
	drivers *repositories.DriverRepository,
	packages *repositories.PackageRepository,
	assignments *repositories.AssignmentRepository,
	scorer *difficulty.Scorer,
	optimizer *fairness.Optimizer,
	em *events.Manager,
	notifier Notifier,
	cfg Config,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		db: db, drivers: drivers, packages: packages, assignments: assignments,
		scorer: scorer, optimizer: optimizer, events: em, notifier: notifier,
		kMin: cfg.KMin, kMax: cfg.KMax, equityBandFrac: cfg.EquityBandFrac, solveBudget: cfg.SolveBudget,
		log: log.With().Str("component", "assignment_pipeline").Logger(),
	}
}

// Summary reports the outcome of one Run.
type Summary struct {
	OperationalDate string
	PackagesCovered int
	DriversUsed     int
	Status          fairness.Status
	Gini            float64
}

// Run executes the full pipeline for one operational date (YYYY-MM-DD).
func (p *Pipeline) Run(ctx context.Context, operationalDate string) (Summary, error) {
	drivers, err := p.drivers.ListActive(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list active drivers: %w", err)
	}
	pkgs, err := p.packages.ListPendingForDate(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list pending packages: %w", err)
	}
	if len(pkgs) == 0 || len(drivers) == 0 {
		return Summary{OperationalDate: operationalDate, Status: fairness.StatusOptimal}, nil
	}
	if len(pkgs) > len(drivers)*p.kMax {
		return Summary{}, apperror.New(apperror.KindInfeasible,
			fmt.Sprintf("%d pending packages exceed %d drivers at k_max %d", len(pkgs), len(drivers), p.kMax), nil)
	}

	problem, err := p.buildProblem(ctx, drivers, pkgs, operationalDate)
	if err != nil {
		return Summary{}, err
	}

	result, err := p.optimizer.Solve(ctx, problem)
	if err != nil {
		return Summary{}, fmt.Errorf("solve fairness problem: %w", err)
	}
	if result.Status != fairness.StatusOptimal {
		p.log.Warn().Str("status", string(result.Status)).Msg("optimizer did not converge, using greedy fallback")
		result = fairness.GreedyFallback(problem)
	}

	if err := p.persist(ctx, problem, result, operationalDate); err != nil {
		return Summary{}, err
	}

	p.notifyDrivers(ctx, result)

	p.events.Emit(events.AssignmentRunCompleted, "assignment", map[string]interface{}{
		"operational_date": operationalDate,
		"packages":         len(pkgs),
		"drivers":          len(drivers),
		"status":           string(result.Status),
		"gini":             result.Gini,
	})

	return Summary{
		OperationalDate: operationalDate,
		PackagesCovered: len(pkgs),
		DriversUsed:     len(drivers),
		Status:          result.Status,
		Gini:            result.Gini,
	}, nil
}

func (p *Pipeline) buildProblem(ctx context.Context, drivers []*domain.Driver, pkgs []*domain.Package, operationalDate string) (fairness.Problem, error) {
	n, m := len(pkgs), len(drivers)
	diff := make([][]float64, n)

	for i, pkg := range pkgs {
		diff[i] = make([]float64, m)
		for j, drv := range drivers {
			features := difficulty.FeatureVector(pkg, drv)
			diff[i][j] = p.scorer.Score(ctx, features)
		}
	}

	pkgIDs := make([]int64, n)
	for i, pkg := range pkgs {
		pkgIDs[i] = pkg.ID
	}
	drvIDs := make([]int64, m)
	for j, drv := range drivers {
		drvIDs[j] = drv.ID
	}

	return fairness.Problem{
		PackageIDs:     pkgIDs,
		DriverIDs:      drvIDs,
		Difficulty:     diff,
		KMin:           p.kMin,
		KMax:           p.kMax,
		EquityBandFrac: p.equityBandFrac,
		SolveBudget:    p.solveBudget,
	}, nil
}

// notifyDrivers dispatches a best-effort new-assignment push per driver.
// Failures are logged, never surfaced: step 5 of the assignment pipeline is
// explicitly best-effort.
func (p *Pipeline) notifyDrivers(ctx context.Context, result fairness.Result) {
	if p.notifier == nil {
		return
	}
	for driverID, pkgIDs := range result.Assignments {
		if err := p.notifier.NotifyNewAssignments(ctx, driverID, len(pkgIDs)); err != nil {
			p.log.Warn().Err(err).Int64("driver_id", driverID).Msg("new-assignment push failed")
		}
	}
}

func (p *Pipeline) persist(ctx context.Context, problem fairness.Problem, result fairness.Result, operationalDate string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment transaction: %w", err)
	}
	defer tx.Rollback()

	difficultyOf := map[int64]map[int64]float64{}
	for i, pkgID := range problem.PackageIDs {
		difficultyOf[pkgID] = map[int64]float64{}
		for j, drvID := range problem.DriverIDs {
			difficultyOf[pkgID][drvID] = problem.Difficulty[i][j]
		}
	}

	for driverID, pkgIDs := range result.Assignments {
		for _, pkgID := range pkgIDs {
			a := &domain.Assignment{
				DriverID:            driverID,
				PackageID:           pkgID,
				OperationalDate:     operationalDate,
				PredictedDifficulty: difficultyOf[pkgID][driverID],
			}
			if _, err := p.assignments.CreateInTx(ctx, tx, a); err != nil {
				return err
			}
			if err := p.packages.UpdateStatus(ctx, tx, pkgID, domain.PackageStatusAssigned); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment transaction: %w", err)
	}
	return nil
}
