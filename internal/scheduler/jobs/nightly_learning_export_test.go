package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/domain"
)

func TestNightlyLearningExport_ExportsYesterdaysCompletedAssignments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log := zerolog.Nop()

	driverRepo := repositories.NewDriverRepository(db.Conn(), log)
	pkgRepo := repositories.NewPackageRepository(db.Conn(), log)
	assignRepo := repositories.NewAssignmentRepository(db.Conn(), log)
	exportRepo := repositories.NewLearningExportRepository(db.Conn(), log)

	driverID, err := driverRepo.Create(ctx, &domain.Driver{Email: "d@example.com", Phone: "1", Name: "D", Active: true})
	require.NoError(t, err)
	pkgID, err := pkgRepo.Create(ctx, &domain.Package{TrackingNumber: "T1", WeightKg: 1})
	require.NoError(t, err)

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	assignID, err := assignRepo.CreateInTx(ctx, tx, &domain.Assignment{
		DriverID: driverID, PackageID: pkgID, OperationalDate: yesterday, PredictedDifficulty: 42,
	})
	require.NoError(t, err)
	require.NoError(t, assignRepo.MarkCompletedInTx(ctx, tx, assignID, 55))
	require.NoError(t, tx.Commit())

	job := NewNightlyLearningExport(exportRepo)
	require.NoError(t, job.Run())

	var count int
	require.NoError(t, db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM learning_exports WHERE assignment_id = ?`, assignID).Scan(&count))
	require.Equal(t, 1, count)
}

func TestNightlyLearningExport_Name(t *testing.T) {
	job := NewNightlyLearningExport(nil)
	require.Equal(t, "nightly-learning-export", job.Name())
}
