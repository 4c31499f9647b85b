package insurance

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/database"
	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/domain"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEvaluate_OutlierDriverIsEligible(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log := zerolog.Nop()

	driverRepo := repositories.NewDriverRepository(db.Conn(), log)
	payoutRepo := repositories.NewInsurancePayoutRepository(db.Conn(), log)

	for i := 0; i < 9; i++ {
		_, err := driverRepo.Create(ctx, &domain.Driver{Email: "normal" + string(rune('a'+i)) + "@example.com", Phone: "1", Name: "N", Active: true})
		require.NoError(t, err)
	}
	outlierID, err := driverRepo.Create(ctx, &domain.Driver{Email: "outlier@example.com", Phone: "2", Name: "O", Active: true})
	require.NoError(t, err)

	drivers, err := driverRepo.ListActive(ctx)
	require.NoError(t, err)
	for _, d := range drivers {
		failed := 1
		if d.ID == outlierID {
			failed = 15
		}
		_, err := db.Conn().ExecContext(ctx, `UPDATE drivers SET total_deliveries = 50, failed_deliveries = ? WHERE id = ?`, failed, d.ID)
		require.NoError(t, err)
	}

	calc := New(driverRepo, payoutRepo, 2.0, 100, log)
	payouts, err := calc.Evaluate(ctx, time.Now().AddDate(0, 0, -30), time.Now())
	require.NoError(t, err)
	require.Len(t, payouts, 10)

	var outlierPayout *domain.InsurancePayout
	for _, p := range payouts {
		if p.DriverID == outlierID {
			outlierPayout = p
		}
	}
	require.NotNil(t, outlierPayout)
	assert.True(t, outlierPayout.Eligible)
	assert.Greater(t, outlierPayout.PayoutAmount, 0.0)
}

func TestEvaluate_IdenticalRatesMeansNoEligibility(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log := zerolog.Nop()

	driverRepo := repositories.NewDriverRepository(db.Conn(), log)
	payoutRepo := repositories.NewInsurancePayoutRepository(db.Conn(), log)

	for i := 0; i < 5; i++ {
		id, err := driverRepo.Create(ctx, &domain.Driver{Email: "d" + string(rune('a'+i)) + "@example.com", Phone: "1", Name: "D", Active: true})
		require.NoError(t, err)
		_, err = db.Conn().ExecContext(ctx, `UPDATE drivers SET total_deliveries = 50, failed_deliveries = 5 WHERE id = ?`, id)
		require.NoError(t, err)
	}

	calc := New(driverRepo, payoutRepo, 2.0, 100, log)
	payouts, err := calc.Evaluate(ctx, time.Now().AddDate(0, 0, -30), time.Now())
	require.NoError(t, err)
	for _, p := range payouts {
		assert.False(t, p.Eligible)
	}
}
