package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageStatus_IsTerminal(t *testing.T) {
	assert.True(t, PackageStatusDelivered.IsTerminal())
	assert.True(t, PackageStatusFailed.IsTerminal())
	assert.True(t, PackageStatusCancelled.IsTerminal())
	assert.False(t, PackageStatusPending.IsTerminal())
	assert.False(t, PackageStatusInTransit.IsTerminal())
}

func TestSwapStatus_IsTerminal(t *testing.T) {
	assert.True(t, SwapStatusCompleted.IsTerminal())
	assert.True(t, SwapStatusRejected.IsTerminal())
	assert.True(t, SwapStatusCancelled.IsTerminal())
	assert.False(t, SwapStatusPending.IsTerminal())
	assert.False(t, SwapStatusAccepted.IsTerminal())
}

func TestAssignment_IsTerminal(t *testing.T) {
	assert.True(t, Assignment{Completed: true}.IsTerminal())
	assert.True(t, Assignment{Failed: true}.IsTerminal())
	assert.False(t, Assignment{Accepted: true}.IsTerminal())
}

func TestDriver_SuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, Driver{}.SuccessRate())
	assert.Equal(t, 0.8, Driver{TotalDeliveries: 10, SuccessfulDeliveries: 8}.SuccessRate())
}

func TestDeliveryWindow_Hours(t *testing.T) {
	var w *DeliveryWindow
	assert.Equal(t, 24.0, w.Hours())

	w = &DeliveryWindow{StartHour: 9, EndHour: 17}
	assert.Equal(t, 8.0, w.Hours())

	w = &DeliveryWindow{StartHour: 17, EndHour: 9}
	assert.Equal(t, 24.0, w.Hours())
}
