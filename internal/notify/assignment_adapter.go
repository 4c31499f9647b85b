package notify

import (
	"context"
	"fmt"

	"github.com/fleetward/dispatch/internal/database/repositories"
)

// AssignmentNotifier pushes a new-assignment summary to a driver's device
// after a daily assignment run. Best-effort: failures are logged by the
// caller and never fail the assignment pipeline.
type AssignmentNotifier struct {
	dispatcher *Dispatcher
	drivers    *repositories.DriverRepository
}

// NewAssignmentNotifier builds an AssignmentNotifier.
func NewAssignmentNotifier(dispatcher *Dispatcher, drivers *repositories.DriverRepository) *AssignmentNotifier {
	return &AssignmentNotifier{dispatcher: dispatcher, drivers: drivers}
}

// NotifyNewAssignments pushes a package-count summary to a driver, if they
// have a push token on file.
func (a *AssignmentNotifier) NotifyNewAssignments(ctx context.Context, driverID int64, packageCount int) error {
	d, err := a.drivers.GetByID(ctx, driverID)
	if err != nil {
		return fmt.Errorf("look up driver %d: %w", driverID, err)
	}
	if d == nil || d.PushToken == "" {
		return nil
	}

	body := fmt.Sprintf("%d packages assigned for today", packageCount)
	return a.dispatcher.Send(ctx, d.PushToken, "New route ready", body, map[string]interface{}{
		"package_count": packageCount,
	})
}
