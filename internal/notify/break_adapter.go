package notify

import (
	"context"
	"fmt"

	"github.com/fleetward/dispatch/internal/database/repositories"
	"github.com/fleetward/dispatch/internal/domain"
)

// BreakNotifier adapts Dispatcher to the health monitor's Notifier
// interface, resolving a driver's push token before sending.
type BreakNotifier struct {
	dispatcher *Dispatcher
	drivers    *repositories.DriverRepository
}

// NewBreakNotifier builds a BreakNotifier.
func NewBreakNotifier(dispatcher *Dispatcher, drivers *repositories.DriverRepository) *BreakNotifier {
	return &BreakNotifier{dispatcher: dispatcher, drivers: drivers}
}

// NotifyBreak pushes a break recommendation to a driver's device, if they
// have a push token on file.
func (b *BreakNotifier) NotifyBreak(ctx context.Context, driverID int64, rec domain.RecommendedBreak) error {
	d, err := b.drivers.GetByID(ctx, driverID)
	if err != nil {
		return fmt.Errorf("look up driver %d: %w", driverID, err)
	}
	if d == nil || d.PushToken == "" {
		return nil
	}

	body := fmt.Sprintf("%d-minute break recommended: %s", rec.DurationMinutes, rec.Reason)
	return b.dispatcher.Send(ctx, d.PushToken, "Time for a break", body, map[string]interface{}{
		"urgency": rec.Urgency,
		"timing":  rec.Timing,
	})
}
