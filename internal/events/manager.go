// Package events provides a lightweight, log-backed event bus: components
// emit structured events and the manager records them via zerolog. There is
// no subscriber registry: events are only logged, and nothing forwards them
// to the WebSocket Connection Registry.
package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// EventType names a domain event.
type EventType string

const (
	AssignmentRunCompleted EventType = "ASSIGNMENT_RUN_COMPLETED"
	AssignmentAccepted     EventType = "ASSIGNMENT_ACCEPTED"
	AssignmentCompleted    EventType = "ASSIGNMENT_COMPLETED"
	AssignmentFailed       EventType = "ASSIGNMENT_FAILED"

	HealthRiskElevated   EventType = "HEALTH_RISK_ELEVATED"
	BreakRecommended     EventType = "BREAK_RECOMMENDED"

	SwapProposed  EventType = "SWAP_PROPOSED"
	SwapAccepted  EventType = "SWAP_ACCEPTED"
	SwapRejected  EventType = "SWAP_REJECTED"
	SwapCancelled EventType = "SWAP_CANCELLED"
	SwapCompleted EventType = "SWAP_COMPLETED"

	InsurancePayoutComputed EventType = "INSURANCE_PAYOUT_COMPUTED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event is a structured, timestamped occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging.
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log.With().Str("service", "events").Logger()}
}

// Emit records an event.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("event emitted")
}

// EmitError records an error event.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}
