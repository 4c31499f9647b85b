// Package domain holds the entity types shared across the dispatch core.
// These are plain data records; the persistent store exposes explicit
// query methods that return values of these types, never lazily-loaded
// proxies.
package domain

import "time"

// PackageStatus is the lifecycle state of a Package.
type PackageStatus string

const (
	PackageStatusPending    PackageStatus = "pending"
	PackageStatusAssigned   PackageStatus = "assigned"
	PackageStatusInTransit  PackageStatus = "in_transit"
	PackageStatusDelivered  PackageStatus = "delivered"
	PackageStatusFailed     PackageStatus = "failed"
	PackageStatusCancelled  PackageStatus = "cancelled"
)

// IsTerminal reports whether the status accepts no further transitions.
func (s PackageStatus) IsTerminal() bool {
	switch s {
	case PackageStatusDelivered, PackageStatusFailed, PackageStatusCancelled:
		return true
	default:
		return false
	}
}

// SwapStatus is the lifecycle state of a Swap.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusAccepted  SwapStatus = "accepted"
	SwapStatusRejected  SwapStatus = "rejected"
	SwapStatusCancelled SwapStatus = "cancelled"
	SwapStatusCompleted SwapStatus = "completed"
)

// IsTerminal reports whether the swap accepts no further transitions.
func (s SwapStatus) IsTerminal() bool {
	switch s {
	case SwapStatusRejected, SwapStatusCancelled, SwapStatusCompleted:
		return true
	default:
		return false
	}
}

// Severity is a discrete label derived from a health risk score.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Vehicle describes a driver's delivery vehicle.
type Vehicle struct {
	Type        string  `json:"type"`
	CapacityKg  float64 `json:"capacity_kg"`
}

// Driver is a fleet driver. Drivers are never hard-deleted, only deactivated.
type Driver struct {
	ID                     int64     `json:"id"`
	Email                  string    `json:"email"`
	Phone                  string    `json:"phone"`
	PasswordHash           string    `json:"-"`
	Name                   string    `json:"name"`
	Vehicle                Vehicle   `json:"vehicle"`
	Active                 bool      `json:"active"`
	ExperienceDays         int       `json:"experience_days"`
	TotalDeliveries        int       `json:"total_deliveries"`
	SuccessfulDeliveries   int       `json:"successful_deliveries"`
	FailedDeliveries       int       `json:"failed_deliveries"`
	AvgDeliveryTimeMinutes float64   `json:"avg_delivery_time_minutes"`
	LastLatitude           float64   `json:"last_latitude"`
	LastLongitude          float64   `json:"last_longitude"`
	PushToken              string    `json:"push_token,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// SuccessRate is the authoritative derived success rate: successful / total,
// computed at read time so there is exactly one source of truth (§3).
func (d Driver) SuccessRate() float64 {
	if d.TotalDeliveries <= 0 {
		return 0
	}
	return float64(d.SuccessfulDeliveries) / float64(d.TotalDeliveries)
}

// DeliveryWindow is an optional delivery time constraint on a Package.
type DeliveryWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Hours returns the width of the window, defaulting to 24h when unset.
func (w *DeliveryWindow) Hours() float64 {
	if w == nil {
		return 24
	}
	h := float64(w.EndHour - w.StartHour)
	if h <= 0 {
		return 24
	}
	return h
}

// Package is a deliverable item.
type Package struct {
	ID                int64           `json:"id"`
	TrackingNumber    string          `json:"tracking_number"`
	Status            PackageStatus   `json:"status"`
	WeightKg          float64         `json:"weight_kg"`
	Fragile           bool            `json:"fragile"`
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	Address           string          `json:"address"`
	Floor             int             `json:"floor"`
	Window            *DeliveryWindow `json:"window,omitempty"`
	Priority          int             `json:"priority"`
	DistanceFromHubKm float64         `json:"distance_from_hub_km"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Assignment binds one package to one driver on one operational date.
type Assignment struct {
	ID                 int64      `json:"id"`
	DriverID           int64      `json:"driver_id"`
	PackageID          int64      `json:"package_id"`
	OperationalDate    string     `json:"operational_date"` // YYYY-MM-DD
	PredictedDifficulty float64   `json:"predicted_difficulty"`
	ActualDifficulty   *float64   `json:"actual_difficulty,omitempty"`
	Accepted           bool       `json:"accepted"`
	Completed          bool       `json:"completed"`
	Failed             bool       `json:"failed"`
	Explanation        string     `json:"explanation,omitempty"`
	AssignedAt         time.Time  `json:"assigned_at"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the assignment is immutable.
func (a Assignment) IsTerminal() bool {
	return a.Completed || a.Failed
}

// Delivery records the actual outcome of a completed Assignment.
type Delivery struct {
	ID                int64     `json:"id"`
	AssignmentID      int64     `json:"assignment_id"`
	ActualDifficulty  float64   `json:"actual_difficulty"`
	DurationMinutes   float64   `json:"duration_minutes"`
	Successful        bool      `json:"successful"`
	Notes             string    `json:"notes,omitempty"`
	CompletedAt       time.Time `json:"completed_at"`
}

// Vitals are a driver's point-in-time physiological readings.
type Vitals struct {
	HeartRate           float64 `json:"heart_rate"`
	FatigueLevel        float64 `json:"fatigue_level"` // 1-10
	HoursWorked         float64 `json:"hours_worked"`
	HoursSinceLastBreak float64 `json:"hours_since_last_break"`
}

// Workload is a driver's point-in-time delivery progress.
type Workload struct {
	Delivered   int     `json:"delivered"`
	Remaining   int     `json:"remaining"`
	DistanceKm  float64 `json:"distance_km"`
	AvgDifficulty float64 `json:"avg_difficulty"`
}

// RecommendedBreak is an advisory break the health advisor attaches to a HealthEvent.
type RecommendedBreak struct {
	DurationMinutes int    `json:"duration_minutes"`
	Urgency         string `json:"urgency"`
	Reason          string `json:"reason"`
	Timing          string `json:"timing"`
}

// HealthEvent is an append-only point-in-time health reading for a driver.
// Only the latest event per driver is authoritative for monitoring.
type HealthEvent struct {
	ID                int64             `json:"id"`
	DriverID          int64             `json:"driver_id"`
	RecordedAt        time.Time         `json:"recorded_at"`
	Vitals            Vitals            `json:"vitals"`
	Workload          Workload          `json:"workload"`
	PredictedRisk     float64           `json:"predicted_risk_score"`
	Severity          Severity          `json:"severity"`
	RecommendedBreak  *RecommendedBreak `json:"recommended_break,omitempty"`
	AlertDispatchedAt *time.Time        `json:"alert_dispatched_at,omitempty"`
}

// Swap is a proposed two-party exchange of two Assignments for the same
// operational date.
type Swap struct {
	ID                    int64      `json:"id"`
	ProposerDriverID      int64      `json:"proposer_driver_id"`
	AcceptorDriverID      int64      `json:"acceptor_driver_id"`
	OfferedAssignmentID   int64      `json:"offered_assignment_id"`
	RequestedAssignmentID int64      `json:"requested_assignment_id"`
	Status                SwapStatus `json:"status"`
	Reason                string     `json:"reason,omitempty"`
	CompatibilityScore    float64    `json:"compatibility_score"`
	DistanceSavedKm       float64    `json:"distance_saved_km"`
	ProposedAt            time.Time  `json:"proposed_at"`
	RespondedAt           *time.Time `json:"responded_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// InsurancePayout is a computed statistical payout for a driver's claim window.
type InsurancePayout struct {
	ID               int64     `json:"id"`
	DriverID         int64     `json:"driver_id"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	DriverRate       float64   `json:"driver_rate"`
	PopulationMean   float64   `json:"population_mean"`
	PopulationStdDev float64   `json:"population_std"`
	ZScore           float64   `json:"z_score"`
	ExcessFailures   float64   `json:"excess_failures"`
	PayoutAmount     float64   `json:"payout_amount"`
	Eligible         bool      `json:"eligible"`
	Reason           string    `json:"reason"`
	Approved         bool      `json:"approved"`
	Paid             bool      `json:"paid"`
	ComputedAt       time.Time `json:"computed_at"`
}

// GPSLog is an append-only location ping, retention-bound at 30 days.
type GPSLog struct {
	ID         int64     `json:"id"`
	DriverID   int64     `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}
