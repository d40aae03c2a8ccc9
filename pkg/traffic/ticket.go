package traffic

import (
	"time"

	"github.com/shopspring/decimal"
)

// ViolationKind classifies the outcome of a speed check.
type ViolationKind string

const (
	// KindSafe means the speed was within [min limit, limit].
	KindSafe ViolationKind = "SAFE"

	// KindTooSlow means the speed was strictly below the minimum limit.
	KindTooSlow ViolationKind = "TOO_SLOW"

	// KindSpeeding means the speed was strictly above the applicable limit.
	KindSpeeding ViolationKind = "SPEEDING"
)

// IsViolation reports whether the kind results in a ticket.
func (k ViolationKind) IsViolation() bool {
	return k == KindTooSlow || k == KindSpeeding
}

// TicketStatus is the processing state of an issued ticket.
type TicketStatus string

const (
	// TicketPending is the status of every freshly issued ticket.
	TicketPending TicketStatus = "PENDING"
)

// Ticket is the fine issued for a single violation.
type Ticket struct {
	ID           string        `json:"ticket_id"`
	VehicleID    string        `json:"vehicle_id"`
	LicensePlate string        `json:"license_plate"`
	VehicleType  VehicleType   `json:"vehicle_type"`
	Kind         ViolationKind `json:"violation_type"`
	Band         string        `json:"band"`

	Speed          float64 `json:"speed"`
	SpeedLimitUsed float64 `json:"speed_limit"`

	// Money
	BaseFine          decimal.Decimal `json:"base_fine"`
	PenaltyMultiplier decimal.Decimal `json:"penalty_multiplier"`
	TotalFine         decimal.Decimal `json:"total_fine"`
	Clamped           bool            `json:"clamped,omitempty"` // TotalFine was capped at the maximum fine

	STNKActive bool `json:"stnk_active"`
	SIMActive  bool `json:"sim_active"`

	Location string       `json:"location"`
	IssuedAt time.Time    `json:"issued_at"`
	Status   TicketStatus `json:"status"`
}

// CheckResult is the outcome of evaluating one vehicle.
type CheckResult struct {
	Vehicle     Vehicle       `json:"vehicle"`
	IsViolation bool          `json:"is_violation"`
	Kind        ViolationKind `json:"kind"`
	Ticket      *Ticket       `json:"ticket,omitempty"` // set iff IsViolation
	Worker      int           `json:"worker"`
	CompletedAt time.Time     `json:"completed_at"`
}
