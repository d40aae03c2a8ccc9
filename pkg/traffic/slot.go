package traffic

import (
	"fmt"
	"time"
)

// SlotState is the lifecycle state of a worker slot.
type SlotState string

const (
	SlotIdle      SlotState = "IDLE"
	SlotChecking  SlotState = "CHECKING"
	SlotSafe      SlotState = "SAFE"
	SlotViolation SlotState = "VIOLATION"
)

// CanTransition reports whether a slot may move from s to next.
//
// The normal cycle is IDLE -> CHECKING -> SAFE|VIOLATION -> IDLE. CHECKING -> IDLE
// is allowed only to release a slot whose evaluation failed or was terminated.
func (s SlotState) CanTransition(next SlotState) bool {
	switch s {
	case SlotIdle:
		return next == SlotChecking
	case SlotChecking:
		return next == SlotSafe || next == SlotViolation || next == SlotIdle
	case SlotSafe, SlotViolation:
		return next == SlotIdle
	}
	return false
}

// SlotVerdict is the last verdict a slot produced, kept for display.
type SlotVerdict struct {
	Vehicle Summary       `json:"vehicle"`
	Kind    ViolationKind `json:"kind"`
	At      time.Time     `json:"at"`
}

// WorkerSlot is the published state of one worker.
// Occupant is non-nil exactly when State is not IDLE.
type WorkerSlot struct {
	WorkerID int          `json:"worker_id"`
	Occupant *Vehicle     `json:"occupant,omitempty"`
	State    SlotState    `json:"state"`
	Since    time.Time    `json:"since"`
	Last     *SlotVerdict `json:"last,omitempty"`
}

// Check verifies the occupant/state pairing.
func (w WorkerSlot) Check() error {
	if w.State == SlotIdle && w.Occupant != nil {
		return fmt.Errorf("worker %d: idle slot has occupant %s", w.WorkerID, w.Occupant.ID)
	}
	if w.State != SlotIdle && w.Occupant == nil {
		return fmt.Errorf("worker %d: %s slot has no occupant", w.WorkerID, w.State)
	}
	return nil
}
