package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/traffic"
)

func ticket(plate string, kind traffic.ViolationKind, band string, speed float64, fine string, stnk, sim bool) *traffic.Ticket {
	return &traffic.Ticket{
		ID:           plate + band,
		LicensePlate: plate,
		VehicleType:  traffic.VehicleCar,
		Kind:         kind,
		Band:         band,
		Speed:        speed,
		TotalFine:    decimal.RequireFromString(fine),
		STNKActive:   stnk,
		SIMActive:    sim,
		IssuedAt:     time.Date(2025, 11, 20, 8, 0, 0, 0, time.UTC),
	}
}

func TestSummarize(t *testing.T) {
	list := []*traffic.Ticket{
		ticket("B 1 AA", traffic.KindSpeeding, "SPEED_HIGH_LEVEL_1", 105, "30", true, true),
		ticket("B 1 AA", traffic.KindSpeeding, "SPEED_HIGH_LEVEL_3", 125, "100", false, false),
		ticket("D 2 BB", traffic.KindTooSlow, "SPEED_LOW_MILD", 55, "24", true, false),
		ticket("F 3 CC", traffic.KindSpeeding, "SPEED_HIGH_LEVEL_2", 115, "60", false, true),
	}
	list[1].Clamped = true

	s := summarize(list)

	if s.Tickets != 4 {
		t.Errorf("Tickets = %d, want 4", s.Tickets)
	}
	if diff := cmp.Diff(map[string]int{"SPEEDING": 3, "TOO_SLOW": 1}, s.ByKind); diff != "" {
		t.Errorf("ByKind mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(expiredCounts{STNK: 2, SIM: 2, Both: 1}, s.Expired); diff != "" {
		t.Errorf("Expired mismatch (-want +got):\n%s", diff)
	}
	if s.Clamped != 1 {
		t.Errorf("Clamped = %d, want 1", s.Clamped)
	}
	if !s.Fines.Total.Equal(decimal.NewFromInt(214)) {
		t.Errorf("Fines.Total = %s, want 214", s.Fines.Total)
	}
	if !s.Fines.Mean.Equal(decimal.RequireFromString("53.5")) {
		t.Errorf("Fines.Mean = %s, want 53.5", s.Fines.Mean)
	}
	if !s.Fines.Max.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Fines.Max = %s, want 100", s.Fines.Max)
	}

	// Empirical quantiles over {55, 105, 115, 125}.
	if s.Speed.P50 != 105 || s.Speed.P95 != 125 || s.Speed.Max != 125 {
		t.Errorf("Speed = %+v, want p50 105, p95 125, max 125", s.Speed)
	}
	if s.Speed.Mean != 100 {
		t.Errorf("Speed.Mean = %v, want 100", s.Speed.Mean)
	}

	if len(s.Offenders) != 1 || s.Offenders[0].Plate != "B 1 AA" || s.Offenders[0].Tickets != 2 {
		t.Fatalf("Offenders = %+v, want one entry for B 1 AA with 2 tickets", s.Offenders)
	}
	if !s.Offenders[0].Fines.Equal(decimal.NewFromInt(130)) {
		t.Errorf("offender fines = %s, want 130", s.Offenders[0].Fines)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := summarize(nil)
	if s.Tickets != 0 || len(s.Offenders) != 0 {
		t.Errorf("summarize(nil) = %+v, want empty", s)
	}
	if !s.Fines.Total.IsZero() {
		t.Errorf("Fines.Total = %s, want 0", s.Fines.Total)
	}
	// Rows must render without panicking on an empty summary.
	if rows := s.Rows(); len(rows) == 0 {
		t.Error("Rows() returned nothing")
	}
}
