package rules

import (
	"errors"

	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/traffic"
)

// ErrNoRules is returned when Evaluate is called without a rule set.
var ErrNoRules = errors.New("rules: nil rule config")

// Fine is the breakdown of a computed fine.
type Fine struct {
	Band       string
	Base       decimal.Decimal
	Multiplier decimal.Decimal
	Total      decimal.Decimal
	Clamped    bool
}

// Classify returns the violation kind and the limit that was applied.
func (r *RuleConfig) Classify(speed float64, vt traffic.VehicleType) (traffic.ViolationKind, float64) {
	if speed < r.minSpeed {
		return traffic.KindTooSlow, r.minSpeed
	}
	limit := r.LimitFor(vt)
	if speed > limit {
		return traffic.KindSpeeding, limit
	}
	return traffic.KindSafe, limit
}

// Band returns the fine band for a violating speed.
func (r *RuleConfig) Band(kind traffic.ViolationKind, speed float64) (Band, bool) {
	var bands []Band
	switch kind {
	case traffic.KindTooSlow:
		bands = r.lowBands
	case traffic.KindSpeeding:
		bands = r.highBands
	default:
		return Band{}, false
	}

	match := bands[0]
	for _, b := range bands {
		if b.Min > speed {
			break
		}
		match = b
	}
	return match, true
}

// Multiplier returns the document penalty multiplier.
func (r *RuleConfig) Multiplier(stnkActive, simActive bool) decimal.Decimal {
	m := decimal.NewFromInt(1)
	if !stnkActive {
		m = m.Add(r.stnkPenalty)
	}
	if !simActive {
		m = m.Add(r.simPenalty)
	}
	return m
}

// ComputeFine computes the fine for a violating vehicle.
func (r *RuleConfig) ComputeFine(kind traffic.ViolationKind, speed float64, stnkActive, simActive bool) (Fine, bool) {
	band, ok := r.Band(kind, speed)
	if !ok {
		return Fine{}, false
	}

	mult := r.Multiplier(stnkActive, simActive)
	total := band.Fine.Mul(mult)
	clamped := false
	if total.GreaterThan(r.maxFine) {
		total = r.maxFine
		clamped = true
	}

	return Fine{
		Band:       band.Name,
		Base:       band.Fine,
		Multiplier: mult,
		Total:      total,
		Clamped:    clamped,
	}, true
}

// Evaluate checks one vehicle against the rules.
//
// Evaluate is pure: it does not sleep, log or generate identifiers. A ticket,
// when present, has no ID or IssuedAt; the caller stamps both.
func Evaluate(v traffic.Vehicle, r *RuleConfig) (traffic.CheckResult, error) {
	if r == nil {
		return traffic.CheckResult{}, ErrNoRules
	}
	if err := v.Validate(); err != nil {
		return traffic.CheckResult{}, err
	}

	kind, limit := r.Classify(v.Speed, v.Type)
	result := traffic.CheckResult{
		Vehicle:     v,
		Kind:        kind,
		IsViolation: kind.IsViolation(),
	}
	if !result.IsViolation {
		return result, nil
	}

	fine, _ := r.ComputeFine(kind, v.Speed, v.STNKActive, v.SIMActive)
	location := v.Location
	if location == "" {
		location = traffic.DefaultLocation
	}
	result.Ticket = &traffic.Ticket{
		VehicleID:         v.ID,
		LicensePlate:      v.LicensePlate,
		VehicleType:       v.Type,
		Kind:              kind,
		Band:              fine.Band,
		Speed:             v.Speed,
		SpeedLimitUsed:    limit,
		BaseFine:          fine.Base,
		PenaltyMultiplier: fine.Multiplier,
		TotalFine:         fine.Total,
		Clamped:           fine.Clamped,
		STNKActive:        v.STNKActive,
		SIMActive:         v.SIMActive,
		Location:          location,
		Status:            traffic.TicketPending,
	}
	return result, nil
}
