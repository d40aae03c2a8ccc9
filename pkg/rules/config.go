package rules

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/traffic"
)

// BandSettings describes one fine band before validation.
type BandSettings struct {
	Name string
	Min  float64 // inclusive lower bound, km/h
	Max  float64 // upper bound, km/h
	Fine float64
}

// Settings is the raw rule input, typically mapped from the YAML configuration.
type Settings struct {
	MinSpeedLimit   float64
	SpeedLimit      float64
	TypeSpeedLimits map[traffic.VehicleType]float64
	LowBands        []BandSettings
	HighBands       []BandSettings
	STNKPenalty     float64
	SIMPenalty      float64
	MaxFine         float64
}

// DefaultSettings returns the toll-road profile: 60..100 km/h, trucks capped at 80.
func DefaultSettings() Settings {
	return Settings{
		MinSpeedLimit: 60,
		SpeedLimit:    100,
		TypeSpeedLimits: map[traffic.VehicleType]float64{
			traffic.VehicleTruck: 80,
		},
		LowBands: []BandSettings{
			{Name: "SPEED_LOW_SEVERE", Min: 0, Max: 49, Fine: 35},
			{Name: "SPEED_LOW_MILD", Min: 50, Max: 59, Fine: 20},
		},
		HighBands: []BandSettings{
			{Name: "SPEED_HIGH_LEVEL_1", Min: 101, Max: 110, Fine: 30},
			{Name: "SPEED_HIGH_LEVEL_2", Min: 111, Max: 120, Fine: 50},
			{Name: "SPEED_HIGH_LEVEL_3", Min: 121, Max: 150, Fine: 75},
		},
		STNKPenalty: 0.2,
		SIMPenalty:  0.2,
		MaxFine:     100,
	}
}

// Band is a validated fine band.
type Band struct {
	Name string
	Min  float64
	Max  float64
	Fine decimal.Decimal
}

// RuleConfig is the immutable, validated rule set.
type RuleConfig struct {
	minSpeed    float64
	speedLimit  float64
	typeLimits  map[traffic.VehicleType]float64
	lowBands    []Band
	highBands   []Band
	stnkPenalty decimal.Decimal
	simPenalty  decimal.Decimal
	maxFine     decimal.Decimal
}

// New validates s and builds a RuleConfig. Invalid settings yield a *traffic.ConfigError.
func New(s Settings) (*RuleConfig, error) {
	if !finite(s.MinSpeedLimit) || s.MinSpeedLimit < 0 {
		return nil, traffic.NewConfigError("min_speed_limit", "must be a non-negative number, got %v", s.MinSpeedLimit)
	}
	if !finite(s.SpeedLimit) || s.SpeedLimit <= s.MinSpeedLimit {
		return nil, traffic.NewConfigError("speed_limit", "must be greater than min_speed_limit (%v), got %v", s.MinSpeedLimit, s.SpeedLimit)
	}

	typeLimits := make(map[traffic.VehicleType]float64, len(s.TypeSpeedLimits))
	for vt, limit := range s.TypeSpeedLimits {
		if vt == "" {
			return nil, traffic.NewConfigError("type_speed_limits", "vehicle type must not be empty")
		}
		if !finite(limit) || limit <= s.MinSpeedLimit {
			return nil, traffic.NewConfigError(fmt.Sprintf("type_speed_limits.%s", vt),
				"must be greater than min_speed_limit (%v), got %v", s.MinSpeedLimit, limit)
		}
		typeLimits[vt] = limit
	}

	low, err := buildBands("low_bands", s.LowBands)
	if err != nil {
		return nil, err
	}
	high, err := buildBands("high_bands", s.HighBands)
	if err != nil {
		return nil, err
	}

	if !finite(s.STNKPenalty) || s.STNKPenalty < 0 {
		return nil, traffic.NewConfigError("stnk_penalty", "must be a non-negative number, got %v", s.STNKPenalty)
	}
	if !finite(s.SIMPenalty) || s.SIMPenalty < 0 {
		return nil, traffic.NewConfigError("sim_penalty", "must be a non-negative number, got %v", s.SIMPenalty)
	}
	if !finite(s.MaxFine) || s.MaxFine <= 0 {
		return nil, traffic.NewConfigError("max_fine", "must be positive, got %v", s.MaxFine)
	}

	return &RuleConfig{
		minSpeed:    s.MinSpeedLimit,
		speedLimit:  s.SpeedLimit,
		typeLimits:  typeLimits,
		lowBands:    low,
		highBands:   high,
		stnkPenalty: decimal.NewFromFloat(s.STNKPenalty),
		simPenalty:  decimal.NewFromFloat(s.SIMPenalty),
		maxFine:     decimal.NewFromFloat(s.MaxFine),
	}, nil
}

// MustNew is like New but panics on invalid settings. Intended for tests and defaults.
func MustNew(s Settings) *RuleConfig {
	r, err := New(s)
	if err != nil {
		panic(err)
	}
	return r
}

// buildBands validates a band table and returns it sorted by lower bound.
func buildBands(field string, in []BandSettings) ([]Band, error) {
	if len(in) == 0 {
		return nil, traffic.NewConfigError(field, "at least one band is required")
	}

	sorted := make([]BandSettings, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	bands := make([]Band, 0, len(sorted))
	for i, b := range sorted {
		name := fmt.Sprintf("%s[%s]", field, b.Name)
		if b.Name == "" {
			return nil, traffic.NewConfigError(field, "band %d has no name", i)
		}
		if !finite(b.Min) || !finite(b.Max) || b.Min < 0 || b.Max < b.Min {
			return nil, traffic.NewConfigError(name, "invalid range [%v, %v]", b.Min, b.Max)
		}
		if !finite(b.Fine) || b.Fine <= 0 {
			return nil, traffic.NewConfigError(name, "fine must be positive, got %v", b.Fine)
		}
		if i > 0 && b.Min <= sorted[i-1].Max {
			return nil, traffic.NewConfigError(name, "overlaps band %s ending at %v", sorted[i-1].Name, sorted[i-1].Max)
		}
		bands = append(bands, Band{
			Name: b.Name,
			Min:  b.Min,
			Max:  b.Max,
			Fine: decimal.NewFromFloat(b.Fine),
		})
	}
	return bands, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MinSpeedLimit returns the minimum legal speed.
func (r *RuleConfig) MinSpeedLimit() float64 { return r.minSpeed }

// SpeedLimit returns the default maximum legal speed.
func (r *RuleConfig) SpeedLimit() float64 { return r.speedLimit }

// MaxFine returns the fine cap.
func (r *RuleConfig) MaxFine() decimal.Decimal { return r.maxFine }

// LimitFor returns the maximum legal speed for a vehicle type.
func (r *RuleConfig) LimitFor(vt traffic.VehicleType) float64 {
	if limit, ok := r.typeLimits[vt]; ok {
		return limit
	}
	return r.speedLimit
}

// Bands returns a copy of the band table for kind.
func (r *RuleConfig) Bands(kind traffic.ViolationKind) []Band {
	var src []Band
	switch kind {
	case traffic.KindTooSlow:
		src = r.lowBands
	case traffic.KindSpeeding:
		src = r.highBands
	}
	out := make([]Band, len(src))
	copy(out, src)
	return out
}
