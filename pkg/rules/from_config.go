package rules

import (
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/traffic"
)

// SettingsFromConfig maps the YAML rules section onto Settings.
func SettingsFromConfig(cfg *config.RulesConfig) Settings {
	s := Settings{
		MinSpeedLimit:   cfg.MinSpeedLimit,
		SpeedLimit:      cfg.SpeedLimit,
		TypeSpeedLimits: make(map[traffic.VehicleType]float64, len(cfg.TypeSpeedLimits)),
		STNKPenalty:     cfg.STNKPenalty,
		SIMPenalty:      cfg.SIMPenalty,
		MaxFine:         cfg.MaxFine,
	}
	for vt, limit := range cfg.TypeSpeedLimits {
		s.TypeSpeedLimits[traffic.VehicleType(vt)] = limit
	}
	for _, b := range cfg.LowBands {
		s.LowBands = append(s.LowBands, BandSettings(b))
	}
	for _, b := range cfg.HighBands {
		s.HighBands = append(s.HighBands, BandSettings(b))
	}
	return s
}

// FromConfig builds a RuleConfig from the YAML rules section.
func FromConfig(cfg *config.RulesConfig) (*RuleConfig, error) {
	return New(SettingsFromConfig(cfg))
}
