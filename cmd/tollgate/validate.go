package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/traffic"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration, apply TOLLGATE_* environment overrides and
validate it, including the speed limits and fine bands.

On success the effective limits and fine schedule are printed. On failure
every invalid field is listed and the command exits with status 2.

Examples:
  # Validate the defaults
  tollgate validate

  # Validate a configuration file
  tollgate validate --config tollgate.yaml

  # Print the fine schedule as JSON
  tollgate validate --config tollgate.yaml --output json`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.format, "output", "o", "table", "output format: table, json")
}

// ruleSummary is the JSON form of a validated rule set.
type ruleSummary struct {
	MinSpeedLimit   float64                                `json:"min_speed_limit"`
	SpeedLimit      float64                                `json:"speed_limit"`
	TypeSpeedLimits map[traffic.VehicleType]float64        `json:"type_speed_limits"`
	MaxFine         string                                 `json:"max_fine"`
	Bands           map[traffic.ViolationKind][]rules.Band `json:"bands"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rc, err := rules.FromConfig(&cfg.Rules)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	source := cfgFile
	if source == "" {
		source = "built-in defaults"
	}

	summary := ruleSummary{
		MinSpeedLimit:   rc.MinSpeedLimit(),
		SpeedLimit:      rc.SpeedLimit(),
		TypeSpeedLimits: make(map[traffic.VehicleType]float64),
		MaxFine:         rc.MaxFine().StringFixed(2),
		Bands: map[traffic.ViolationKind][]rules.Band{
			traffic.KindTooSlow:  rc.Bands(traffic.KindTooSlow),
			traffic.KindSpeeding: rc.Bands(traffic.KindSpeeding),
		},
	}
	for vt := range cfg.Rules.TypeSpeedLimits {
		summary.TypeSpeedLimits[traffic.VehicleType(vt)] = rc.LimitFor(traffic.VehicleType(vt))
	}

	if validateFlags.format == "json" {
		return render(w, validateFlags.format, nil, summary)
	}

	fmt.Fprintf(w, "✓ Configuration valid (%s)\n\n", source)
	fmt.Fprintf(w, "Legal speed: %s..%s km/h\n", formatSpeed(summary.MinSpeedLimit), formatSpeed(summary.SpeedLimit))
	types := make([]string, 0, len(cfg.Rules.TypeSpeedLimits))
	for vt := range cfg.Rules.TypeSpeedLimits {
		types = append(types, vt)
	}
	sort.Strings(types)
	for _, vt := range types {
		fmt.Fprintf(w, "  %s: max %s km/h\n", vt, formatSpeed(summary.TypeSpeedLimits[traffic.VehicleType(vt)]))
	}
	fmt.Fprintf(w, "Penalties: STNK +%v, SIM +%v, fine cap %s\n\n",
		cfg.Rules.STNKPenalty, cfg.Rules.SIMPenalty, summary.MaxFine)

	return render(w, validateFlags.format, bandTable{rules: rc}, summary)
}
