package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/traffic"
)

func vehicle(speed float64, vt traffic.VehicleType, stnk, sim bool) traffic.Vehicle {
	return traffic.Vehicle{
		ID:           "v-test",
		LicensePlate: "B 1234 XY",
		Speed:        speed,
		Type:         vt,
		STNKActive:   stnk,
		SIMActive:    sim,
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// TestEvaluate_Boundaries tests that limits are inclusive and violations are strict.
func TestEvaluate_Boundaries(t *testing.T) {
	r := MustNew(DefaultSettings())

	tests := []struct {
		name  string
		speed float64
		vt    traffic.VehicleType
		want  traffic.ViolationKind
	}{
		{"at minimum", 60, traffic.VehicleCar, traffic.KindSafe},
		{"just below minimum", 59.9, traffic.VehicleCar, traffic.KindTooSlow},
		{"at limit", 100, traffic.VehicleCar, traffic.KindSafe},
		{"just above limit", 100.1, traffic.VehicleCar, traffic.KindSpeeding},
		{"cruising", 85, traffic.VehicleCar, traffic.KindSafe},
		{"stopped", 0, traffic.VehicleCar, traffic.KindTooSlow},
		{"truck at truck limit", 80, traffic.VehicleTruck, traffic.KindSafe},
		{"truck above truck limit", 80.1, traffic.VehicleTruck, traffic.KindSpeeding},
		{"bus uses default limit", 95, traffic.VehicleBus, traffic.KindSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Evaluate(vehicle(tt.speed, tt.vt, true, true), r)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if res.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", res.Kind, tt.want)
			}
			if res.IsViolation != tt.want.IsViolation() {
				t.Errorf("IsViolation = %v, want %v", res.IsViolation, tt.want.IsViolation())
			}
			if (res.Ticket != nil) != res.IsViolation {
				t.Errorf("ticket presence %v does not match IsViolation %v", res.Ticket != nil, res.IsViolation)
			}
		})
	}
}

// TestEvaluate_FineArithmetic tests band selection, penalty stacking and clamping.
func TestEvaluate_FineArithmetic(t *testing.T) {
	generous := DefaultSettings()
	generous.MaxFine = 1000

	tests := []struct {
		name        string
		settings    Settings
		speed       float64
		stnk, sim   bool
		wantBand    string
		wantMult    string
		wantTotal   int64
		wantClamped bool
	}{
		{"level 3 clean documents", DefaultSettings(), 121, true, true, "SPEED_HIGH_LEVEL_3", "1", 75, false},
		{"level 3 both inactive unclamped", generous, 121, false, false, "SPEED_HIGH_LEVEL_3", "1.4", 105, false},
		{"level 3 both inactive clamped", DefaultSettings(), 121, false, false, "SPEED_HIGH_LEVEL_3", "1.4", 100, true},
		{"level 1 stnk inactive", DefaultSettings(), 105, false, true, "SPEED_HIGH_LEVEL_1", "1.2", 36, false},
		{"level 2 sim inactive", DefaultSettings(), 115, true, false, "SPEED_HIGH_LEVEL_2", "1.2", 60, false},
		{"below first high band", DefaultSettings(), 100.5, true, true, "SPEED_HIGH_LEVEL_1", "1", 30, false},
		{"gap between high bands", DefaultSettings(), 110.5, true, true, "SPEED_HIGH_LEVEL_1", "1", 30, false},
		{"above every high band", DefaultSettings(), 180, true, true, "SPEED_HIGH_LEVEL_3", "1", 75, false},
		{"mild slow", DefaultSettings(), 55, true, true, "SPEED_LOW_MILD", "1", 20, false},
		{"gap before minimum", DefaultSettings(), 59.5, true, true, "SPEED_LOW_MILD", "1", 20, false},
		{"severe slow", DefaultSettings(), 30, true, true, "SPEED_LOW_SEVERE", "1", 35, false},
		{"severe slow both inactive", DefaultSettings(), 30, false, false, "SPEED_LOW_SEVERE", "1.4", 49, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MustNew(tt.settings)
			res, err := Evaluate(vehicle(tt.speed, traffic.VehicleCar, tt.stnk, tt.sim), r)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if res.Ticket == nil {
				t.Fatal("expected a ticket")
			}
			tk := res.Ticket
			if tk.Band != tt.wantBand {
				t.Errorf("Band = %s, want %s", tk.Band, tt.wantBand)
			}
			if !tk.PenaltyMultiplier.Equal(decimal.RequireFromString(tt.wantMult)) {
				t.Errorf("PenaltyMultiplier = %s, want %s", tk.PenaltyMultiplier, tt.wantMult)
			}
			if !tk.TotalFine.Equal(decimal.NewFromInt(tt.wantTotal)) {
				t.Errorf("TotalFine = %s, want %d", tk.TotalFine, tt.wantTotal)
			}
			if tk.Clamped != tt.wantClamped {
				t.Errorf("Clamped = %v, want %v", tk.Clamped, tt.wantClamped)
			}
			if tk.TotalFine.GreaterThan(r.MaxFine()) {
				t.Errorf("TotalFine %s exceeds max fine %s", tk.TotalFine, r.MaxFine())
			}
		})
	}
}

func TestEvaluate_TicketFields(t *testing.T) {
	r := MustNew(DefaultSettings())
	v := vehicle(90, traffic.VehicleTruck, true, false)

	res, err := Evaluate(v, r)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	tk := res.Ticket
	if tk == nil {
		t.Fatal("expected a ticket for a speeding truck")
	}
	if tk.SpeedLimitUsed != 80 {
		t.Errorf("SpeedLimitUsed = %v, want 80", tk.SpeedLimitUsed)
	}
	if tk.VehicleID != v.ID || tk.LicensePlate != v.LicensePlate {
		t.Errorf("ticket identity mismatch: %+v", tk)
	}
	if tk.Location != traffic.DefaultLocation {
		t.Errorf("Location = %q, want %q", tk.Location, traffic.DefaultLocation)
	}
	if tk.Status != traffic.TicketPending {
		t.Errorf("Status = %s, want PENDING", tk.Status)
	}
	if tk.ID != "" || !tk.IssuedAt.IsZero() {
		t.Error("Evaluate must not stamp ticket id or issue time")
	}
}

func TestEvaluate_Errors(t *testing.T) {
	if _, err := Evaluate(vehicle(80, traffic.VehicleCar, true, true), nil); !errors.Is(err, ErrNoRules) {
		t.Errorf("nil rules: got %v, want ErrNoRules", err)
	}

	r := MustNew(DefaultSettings())
	bad := vehicle(-5, traffic.VehicleCar, true, true)
	if _, err := Evaluate(bad, r); err == nil {
		t.Error("negative speed: expected error")
	}
}

// TestNew_Validation tests that invalid rule settings are rejected with a ConfigError.
func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *Settings)
		wantField string
	}{
		{"limit below minimum", func(s *Settings) { s.SpeedLimit = 50 }, "speed_limit"},
		{"limit equals minimum", func(s *Settings) { s.SpeedLimit = 60 }, "speed_limit"},
		{"negative minimum", func(s *Settings) { s.MinSpeedLimit = -1 }, "min_speed_limit"},
		{"type limit below minimum", func(s *Settings) {
			s.TypeSpeedLimits = map[traffic.VehicleType]float64{traffic.VehicleTruck: 40}
		}, "type_speed_limits.truck"},
		{"no high bands", func(s *Settings) { s.HighBands = nil }, "high_bands"},
		{"inverted band", func(s *Settings) {
			s.LowBands = []BandSettings{{Name: "X", Min: 30, Max: 10, Fine: 5}}
		}, "low_bands[X]"},
		{"overlapping bands", func(s *Settings) {
			s.HighBands = []BandSettings{
				{Name: "A", Min: 101, Max: 115, Fine: 30},
				{Name: "B", Min: 110, Max: 130, Fine: 50},
			}
		}, "high_bands[B]"},
		{"negative fine", func(s *Settings) {
			s.HighBands = []BandSettings{{Name: "A", Min: 101, Max: 115, Fine: -1}}
		}, "high_bands[A]"},
		{"zero fine", func(s *Settings) {
			s.HighBands = []BandSettings{{Name: "WARN", Min: 101, Max: 110, Fine: 0}}
		}, "high_bands[WARN]"},
		{"negative penalty", func(s *Settings) { s.SIMPenalty = -0.1 }, "sim_penalty"},
		{"zero max fine", func(s *Settings) { s.MaxFine = 0 }, "max_fine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			_, err := New(s)
			var cfgErr *traffic.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("New() error = %v, want *traffic.ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestNew_SortsBands(t *testing.T) {
	s := DefaultSettings()
	s.HighBands = []BandSettings{
		{Name: "C", Min: 121, Max: 150, Fine: 75},
		{Name: "A", Min: 101, Max: 110, Fine: 30},
		{Name: "B", Min: 111, Max: 120, Fine: 50},
	}
	r := MustNew(s)

	bands := r.Bands(traffic.KindSpeeding)
	for i, want := range []string{"A", "B", "C"} {
		if bands[i].Name != want {
			t.Errorf("band %d = %s, want %s", i, bands[i].Name, want)
		}
	}

	// Mutating the returned copy must not affect the rule set.
	bands[0].Name = "mutated"
	if r.Bands(traffic.KindSpeeding)[0].Name != "A" {
		t.Error("Bands() must return a copy")
	}
}

func TestFromConfig_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()
	r, err := FromConfig(&cfg.Rules)
	if err != nil {
		t.Fatalf("FromConfig() failed: %v", err)
	}
	if got := r.LimitFor(traffic.VehicleTruck); got != 80 {
		t.Errorf("truck limit = %v, want 80", got)
	}
	if got := r.LimitFor(traffic.VehicleCar); got != 100 {
		t.Errorf("car limit = %v, want 100", got)
	}
	if !r.MaxFine().Equal(decimal.NewFromInt(100)) {
		t.Errorf("max fine = %s, want 100", r.MaxFine())
	}

	cfg.Rules.SpeedLimit = 10
	if _, err := FromConfig(&cfg.Rules); err == nil {
		t.Error("expected error for speed_limit below min_speed_limit")
	}
}
