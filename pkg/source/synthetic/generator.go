package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/traffic"
)

// regions are the plate prefixes used for generated plates.
var regions = []string{"B", "D", "E", "F", "H", "L", "N", "AB", "AD", "BK", "DK", "KT"}

// Config parameterizes a Generator.
type Config struct {
	Seed            uint64
	SpeedMean       float64
	SpeedStdDev     float64
	SpeedMin        float64
	SpeedMax        float64
	TypeSpeedMeans  map[traffic.VehicleType]float64
	TypeWeights     map[traffic.VehicleType]float64
	STNKActiveRatio float64
	SIMActiveRatio  float64
	RepeatRatio     float64
	Location        string
}

// FromConfig maps the simulation section onto a generator Config.
func FromConfig(cfg *config.SimulationConfig) Config {
	c := Config{
		Seed:            cfg.Seed,
		SpeedMean:       cfg.SpeedMean,
		SpeedStdDev:     cfg.SpeedStdDev,
		SpeedMin:        cfg.SpeedMin,
		SpeedMax:        cfg.SpeedMax,
		TypeSpeedMeans:  make(map[traffic.VehicleType]float64, len(cfg.TypeSpeedMeans)),
		TypeWeights:     make(map[traffic.VehicleType]float64, len(cfg.TypeWeights)),
		STNKActiveRatio: cfg.STNKActiveRatio,
		SIMActiveRatio:  cfg.SIMActiveRatio,
		RepeatRatio:     cfg.RepeatRatio,
		Location:        cfg.Location,
	}
	for name, mean := range cfg.TypeSpeedMeans {
		c.TypeSpeedMeans[traffic.VehicleType(name)] = mean
	}
	for name, w := range cfg.TypeWeights {
		c.TypeWeights[traffic.VehicleType(name)] = w
	}
	return c
}

// Generator produces synthetic vehicles. It is safe for concurrent use.
type Generator struct {
	cfg      Config
	registry *Registry

	mu      sync.Mutex
	rng     *rand.Rand
	speeds  map[traffic.VehicleType]distuv.Normal
	types   []traffic.VehicleType
	weights []float64
	total   float64
	seq     int64
	now     func() time.Time
}

// NewGenerator creates a generator that remembers plates in registry. A zero
// seed picks a time-based one.
func NewGenerator(cfg Config, registry *Registry) (*Generator, error) {
	if cfg.SpeedMax <= cfg.SpeedMin || cfg.SpeedStdDev < 0 {
		return nil, traffic.NewConfigError("simulation", "invalid speed range [%v, %v] or stddev %v",
			cfg.SpeedMin, cfg.SpeedMax, cfg.SpeedStdDev)
	}
	if registry == nil {
		registry = NewRegistry(DefaultRegistrySize)
	}
	if cfg.Location == "" {
		cfg.Location = traffic.DefaultLocation
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	g := &Generator{
		cfg:      cfg,
		registry: registry,
		rng:      rng,
		speeds:   make(map[traffic.VehicleType]distuv.Normal),
		now:      time.Now,
	}

	for vt, w := range cfg.TypeWeights {
		if w < 0 || math.IsNaN(w) {
			return nil, traffic.NewConfigError("simulation.type_weights."+string(vt), "must be non-negative")
		}
		if w > 0 {
			g.types = append(g.types, vt)
		}
	}
	if len(g.types) == 0 {
		g.types = []traffic.VehicleType{traffic.VehicleCar}
		cfg.TypeWeights = map[traffic.VehicleType]float64{traffic.VehicleCar: 1}
	}
	// Map iteration order is random; sort so a seed is reproducible.
	slices.Sort(g.types)
	for _, vt := range g.types {
		g.weights = append(g.weights, cfg.TypeWeights[vt])
		g.total += cfg.TypeWeights[vt]

		mean := cfg.SpeedMean
		if m, ok := cfg.TypeSpeedMeans[vt]; ok {
			mean = m
		}
		g.speeds[vt] = distuv.Normal{Mu: mean, Sigma: cfg.SpeedStdDev, Src: rng}
	}
	return g, nil
}

// Registry returns the plate registry.
func (g *Generator) Registry() *Registry {
	return g.registry
}

// Generate returns n new vehicles.
func (g *Generator) Generate(n int) []traffic.Vehicle {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]traffic.Vehicle, 0, n)
	for range n {
		out = append(out, g.next())
	}
	return out
}

func (g *Generator) next() traffic.Vehicle {
	g.seq++

	vt := g.pickType()
	plate := ""
	if g.cfg.RepeatRatio > 0 && g.rng.Float64() < g.cfg.RepeatRatio {
		if o, ok := g.registry.Pick(g.rng); ok {
			plate, vt = o.Plate, o.Type
		}
	}
	if plate == "" {
		plate = g.plate()
	}
	g.registry.Observe(plate, vt)

	return traffic.Vehicle{
		ID:           fmt.Sprintf("%s-%06d", strings.ToUpper(string(vt)), g.seq),
		LicensePlate: plate,
		Speed:        g.speed(vt),
		Type:         vt,
		STNKActive:   g.rng.Float64() < g.cfg.STNKActiveRatio,
		SIMActive:    g.rng.Float64() < g.cfg.SIMActiveRatio,
		Timestamp:    g.now(),
		Location:     g.cfg.Location,
	}
}

func (g *Generator) pickType() traffic.VehicleType {
	x := g.rng.Float64() * g.total
	for i, w := range g.weights {
		if x < w {
			return g.types[i]
		}
		x -= w
	}
	return g.types[len(g.types)-1]
}

// speed draws from the type's distribution, clipped to the configured range
// and rounded to one decimal.
func (g *Generator) speed(vt traffic.VehicleType) float64 {
	s := g.speeds[vt].Rand()
	s = max(g.cfg.SpeedMin, min(s, g.cfg.SpeedMax))
	return math.Round(s*10) / 10
}

// plate builds a plate like "B 1234 XYZ".
func (g *Generator) plate() string {
	region := regions[g.rng.IntN(len(regions))]
	digits := 1 + g.rng.IntN(9999)
	suffix := make([]byte, 1+g.rng.IntN(3))
	for i := range suffix {
		suffix[i] = byte('A' + g.rng.IntN(26))
	}
	return fmt.Sprintf("%s %d %s", region, digits, suffix)
}
