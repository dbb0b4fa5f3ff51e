package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
	"github.com/pthm-cable/arbor/rng"
	"github.com/pthm-cable/arbor/systems"
)

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned when restoring an incompatible snapshot.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// ErrInvalidSnapshot is returned when a snapshot's state cannot be repaired.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot captures everything needed to resume a simulation bit-identically.
type Snapshot struct {
	Version      int                     `json:"version"`
	Seed         int64                   `json:"seed"`
	RNGState     []byte                  `json:"rng_state"`
	Substeps     int64                   `json:"substeps"`
	Clock        environment.Clock       `json:"clock"`
	Conditions   environment.Conditions  `json:"conditions"`
	Params       systems.MortalityParams `json:"params"`
	EnableGrowth bool                    `json:"enable_growth"`
	Tree         TreeState               `json:"tree"`
}

// Snapshot captures the current state.
func (s *Simulation) Snapshot() (*Snapshot, error) {
	state, err := s.rng.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("capturing rng state: %w", err)
	}
	return &Snapshot{
		Version:      SnapshotVersion,
		Seed:         s.rng.Seed(),
		RNGState:     state,
		Substeps:     s.substeps,
		Clock:        s.clock,
		Conditions:   s.conditions,
		Params:       s.mortality.Params,
		EnableGrowth: s.enableGrowth,
		Tree:         s.Tree(),
	}, nil
}

// Restore rebuilds a simulation from a snapshot. The snapshot's species
// selects the species parameters from cfg. Out-of-range state is clamped and
// invalid parameters fall back to the configured values; a negative or
// non-finite age or substep count is rejected.
func Restore(cfg *config.Config, snap *Snapshot) (*Simulation, error) {
	if snap == nil {
		return nil, errors.New("nil snapshot")
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, snap.Version, SnapshotVersion)
	}

	if snap.Tree.Species != "" && snap.Tree.Species != cfg.Derived.SpeciesName {
		c := *cfg
		c.Tree.Species = snap.Tree.Species
		if err := c.Finalize(); err != nil {
			return nil, fmt.Errorf("restoring species: %w", err)
		}
		cfg = &c
	}

	if snap.Substeps < 0 {
		return nil, fmt.Errorf("%w: negative substep count %d", ErrInvalidSnapshot, snap.Substeps)
	}
	if days := snap.Tree.Life.DaysSinceBirth; days < 0 || !finite(days) {
		return nil, fmt.Errorf("%w: days since birth %v", ErrInvalidSnapshot, days)
	}

	src, err := rng.Restore(snap.Seed, snap.RNGState)
	if err != nil {
		return nil, err
	}

	s := newSimulation(cfg, src)
	s.clock = snap.Clock
	s.conditions = snap.Conditions.Clamped()
	s.mortality.Params = sanitizeParams(snap.Params, s.mortality.Params)
	s.enableGrowth = snap.EnableGrowth
	s.substeps = snap.Substeps

	tree := sanitizeTree(snap.Tree)
	tree.Species = cfg.Derived.SpeciesName
	tree.Life.Age = tree.Life.DaysSinceBirth / s.daysPerYear
	s.plant(tree)
	return s, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// bound clamps v to [lo, hi]; non-finite values become fallback first.
func bound(v, fallback, lo, hi float64) float64 {
	if !finite(v) {
		v = fallback
	}
	return math.Max(lo, math.Min(hi, v))
}

// positive keeps v when it is finite and above zero.
func positive(v, fallback float64) float64 {
	if !finite(v) || v <= 0 {
		return fallback
	}
	return v
}

// sanitizeParams holds restored hazard parameters to the ranges accepted by
// config validation and ApplyInput. base supplies fallbacks.
func sanitizeParams(p, base systems.MortalityParams) systems.MortalityParams {
	inf := math.Inf(1)
	p.MaxAge = bound(p.MaxAge, base.MaxAge, minMaxAge, maxMaxAge)
	p.SenescenceStartAge = bound(p.SenescenceStartAge, base.SenescenceStartAge, 0, p.MaxAge)
	p.AgeTolerance = base.AgeTolerance // not host-adjustable
	p.BaseRate = bound(p.BaseRate, base.BaseRate, 0, maxBaseMortality)
	p.SenescenceWeight = bound(p.SenescenceWeight, base.SenescenceWeight, 0, inf)
	p.StressWeight = bound(p.StressWeight, base.StressWeight, 0, inf)
	p.DroughtThreshold = bound(p.DroughtThreshold, base.DroughtThreshold, minDroughtThreshold, environment.MaxPercent)
	p.DroughtWeight = bound(p.DroughtWeight, base.DroughtWeight, 0, inf)
	p.HeatStressTemp = bound(p.HeatStressTemp, base.HeatStressTemp, environment.MinTemperature, environment.MaxTemperature)
	p.HeatWeight = bound(p.HeatWeight, base.HeatWeight, 0, inf)
	p.DiseaseRate = bound(p.DiseaseRate, base.DiseaseRate, 0, maxRate)
	p.StormFrequency = bound(p.StormFrequency, base.StormFrequency, 0, maxRate)
	p.WindThreshold = bound(p.WindThreshold, base.WindThreshold, environment.MinPercent, environment.MaxPercent)
	p.WindRange = positive(p.WindRange, base.WindRange)
	p.StormMultiplier = bound(p.StormMultiplier, base.StormMultiplier, 0, inf)
	p.FireWaterThreshold = positive(p.FireWaterThreshold, base.FireWaterThreshold)
	p.FireTempThreshold = bound(p.FireTempThreshold, base.FireTempThreshold, environment.MinTemperature, environment.MaxTemperature)
	p.FireTempRange = positive(p.FireTempRange, base.FireTempRange)
	p.FireWeight = bound(p.FireWeight, base.FireWeight, 0, inf)
	p.FireResistance = bound(p.FireResistance, base.FireResistance, 0, 1)
	p.WindResistance = bound(p.WindResistance, base.WindResistance, 0, 1)
	p.MaxHeight = positive(p.MaxHeight, base.MaxHeight)
	p.HazardCap = positive(p.HazardCap, base.HazardCap)
	return p
}

// sanitizeTree clamps restored component state to its documented ranges.
func sanitizeTree(t TreeState) TreeState {
	inf := math.Inf(1)
	percent := func(v *float64) { *v = bound(*v, 0, environment.MinPercent, environment.MaxPercent) }
	fraction := func(v *float64) { *v = bound(*v, 0, 0, 1) }
	mass := func(v *float64) { *v = bound(*v, 0, 0, inf) }

	v := &t.Vitality
	for _, f := range []*float64{&v.Health, &v.Vigor, &v.WaterContent, &v.StressLevel, &v.DiseaseLoad, &v.Chlorophyll, &v.Stress} {
		percent(f)
	}

	m := &t.Morphology
	for _, f := range []*float64{&m.Height, &m.DBH, &m.CrownRadius, &m.CrownHeight, &m.RootDepth, &m.RootSpread} {
		mass(f)
	}

	b := &t.Biomass
	for _, f := range []*float64{&b.Trunk, &b.Branches, &b.Leaves, &b.Roots, &b.Heartwood, &b.Sapwood} {
		mass(f)
	}
	if b.Heartwood > b.Trunk {
		b.Heartwood = b.Trunk
		b.Sapwood = 0
	}
	b.Recompute()

	fraction(&t.Phenology.SeasonProgress)
	fraction(&t.Phenology.FoliageDensity)
	fraction(&t.Phenology.FoliageOpacity)

	e := &t.Exchange
	for _, f := range []*float64{&e.CO2Absorbed, &e.O2Produced, &e.WaterTranspired, &e.CarbonStored} {
		mass(f)
	}

	fraction(&t.Traits.DiseaseResistance)
	t.Traits.GrowthVigor = positive(t.Traits.GrowthVigor, 1)
	return t
}
