package telemetry

import (
	"math"

	"github.com/pthm-cable/arbor/sim"
)

// LifetimeStats summarises one tree's whole run.
type LifetimeStats struct {
	Seed         int64   `csv:"seed" json:"seed"`
	Species      string  `csv:"species" json:"species"`
	Alive        bool    `csv:"alive" json:"alive"`
	Cause        string  `csv:"cause" json:"cause"`
	AgeYears     float64 `csv:"age_years" json:"age_years"`
	Height       float64 `csv:"height_m" json:"height_m"`
	DBH          float64 `csv:"dbh_cm" json:"dbh_cm"`
	Biomass      float64 `csv:"biomass_kg" json:"biomass_kg"`
	CarbonStored float64 `csv:"carbon_stored_kg" json:"carbon_stored_kg"`
	CO2Absorbed  float64 `csv:"co2_absorbed_kg" json:"co2_absorbed_kg"`

	PeakHealth    float64 `csv:"peak_health" json:"peak_health"`
	MinHealth     float64 `csv:"min_health" json:"min_health"`
	PeakStress    float64 `csv:"peak_stress_level" json:"peak_stress_level"`
	PeakHazard    float64 `csv:"peak_hazard" json:"peak_hazard"`
	DormantDays   float64 `csv:"dormant_days" json:"dormant_days"`
	FloweringDays float64 `csv:"flowering_days" json:"flowering_days"`
	Substeps      int64   `csv:"substeps" json:"substeps"`
}

// LifetimeTracker accumulates lifetime statistics for one tree.
type LifetimeTracker struct {
	dtDays float64
	stats  LifetimeStats
}

// NewLifetimeTracker creates a tracker for a tree run with the given seed.
func NewLifetimeTracker(seed int64, dtDays float64) *LifetimeTracker {
	return &LifetimeTracker{
		dtDays: dtDays,
		stats: LifetimeStats{
			Seed:      seed,
			Alive:     true,
			MinHealth: math.Inf(1),
		},
	}
}

// Record folds one step report and the resulting tree state into the summary.
func (lt *LifetimeTracker) Record(r sim.StepReport, tree sim.TreeState) {
	if r.Skipped {
		return
	}
	s := &lt.stats
	s.Substeps++
	h := tree.Vitality.Health
	s.PeakHealth = math.Max(s.PeakHealth, h)
	s.MinHealth = math.Min(s.MinHealth, h)
	s.PeakStress = math.Max(s.PeakStress, tree.Vitality.StressLevel)
	s.PeakHazard = math.Max(s.PeakHazard, r.Mortality.Hazard)
	if r.Phenology.Dormant {
		s.DormantDays += lt.dtDays
	}
	if r.Phenology.Flowering {
		s.FloweringDays += lt.dtDays
	}
}

// Finish completes the summary from the final tree state.
func (lt *LifetimeTracker) Finish(tree sim.TreeState) LifetimeStats {
	s := lt.stats
	s.Species = tree.Species
	s.Alive = tree.Life.Alive
	if !s.Alive {
		s.Cause = tree.Life.Cause.String()
	}
	s.AgeYears = tree.Life.Age
	s.Height = tree.Morphology.Height
	s.DBH = tree.Morphology.DBH
	s.Biomass = tree.Biomass.Total
	s.CarbonStored = tree.Exchange.CarbonStored
	s.CO2Absorbed = tree.Exchange.CO2Absorbed
	if math.IsInf(s.MinHealth, 1) {
		s.MinHealth = tree.Vitality.Health
		s.PeakHealth = math.Max(s.PeakHealth, tree.Vitality.Health)
	}
	return s
}
