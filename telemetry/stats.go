package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated tree state over one telemetry window.
type WindowStats struct {
	WindowEndSubstep int64   `csv:"window_end"`
	Year             int     `csv:"year"`
	Day              float64 `csv:"day"`
	Season           string  `csv:"season"`
	AgeYears         float64 `csv:"age_years"`
	Alive            bool    `csv:"alive"`

	// Morphology and mass at window end
	Height       float64 `csv:"height_m"`
	DBH          float64 `csv:"dbh_cm"`
	CrownRadius  float64 `csv:"crown_radius_m"`
	Biomass      float64 `csv:"biomass_kg"`
	Leaves       float64 `csv:"leaves_kg"`
	CarbonStored float64 `csv:"carbon_stored_kg"`

	// Vitality at window end
	Health      float64 `csv:"health"`
	Vigor       float64 `csv:"vigor"`
	StressLevel float64 `csv:"stress_level"`
	DiseaseLoad float64 `csv:"disease_load"`
	Foliage     float64 `csv:"foliage"`

	// Window aggregates
	StressMean      float64 `csv:"stress_mean"`
	NetCarbonMean   float64 `csv:"net_carbon_mean"`
	GrowthMean      float64 `csv:"growth_mean"`
	DormantFraction float64 `csv:"dormant_fraction"`
	HazardMean      float64 `csv:"hazard_mean"`
	HazardP90       float64 `csv:"hazard_p90"`
	BiomassGain     float64 `csv:"biomass_gain_kg"`
	Events          int     `csv:"events"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("year", s.Year),
		slog.Float64("day", s.Day),
		slog.String("season", s.Season),
		slog.Float64("age_years", s.AgeYears),
		slog.Bool("alive", s.Alive),
		slog.Float64("height_m", s.Height),
		slog.Float64("dbh_cm", s.DBH),
		slog.Float64("biomass_kg", s.Biomass),
		slog.Float64("health", s.Health),
		slog.Float64("stress_level", s.StressLevel),
		slog.Float64("hazard_mean", s.HazardMean),
		slog.Float64("dormant_fraction", s.DormantFraction),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("window", "stats", s)
}

// Percentile computes the p-th percentile of sorted values (p in [0, 1]).
// Uses linear interpolation between adjacent values.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	idx := p * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Distribution summarises a sample.
type Distribution struct {
	Mean float64
	Std  float64
	P10  float64
	P50  float64
	P90  float64
}

// Describe returns mean, standard deviation and percentiles of values.
// The input slice is not modified.
func Describe(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var d Distribution
	if len(sorted) > 1 {
		d.Mean, d.Std = stat.MeanStdDev(sorted, nil)
	} else {
		d.Mean = sorted[0]
	}
	d.P10 = Percentile(sorted, 0.10)
	d.P50 = Percentile(sorted, 0.50)
	d.P90 = Percentile(sorted, 0.90)
	return d
}
