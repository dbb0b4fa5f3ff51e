package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/arbor/components"
)

// CauseCount is one row of the cohort death-cause histogram.
type CauseCount struct {
	Cause    string  `csv:"cause" json:"cause"`
	Count    int     `csv:"count" json:"count"`
	Fraction float64 `csv:"fraction" json:"fraction"`
}

// CohortStats aggregates the lifetimes of independent trees.
type CohortStats struct {
	Size             int          `json:"size"`
	Survivors        int          `json:"survivors"`
	SurvivalFraction float64      `json:"survival_fraction"`
	LifespanMean     float64      `json:"lifespan_mean"`
	LifespanStd      float64      `json:"lifespan_std"`
	LifespanMedian   float64      `json:"lifespan_median"`
	Height           Distribution `json:"height"`
	Biomass          Distribution `json:"biomass"`
	Causes           []CauseCount `json:"causes"`
}

// ComputeCohortStats summarises a cohort. Lifespan statistics cover trees
// that died; survivors only contribute to the survival fraction.
func ComputeCohortStats(runs []LifetimeStats) CohortStats {
	cs := CohortStats{Size: len(runs)}
	if len(runs) == 0 {
		return cs
	}

	var lifespans, heights, biomass []float64
	counts := make(map[string]int)
	for _, r := range runs {
		heights = append(heights, r.Height)
		biomass = append(biomass, r.Biomass)
		if r.Alive {
			cs.Survivors++
			continue
		}
		lifespans = append(lifespans, r.AgeYears)
		counts[r.Cause]++
	}
	cs.SurvivalFraction = float64(cs.Survivors) / float64(cs.Size)
	cs.Height = Describe(heights)
	cs.Biomass = Describe(biomass)

	if len(lifespans) > 0 {
		sort.Float64s(lifespans)
		cs.LifespanMean = stat.Mean(lifespans, nil)
		if len(lifespans) > 1 {
			cs.LifespanStd = stat.StdDev(lifespans, nil)
		}
		cs.LifespanMedian = stat.Quantile(0.5, stat.Empirical, lifespans, nil)
	}

	dead := cs.Size - cs.Survivors
	for _, c := range components.AllCauses() {
		n := counts[c.String()]
		if n == 0 {
			continue
		}
		cs.Causes = append(cs.Causes, CauseCount{
			Cause:    c.String(),
			Count:    n,
			Fraction: float64(n) / float64(dead),
		})
	}
	return cs
}

// LogValue implements slog.LogValuer for structured logging.
func (cs CohortStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("size", cs.Size),
		slog.Int("survivors", cs.Survivors),
		slog.Float64("survival", cs.SurvivalFraction),
		slog.Float64("lifespan_mean", cs.LifespanMean),
		slog.Float64("lifespan_std", cs.LifespanStd),
		slog.Float64("lifespan_median", cs.LifespanMedian),
		slog.Float64("height_p50", cs.Height.P50),
	}
	for _, c := range cs.Causes {
		attrs = append(attrs, slog.Int("deaths_"+c.Cause, c.Count))
	}
	return slog.GroupValue(attrs...)
}
