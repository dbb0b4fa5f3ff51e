package telemetry

import (
	"sort"

	"github.com/pthm-cable/arbor/sim"
)

// Collector accumulates step reports within windows of simulated days and
// produces WindowStats.
type Collector struct {
	windowDays     float64
	windowSubsteps int64

	// Current window tracking
	windowStart int64
	last        sim.StepReport
	haveLast    bool

	steps       int
	dormant     int
	events      int
	stressSum   float64
	netSum      float64
	growthSum   float64
	biomassGain float64
	hazards     []float64
}

// NewCollector creates a new stats collector.
// windowDays: how many simulated days each window covers.
// dtDays: simulated days per substep.
func NewCollector(windowDays, dtDays float64) *Collector {
	n := int64(1)
	if dtDays > 0 {
		n = int64(windowDays/dtDays + 0.5)
	}
	if n < 1 {
		n = 1
	}
	return &Collector{
		windowDays:     windowDays,
		windowSubsteps: n,
	}
}

// StartAt moves the start of the current window to substep, for runs
// resumed from a snapshot.
func (c *Collector) StartAt(substep int64) {
	c.windowStart = substep
}

// WindowSubsteps returns the window length in substeps.
func (c *Collector) WindowSubsteps() int64 {
	return c.windowSubsteps
}

// Record adds one step report to the current window. Skipped substeps are
// ignored.
func (c *Collector) Record(r sim.StepReport) {
	if r.Skipped {
		return
	}
	c.last = r
	c.haveLast = true
	c.steps++
	if r.Phenology.Dormant {
		c.dormant++
	}
	c.stressSum += r.Balance.Stress
	c.netSum += r.Balance.NetCarbon
	c.growthSum += r.Balance.GrowthFactor
	c.biomassGain += r.BiomassIncrement
	if r.Mortality.Hazard > 0 {
		c.hazards = append(c.hazards, r.Mortality.Hazard)
	}
}

// Pending returns the number of substeps recorded since the last flush.
func (c *Collector) Pending() int {
	return c.steps
}

// RecordEvents counts events emitted during the current window.
func (c *Collector) RecordEvents(n int) {
	c.events += n
}

// ShouldFlush returns true if the current window is complete.
func (c *Collector) ShouldFlush(substep int64) bool {
	return substep-c.windowStart >= c.windowSubsteps
}

// Flush produces WindowStats for the current window and resets counters.
func (c *Collector) Flush(tree sim.TreeState) WindowStats {
	ws := WindowStats{
		AgeYears:     tree.Life.Age,
		Alive:        tree.Life.Alive,
		Height:       tree.Morphology.Height,
		DBH:          tree.Morphology.DBH,
		CrownRadius:  tree.Morphology.CrownRadius,
		Biomass:      tree.Biomass.Total,
		Leaves:       tree.Biomass.Leaves,
		CarbonStored: tree.Exchange.CarbonStored,
		Health:       tree.Vitality.Health,
		Vigor:        tree.Vitality.Vigor,
		StressLevel:  tree.Vitality.StressLevel,
		DiseaseLoad:  tree.Vitality.DiseaseLoad,
		Foliage:      tree.Phenology.FoliageDensity,
		Season:       tree.Phenology.Season.String(),
		BiomassGain:  c.biomassGain,
		Events:       c.events,
	}

	if c.haveLast {
		ws.WindowEndSubstep = c.last.Substep
		ws.Year = c.last.Year
		ws.Day = c.last.Day
	}

	if c.steps > 0 {
		n := float64(c.steps)
		ws.StressMean = c.stressSum / n
		ws.NetCarbonMean = c.netSum / n
		ws.GrowthMean = c.growthSum / n
		ws.DormantFraction = float64(c.dormant) / n
	}

	if len(c.hazards) > 0 {
		sort.Float64s(c.hazards)
		var sum float64
		for _, h := range c.hazards {
			sum += h
		}
		ws.HazardMean = sum / float64(len(c.hazards))
		ws.HazardP90 = Percentile(c.hazards, 0.9)
	}

	c.reset(ws.WindowEndSubstep)
	return ws
}

func (c *Collector) reset(end int64) {
	c.windowStart = end
	c.steps = 0
	c.dormant = 0
	c.events = 0
	c.stressSum = 0
	c.netSum = 0
	c.growthSum = 0
	c.biomassGain = 0
	c.hazards = c.hazards[:0]
}
