package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"github.com/pthm-cable/arbor/sim"
)

// phases lists every phase in update-chain order.
var phases = sim.PhaseIDs()

// phaseOther collects time spent in phases the registry does not know.
const phaseOther = "other"

var _ sim.PhaseTimer = (*PerfCollector)(nil)

// substepTiming is the wall time of one substep, split by phase. The last
// slot is phaseOther.
type substepTiming struct {
	total   time.Duration
	phases  []time.Duration
	skipped bool
}

// PerfCollector times the update chain over a ring of recent substeps.
// Substeps of a dead tree run no phases and are counted as skipped.
type PerfCollector struct {
	dtDays float64
	ring   []substepTiming
	next   int
	filled int

	slot       map[string]int
	cur        substepTiming
	tickStart  time.Time
	phaseStart time.Time
	active     int // slot of the running phase, -1 before the first
}

// NewPerfCollector creates a collector averaging over windowSize substeps.
// dtDays converts substep throughput into simulated days per wall second.
func NewPerfCollector(windowSize int, dtDays float64) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	p := &PerfCollector{
		dtDays: dtDays,
		ring:   make([]substepTiming, windowSize),
		slot:   make(map[string]int, len(phases)),
		active: -1,
	}
	for i, id := range phases {
		p.slot[id] = i
	}
	for i := range p.ring {
		p.ring[i].phases = make([]time.Duration, len(phases)+1)
	}
	p.cur.phases = make([]time.Duration, len(phases)+1)
	return p
}

// StartTick begins timing a new substep.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	clear(p.cur.phases)
	p.active = -1
}

// StartPhase closes the running phase and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	if i, ok := p.slot[phase]; ok {
		p.active = i
	} else {
		p.active = len(phases)
	}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.active >= 0 {
		p.cur.phases[p.active] += now.Sub(p.phaseStart)
	}
}

// EndTick finishes the substep and stores it in the ring.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)

	dst := &p.ring[p.next]
	dst.total = now.Sub(p.tickStart)
	dst.skipped = p.active < 0
	copy(dst.phases, p.cur.phases)

	p.next = (p.next + 1) % len(p.ring)
	if p.filled < len(p.ring) {
		p.filled++
	}
}

// PerfStats summarises the substeps currently in the window.
type PerfStats struct {
	Substeps int
	Skipped  int

	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	P95TickDuration time.Duration

	// Per-phase average duration and share of average substep time
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64
	DaysPerSecond  float64 // simulated days per wall-clock second
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		Substeps: p.filled,
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.filled == 0 {
		return stats
	}

	totals := make([]float64, p.filled)
	sums := make([]time.Duration, len(phases)+1)
	var sum time.Duration
	for i, s := range p.ring[:p.filled] {
		totals[i] = float64(s.total)
		sum += s.total
		if s.skipped {
			stats.Skipped++
		}
		for j, d := range s.phases {
			sums[j] += d
		}
	}
	sort.Float64s(totals)

	n := time.Duration(p.filled)
	stats.AvgTickDuration = sum / n
	stats.MinTickDuration = time.Duration(totals[0])
	stats.MaxTickDuration = time.Duration(totals[len(totals)-1])
	stats.P95TickDuration = time.Duration(Percentile(totals, 0.95))

	for j, d := range sums {
		if d == 0 {
			continue
		}
		name := phaseOther
		if j < len(phases) {
			name = phases[j]
		}
		stats.PhaseAvg[name] = d / n
		if stats.AvgTickDuration > 0 {
			stats.PhasePct[name] = float64(d/n) / float64(stats.AvgTickDuration) * 100
		}
	}

	if stats.AvgTickDuration > 0 {
		stats.TicksPerSecond = float64(time.Second) / float64(stats.AvgTickDuration)
		stats.DaysPerSecond = stats.TicksPerSecond * p.dtDays
	}
	return stats
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"substeps", s.Substeps,
		"skipped", s.Skipped,
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"p95_tick_us", s.P95TickDuration.Microseconds(),
		"days_per_sec", int(s.DaysPerSecond),
	}
	for _, phase := range phases {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("substeps", s.Substeps),
		slog.Int("skipped", s.Skipped),
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Int64("p95_tick_us", s.P95TickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
		slog.Float64("days_per_sec", s.DaysPerSecond),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd     int64   `csv:"window_end"`
	Substeps      int     `csv:"substeps"`
	Skipped       int     `csv:"skipped"`
	AvgTickUS     int64   `csv:"avg_tick_us"`
	MinTickUS     int64   `csv:"min_tick_us"`
	MaxTickUS     int64   `csv:"max_tick_us"`
	P95TickUS     int64   `csv:"p95_tick_us"`
	TicksPerSec   float64 `csv:"ticks_per_sec"`
	DaysPerSec    float64 `csv:"days_per_sec"`
	CalendarPct   float64 `csv:"calendar_pct"`
	PhenologyPct  float64 `csv:"phenology_pct"`
	PhysiologyPct float64 `csv:"physiology_pct"`
	MortalityPct  float64 `csv:"mortality_pct"`
	GrowthPct     float64 `csv:"growth_pct"`
	VitalityPct   float64 `csv:"vitality_pct"`
	ExchangePct   float64 `csv:"exchange_pct"`
}

// ToCSV flattens the stats for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		Substeps:      s.Substeps,
		Skipped:       s.Skipped,
		AvgTickUS:     s.AvgTickDuration.Microseconds(),
		MinTickUS:     s.MinTickDuration.Microseconds(),
		MaxTickUS:     s.MaxTickDuration.Microseconds(),
		P95TickUS:     s.P95TickDuration.Microseconds(),
		TicksPerSec:   s.TicksPerSecond,
		DaysPerSec:    s.DaysPerSecond,
		CalendarPct:   s.PhasePct[sim.PhaseCalendar],
		PhenologyPct:  s.PhasePct[sim.PhasePhenology],
		PhysiologyPct: s.PhasePct[sim.PhasePhysiology],
		MortalityPct:  s.PhasePct[sim.PhaseMortality],
		GrowthPct:     s.PhasePct[sim.PhaseGrowth],
		VitalityPct:   s.PhasePct[sim.PhaseVitality],
		ExchangePct:   s.PhasePct[sim.PhaseExchange],
	}
}
