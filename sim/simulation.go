// Package sim owns a single tree simulation: its ECS world, random stream and
// environment, the fixed-timestep scheduler that drives it, and the input and
// display adapters used by hosts.
package sim

import (
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
	"github.com/pthm-cable/arbor/rng"
	"github.com/pthm-cable/arbor/systems"
)

// Phase names for the update chain.
const (
	PhaseCalendar   = "calendar"
	PhasePhenology  = "phenology"
	PhasePhysiology = "physiology"
	PhaseMortality  = "mortality"
	PhaseGrowth     = "growth"
	PhaseVitality   = "vitality"
	PhaseExchange   = "exchange"
)

// PhaseTimer observes the update chain. telemetry.PerfCollector implements it.
type PhaseTimer interface {
	StartTick()
	StartPhase(phase string)
	EndTick()
}

// StepReport summarizes one substep.
type StepReport struct {
	Substep          int64                    `json:"substep"`
	Skipped          bool                     `json:"skipped"`
	Day              float64                  `json:"day"`
	Year             int                      `json:"year"`
	Season           environment.Season       `json:"season"`
	Phenology        components.Phenology     `json:"phenology"`
	Balance          systems.CarbonBalance    `json:"balance"`
	Mortality        systems.MortalityOutcome `json:"mortality"`
	Died             bool                     `json:"died"`
	Cause            components.DeathCause    `json:"cause"`
	BiomassIncrement float64                  `json:"biomass_increment"`
}

// TreeState is a read-only copy of every tree component.
type TreeState struct {
	Species    string                `json:"species"`
	Life       components.Life       `json:"life"`
	Morphology components.Morphology `json:"morphology"`
	Biomass    components.Biomass    `json:"biomass"`
	Vitality   components.Vitality   `json:"vitality"`
	Phenology  components.Phenology  `json:"phenology"`
	Exchange   components.Exchange   `json:"exchange"`
	Traits     components.Traits     `json:"traits"`
}

// Simulation advances one tree through time. It is not safe for concurrent
// use; independent simulations may run on separate goroutines.
type Simulation struct {
	cfg   *config.Config
	world *ecs.World
	rng   *rng.Source

	treeMap *ecs.Map7[
		components.Life,
		components.Morphology,
		components.Biomass,
		components.Vitality,
		components.Phenology,
		components.Exchange,
		components.Traits,
	]
	treeFilter *ecs.Filter7[
		components.Life,
		components.Morphology,
		components.Biomass,
		components.Vitality,
		components.Phenology,
		components.Exchange,
		components.Traits,
	]
	tree ecs.Entity

	calendar   environment.Calendar
	clock      environment.Clock
	conditions environment.Conditions

	phenology  *systems.Phenology
	physiology *systems.Physiology
	vitality   *systems.Vitality
	growth     *systems.Growth
	mortality  *systems.Mortality

	enableGrowth bool
	dtDays       float64
	daysPerYear  float64
	substeps     int64
	timer        PhaseTimer
}

// New plants a sapling of the configured species. Traits are the first draws
// from the seeded stream.
func New(cfg *config.Config, seed int64) *Simulation {
	s := newSimulation(cfg, rng.New(seed))
	start := math.Mod(math.Max(0, cfg.Calendar.StartDay), s.daysPerYear)
	s.clock = environment.Clock{Day: start}
	s.conditions = cfg.Environment.Initial.Clamped()
	s.enableGrowth = cfg.Tree.EnableGrowth
	s.plant(s.initialTree())
	return s
}

func newSimulation(cfg *config.Config, src *rng.Source) *Simulation {
	world := ecs.NewWorld()
	return &Simulation{
		cfg:   cfg,
		world: world,
		rng:   src,
		treeMap: ecs.NewMap7[
			components.Life,
			components.Morphology,
			components.Biomass,
			components.Vitality,
			components.Phenology,
			components.Exchange,
			components.Traits,
		](world),
		treeFilter: ecs.NewFilter7[
			components.Life,
			components.Morphology,
			components.Biomass,
			components.Vitality,
			components.Phenology,
			components.Exchange,
			components.Traits,
		](world),
		calendar:    cfg.Derived.Calendar,
		phenology:   systems.NewPhenology(cfg),
		physiology:  systems.NewPhysiology(cfg),
		vitality:    systems.NewVitality(cfg),
		growth:      systems.NewGrowth(cfg),
		mortality:   systems.NewMortality(cfg),
		dtDays:      cfg.Derived.DTDays,
		daysPerYear: float64(cfg.Derived.Calendar.DaysPerYear()),
	}
}

// initialTree builds the sapling state, drawing traits from the stream.
func (s *Simulation) initialTree() TreeState {
	t := s.cfg.Tree
	traits := components.Traits{
		DiseaseResistance: s.rng.Uniform(t.ResistanceMin, t.ResistanceMax),
		GrowthVigor:       math.Max(t.VigorMin, math.Min(t.VigorMax, s.rng.Normal(1, t.VigorSigma))),
	}

	morph := components.Morphology{
		Height:     t.Height,
		DBH:        t.DBH,
		RootDepth:  t.RootDepth,
		RootSpread: t.RootSpread,
	}
	morph.CrownRadius = morph.Height * s.cfg.Growth.CrownRadiusRatio * (0.6 + 0.4*t.Health/100)
	morph.CrownHeight = morph.Height * s.cfg.Growth.CrownHeightRatio * (0.7 + 0.3*t.Health/100)

	bio := components.Biomass{
		Trunk:    t.Trunk,
		Branches: t.Branches,
		Leaves:   t.Leaves,
		Roots:    t.Roots,
		Sapwood:  t.Trunk,
	}
	bio.Recompute()

	env := s.Environment()
	vit := components.Vitality{
		Health:       t.Health,
		Vigor:        t.Vigor,
		WaterContent: t.WaterContent,
		Chlorophyll:  t.Chlorophyll,
	}
	var ph components.Phenology
	s.phenology.Update(&ph, env, 0, vit.Health)
	ph.FoliageDensity = s.vitality.FoliageTarget(env, vit.Health, 0)
	ph.FoliageOpacity = math.Sqrt(ph.FoliageDensity)

	return TreeState{
		Species:    s.cfg.Derived.SpeciesName,
		Life:       components.Life{Alive: true},
		Morphology: morph,
		Biomass:    bio,
		Vitality:   vit,
		Phenology:  ph,
		Traits:     traits,
	}
}

func (s *Simulation) plant(t TreeState) {
	s.tree = s.treeMap.NewEntity(&t.Life, &t.Morphology, &t.Biomass, &t.Vitality, &t.Phenology, &t.Exchange, &t.Traits)
}

// SetPhaseTimer installs an optional observer of the update chain.
func (s *Simulation) SetPhaseTimer(t PhaseTimer) {
	s.timer = t
}

func (s *Simulation) phase(name string) {
	if s.timer != nil {
		s.timer.StartPhase(name)
	}
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() *config.Config {
	return s.cfg
}

// Seed returns the seed of the random stream.
func (s *Simulation) Seed() int64 {
	return s.rng.Seed()
}

// Substeps returns the number of substeps executed on a living tree.
func (s *Simulation) Substeps() int64 {
	return s.substeps
}

// DTDays returns the simulated days per substep.
func (s *Simulation) DTDays() float64 {
	return s.dtDays
}

// Clock returns the calendar position.
func (s *Simulation) Clock() environment.Clock {
	return s.clock
}

// Conditions returns the current exogenous conditions.
func (s *Simulation) Conditions() environment.Conditions {
	return s.conditions
}

// MortalityParams returns the active hazard parameters.
func (s *Simulation) MortalityParams() systems.MortalityParams {
	return s.mortality.Params
}

// GrowthEnabled reports whether the growth allocator runs.
func (s *Simulation) GrowthEnabled() bool {
	return s.enableGrowth
}

// Environment returns the snapshot the next substep would read, before the
// calendar advances.
func (s *Simulation) Environment() environment.Snapshot {
	return environment.NewSnapshot(s.conditions, s.clock, s.calendar)
}

// Tree returns a copy of the tree state.
func (s *Simulation) Tree() TreeState {
	var out TreeState
	query := s.treeFilter.Query()
	for query.Next() {
		life, morph, bio, vit, ph, ex, traits := query.Get()
		out = TreeState{
			Species:    s.cfg.Derived.SpeciesName,
			Life:       *life,
			Morphology: *morph,
			Biomass:    *bio,
			Vitality:   *vit,
			Phenology:  *ph,
			Exchange:   *ex,
			Traits:     *traits,
		}
	}
	return out
}

// Alive reports whether the tree is still alive.
func (s *Simulation) Alive() bool {
	return s.Tree().Life.Alive
}

// Step executes one fixed substep. Stepping a dead tree is a no-op that
// returns a report with Skipped set.
func (s *Simulation) Step() StepReport {
	report := StepReport{Skipped: true, Substep: s.substeps, Day: s.clock.Day, Year: s.clock.Year}

	if s.timer != nil {
		s.timer.StartTick()
		defer s.timer.EndTick()
	}

	query := s.treeFilter.Query()
	for query.Next() {
		life, morph, bio, vit, ph, ex, traits := query.Get()
		if !life.Alive {
			continue
		}
		report = s.stepTree(life, morph, bio, vit, ph, ex, traits)
	}
	return report
}

func (s *Simulation) stepTree(
	life *components.Life,
	morph *components.Morphology,
	bio *components.Biomass,
	vit *components.Vitality,
	ph *components.Phenology,
	ex *components.Exchange,
	traits *components.Traits,
) StepReport {
	s.phase(PhaseCalendar)
	s.clock.Advance(s.dtDays, s.calendar.DaysPerYear())
	life.DaysSinceBirth += s.dtDays
	life.Age = life.DaysSinceBirth / s.daysPerYear
	s.substeps++

	env := environment.NewSnapshot(s.conditions, s.clock, s.calendar)
	report := StepReport{
		Substep: s.substeps,
		Day:     s.clock.Day,
		Year:    s.clock.Year,
		Season:  env.Season,
	}

	s.phase(PhasePhenology)
	s.phenology.Update(ph, env, life.Age, vit.Health)

	s.phase(PhasePhysiology)
	bal := s.physiology.Evaluate(env, ph.Dormant, bio.Total)
	report.Balance = bal

	s.phase(PhaseMortality)
	outcome := s.mortality.Evaluate(systems.MortalityInput{
		Age:               life.Age,
		Height:            morph.Height,
		Health:            vit.Health,
		StressLevel:       vit.StressLevel,
		DiseaseLoad:       vit.DiseaseLoad,
		DiseaseResistance: traits.DiseaseResistance,
	}, env, s.dtDays/s.daysPerYear, s.rng.Float64)
	report.Mortality = outcome

	if outcome.Died {
		life.Alive = false
		life.Cause = outcome.Cause
		life.DeathDay = s.clock.Day
		life.DeathYear = s.clock.Year
		vit.Stress = bal.Stress
		report.Died = true
		report.Cause = outcome.Cause
		report.Phenology = *ph
		slog.Debug("tree died",
			"cause", outcome.Cause.String(),
			"age", life.Age,
			"year", s.clock.Year,
			"day", s.clock.Day,
			"hazard", outcome.Hazard,
		)
		return report
	}

	if s.enableGrowth {
		s.phase(PhaseGrowth)
		report.BiomassIncrement = s.growth.Update(morph, bio, ex, *vit, *life, *traits, env, bal, ph.Dormant, s.dtDays)
	}

	s.phase(PhaseVitality)
	noise := s.rng.Normal(0, 1)
	s.vitality.Update(vit, ph, env, bal, *traits, noise, s.dtDays)

	s.phase(PhaseExchange)
	systems.UpdateExchange(ex, bal, bio.Leaves, ph.Dormant, env, s.cfg.Growth.TranspirationPerLeaf, s.dtDays)

	report.Phenology = *ph
	return report
}

// Run steps the simulation until days have elapsed or the tree dies, and
// returns the number of substeps executed.
func (s *Simulation) Run(days float64, observe func(StepReport)) int {
	n := int(math.Ceil(days/s.dtDays - 1e-9))
	for i := 0; i < n; i++ {
		r := s.Step()
		if r.Skipped {
			return i
		}
		if observe != nil {
			observe(r)
		}
		if r.Died {
			return i + 1
		}
	}
	return n
}
