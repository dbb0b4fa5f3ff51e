package sim

import (
	"math"
	"testing"

	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
)

const (
	substepsPer166Days = 10000
	substepsPerYear    = 21900
)

func TestNewPlantsSapling(t *testing.T) {
	s := New(testConfig(t, nil), 1)
	tree := s.Tree()

	if !tree.Life.Alive || tree.Life.Age != 0 {
		t.Errorf("unexpected life: %+v", tree.Life)
	}
	if tree.Species != "oak" {
		t.Errorf("species = %q, want oak", tree.Species)
	}
	if tree.Morphology.Height != 0.5 || tree.Vitality.Health != 100 {
		t.Errorf("unexpected sapling: %+v %+v", tree.Morphology, tree.Vitality)
	}
	r := tree.Traits.DiseaseResistance
	if r < 0.3 || r >= 0.7 {
		t.Errorf("disease resistance %v outside [0.3, 0.7)", r)
	}
	if v := tree.Traits.GrowthVigor; v < 0.85 || v > 1.15 {
		t.Errorf("growth vigor %v outside [0.85, 1.15]", v)
	}
	if s.Environment().Season != environment.Spring {
		t.Errorf("start season = %v, want Spring", s.Environment().Season)
	}
}

func TestDeterminism(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Environment.Initial.Water = 25
		c.Environment.Initial.Wind = 70
	})
	a := New(cfg, 99)
	b := New(cfg, 99)

	for i := 0; i < 5000; i++ {
		ra, rb := a.Step(), b.Step()
		if ra.Died != rb.Died || ra.Cause != rb.Cause {
			t.Fatalf("reports diverged at substep %d", i)
		}
	}
	if a.Tree() != b.Tree() {
		t.Errorf("same seed produced different trees:\n%+v\n%+v", a.Tree(), b.Tree())
	}

	c := New(cfg, 100)
	c.Run(5000.0/60, nil)
	if c.Tree() == a.Tree() {
		t.Error("different seeds produced identical trees")
	}
}

func TestStateInvariants(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Mortality.Enabled = false
		c.Environment.Initial.Water = 95
		c.Environment.Initial.Temperature = 36
		c.Environment.Initial.Stressors.Disease = true
	})
	s := New(cfg, 3)

	for i := 0; i < 20000; i++ {
		s.Step()
		tree := s.Tree()
		b := tree.Biomass
		if math.Abs(b.Total-(b.Trunk+b.Branches+b.Leaves+b.Roots)) > 1e-9 {
			t.Fatalf("substep %d: total %v != compartments", i, b.Total)
		}
		if math.Abs(b.Heartwood+b.Sapwood-b.Trunk) > 1e-9 {
			t.Fatalf("substep %d: heartwood+sapwood != trunk", i)
		}
		v := tree.Vitality
		for _, x := range []float64{v.Health, v.Vigor, v.WaterContent, v.StressLevel, v.DiseaseLoad, v.Chlorophyll, v.Stress} {
			if x < 0 || x > 100 || math.IsNaN(x) {
				t.Fatalf("substep %d: vitality out of range: %+v", i, v)
			}
		}
	}
}

func TestDroughtScenario(t *testing.T) {
	drought := func(c *config.Config) {
		c.Environment.Initial.Water = 10
		c.Environment.Initial.Temperature = 20
		c.Environment.Initial.Stressors.Storm = false
	}

	t.Run("stress and health", func(t *testing.T) {
		cfg := testConfig(t, func(c *config.Config) {
			drought(c)
			c.Mortality.Enabled = false
		})
		s := New(cfg, 11)
		prev := s.Tree().Vitality.StressLevel
		for i := 0; i < substepsPer166Days; i++ {
			r := s.Step()
			if r.Balance.GrowthFactor != 0 {
				t.Fatalf("substep %d: ngf = %v under drought", i, r.Balance.GrowthFactor)
			}
			level := s.Tree().Vitality.StressLevel
			if level < prev-1e-12 {
				t.Fatalf("substep %d: stress level fell from %v to %v", i, prev, level)
			}
			prev = level
		}
		if math.Abs(prev-4) > 0.01 {
			t.Errorf("stress level plateau = %v, want ~4", prev)
		}
		if h := s.Tree().Vitality.Health; h >= 100 {
			t.Errorf("health = %v, want below initial 100", h)
		}
	})

	t.Run("deaths", func(t *testing.T) {
		cfg := testConfig(t, drought)
		deaths := map[components.DeathCause]int{}
		for seed := int64(1); seed <= 20; seed++ {
			s := New(cfg, seed)
			s.Run(substepsPer166Days*s.DTDays(), nil)
			if tree := s.Tree(); !tree.Life.Alive {
				deaths[tree.Life.Cause]++
			}
		}
		if deaths[components.CauseDrought] == 0 {
			t.Errorf("no drought deaths across 20 seeds: %v", deaths)
		}
		if deaths[components.CauseWindthrow] != 0 {
			t.Errorf("windthrow deaths with calm wind: %v", deaths)
		}
		for cause, n := range deaths {
			if cause != components.CauseDrought {
				t.Errorf("unexpected %d deaths from %v", n, cause)
			}
		}
	})
}

func TestGoodConditionsYear(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Mortality.Enabled = false
		c.Environment.Initial.Water = 70
		c.Environment.Initial.Temperature = 20
		c.Environment.Initial.Light = 80
	})
	s := New(cfg, 5)
	start := s.Tree()

	prevHeight := start.Morphology.Height
	for i := 0; i < substepsPerYear; i++ {
		s.Step()
		h := s.Tree().Morphology.Height
		if h < prevHeight {
			t.Fatalf("substep %d: height shrank", i)
		}
		prevHeight = h
	}

	end := s.Tree()
	if end.Morphology.Height <= start.Morphology.Height {
		t.Errorf("height %v did not increase from %v", end.Morphology.Height, start.Morphology.Height)
	}
	if end.Biomass.Total <= start.Biomass.Total {
		t.Errorf("biomass %v did not increase from %v", end.Biomass.Total, start.Biomass.Total)
	}
	if end.Morphology.DBH <= start.Morphology.DBH {
		t.Errorf("dbh did not increase")
	}
	if end.Vitality.Health < 95 {
		t.Errorf("health = %v, want near 100", end.Vitality.Health)
	}
	if end.Exchange.CO2Absorbed <= 0 || end.Exchange.CarbonStored <= 0 || end.Exchange.WaterTranspired <= 0 {
		t.Errorf("exchange totals not accumulated: %+v", end.Exchange)
	}
	if math.Abs(end.Life.Age-1) > 1e-6 {
		t.Errorf("age = %v, want 1 year", end.Life.Age)
	}
	clock := s.Clock()
	if elapsed := float64(clock.Year)*365 + clock.Day; math.Abs(elapsed-365) > 1e-6 {
		t.Errorf("clock elapsed %v days, want 365", elapsed)
	}
}

func TestWinterDeciduousDormant(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Calendar.StartDay = 300
		c.Environment.Initial.Temperature = 20
	})
	s := New(cfg, 8)

	r := s.Step()
	if r.Season != environment.Winter {
		t.Fatalf("season = %v, want Winter", r.Season)
	}
	if !r.Phenology.Dormant {
		t.Error("deciduous tree not dormant in Winter")
	}
	if r.Balance.GrowthFactor != 0 {
		t.Errorf("ngf = %v, want exactly 0", r.Balance.GrowthFactor)
	}
	if r.BiomassIncrement != 0 {
		t.Errorf("biomass increment = %v, want 0", r.BiomassIncrement)
	}
}

func TestOldAgeDeathIsDeterministic(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		cfg := testConfig(t, nil)
		s := New(cfg, seed)
		snap, err := s.Snapshot()
		if err != nil {
			t.Fatal(err)
		}
		maxAge := cfg.Mortality.MaxAge
		snap.Tree.Life.DaysSinceBirth = maxAge*365 - s.DTDays()
		snap.Tree.Life.Age = snap.Tree.Life.DaysSinceBirth / 365

		old, err := Restore(cfg, snap)
		if err != nil {
			t.Fatal(err)
		}
		r := old.Step()
		if !r.Died || r.Cause != components.CauseOldAge {
			t.Fatalf("seed %d: report = %+v, want old age death", seed, r)
		}
		if r.Mortality.Sampled {
			t.Errorf("seed %d: old age consumed a random draw", seed)
		}
		if status := old.Status(); status != "Dead (old age)" {
			t.Errorf("status = %q", status)
		}
	}
}

func TestDeadTreeIsNoOp(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.Mortality.MaxAge = 0.01; c.Mortality.SenescenceStartAge = 0 })
	s := New(cfg, 4)
	s.Run(10, nil)
	if s.Alive() {
		t.Fatal("tree should have died of old age")
	}

	before := s.Tree()
	clock := s.Clock()
	substeps := s.Substeps()
	r := s.Step()
	if !r.Skipped {
		t.Error("step on dead tree not marked skipped")
	}
	if s.Tree() != before || s.Clock() != clock || s.Substeps() != substeps {
		t.Error("step mutated a dead tree")
	}
}

func TestGrowthDisabled(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Tree.EnableGrowth = false
		c.Mortality.Enabled = false
	})
	s := New(cfg, 2)
	before := s.Tree().Morphology
	s.Run(30, nil)
	if s.Tree().Morphology != before {
		t.Error("morphology changed with growth disabled")
	}
}

func TestRunStopsAtDeath(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.Mortality.MaxAge = 0.01; c.Mortality.SenescenceStartAge = 0 })
	s := New(cfg, 4)
	var last StepReport
	n := s.Run(100, func(r StepReport) { last = r })
	if !last.Died || n >= int(100/s.DTDays()) {
		t.Errorf("run did not stop at death: n=%d last=%+v", n, last)
	}
}

type recordingTimer struct {
	ticks  int
	phases map[string]int
}

func (r *recordingTimer) StartTick()          { r.ticks++ }
func (r *recordingTimer) StartPhase(p string) { r.phases[p]++ }
func (r *recordingTimer) EndTick()            {}

func TestPhaseTimerObservesChain(t *testing.T) {
	s := New(testConfig(t, func(c *config.Config) { c.Mortality.Enabled = false }), 1)
	timer := &recordingTimer{phases: map[string]int{}}
	s.SetPhaseTimer(timer)
	s.Step()
	s.Step()

	if timer.ticks != 2 {
		t.Errorf("ticks = %d, want 2", timer.ticks)
	}
	for _, p := range []string{PhaseCalendar, PhasePhenology, PhasePhysiology, PhaseMortality, PhaseGrowth, PhaseVitality, PhaseExchange} {
		if timer.phases[p] != 2 {
			t.Errorf("phase %s observed %d times, want 2", p, timer.phases[p])
		}
	}
}
