package sim

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/config"
)

func TestSnapshotResumeIsBitIdentical(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Environment.Initial.Water = 28
		c.Environment.Initial.Stressors.Disease = true
	})
	a := New(cfg, 21)
	a.Run(50, nil)

	snap, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	b, err := Restore(cfg, &decoded)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if b.Tree() != a.Tree() {
		t.Fatal("restored tree differs")
	}

	a.Run(50, nil)
	b.Run(50, nil)
	if a.Tree() != b.Tree() {
		t.Errorf("trajectories diverged after restore:\n%+v\n%+v", a.Tree(), b.Tree())
	}
	if a.Clock() != b.Clock() || a.Substeps() != b.Substeps() {
		t.Errorf("clock or substeps diverged")
	}
}

func TestRestoreRejectsVersion(t *testing.T) {
	cfg := testConfig(t, nil)
	snap, err := New(cfg, 1).Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	snap.Version = SnapshotVersion + 1
	if _, err := Restore(cfg, snap); !errors.Is(err, ErrSnapshotVersion) {
		t.Errorf("err = %v, want ErrSnapshotVersion", err)
	}
}

func TestRestoreSwitchesSpecies(t *testing.T) {
	pine := testConfig(t, func(c *config.Config) { c.Tree.Species = "pine" })
	snap, err := New(pine, 1).Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	s, err := Restore(testConfig(t, nil), snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if s.Tree().Species != "pine" || !s.Config().Derived.Species.Evergreen {
		t.Errorf("restored species = %q", s.Tree().Species)
	}
}

func TestRestoreKeepsReconfiguration(t *testing.T) {
	cfg := testConfig(t, nil)
	s := New(cfg, 1)
	s.ApplyInput(Input{MaxAge: float(120), EnableGrowth: boolean(false)})
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	r, err := Restore(cfg, snap)
	if err != nil {
		t.Fatal(err)
	}
	if r.MortalityParams().MaxAge != 120 || r.GrowthEnabled() {
		t.Errorf("reconfiguration lost: %+v growth=%v", r.MortalityParams(), r.GrowthEnabled())
	}
}

func TestRestoreSanitizesState(t *testing.T) {
	cfg := testConfig(t, nil)
	snap, err := New(cfg, 5).Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	snap.Tree.Vitality.Health = 500
	snap.Tree.Vitality.StressLevel = -40
	snap.Tree.Vitality.DiseaseLoad = math.NaN()
	snap.Tree.Phenology.FoliageDensity = 3
	snap.Tree.Biomass.Leaves = -2
	snap.Tree.Traits.DiseaseResistance = 7
	snap.Params.HazardCap = 0
	snap.Params.MaxAge = -5
	snap.Params.SenescenceStartAge = 90
	snap.Params.FireResistance = -1
	snap.Params.WindResistance = 2
	snap.Params.WindRange = math.Inf(1)

	s, err := Restore(cfg, snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	tree := s.Tree()
	if tree.Vitality.Health != 100 || tree.Vitality.StressLevel != 0 || tree.Vitality.DiseaseLoad != 0 {
		t.Errorf("vitality not clamped: %+v", tree.Vitality)
	}
	if tree.Phenology.FoliageDensity != 1 {
		t.Errorf("foliage density = %v, want 1", tree.Phenology.FoliageDensity)
	}
	if tree.Biomass.Leaves != 0 {
		t.Errorf("leaves = %v, want 0", tree.Biomass.Leaves)
	}
	b := tree.Biomass
	if want := b.Trunk + b.Branches + b.Leaves + b.Roots; b.Total != want {
		t.Errorf("total = %v, want %v", b.Total, want)
	}
	if tree.Traits.DiseaseResistance != 1 {
		t.Errorf("disease resistance = %v, want 1", tree.Traits.DiseaseResistance)
	}

	p := s.MortalityParams()
	base := New(cfg, 5).MortalityParams()
	if p.HazardCap != base.HazardCap {
		t.Errorf("hazard cap = %v, want fallback %v", p.HazardCap, base.HazardCap)
	}
	if p.MaxAge != minMaxAge {
		t.Errorf("max age = %v, want %v", p.MaxAge, minMaxAge)
	}
	if p.SenescenceStartAge != p.MaxAge {
		t.Errorf("senescence start = %v, want capped at %v", p.SenescenceStartAge, p.MaxAge)
	}
	if p.FireResistance != 0 || p.WindResistance != 1 {
		t.Errorf("resistances = %v, %v", p.FireResistance, p.WindResistance)
	}
	if p.WindRange != base.WindRange {
		t.Errorf("wind range = %v, want fallback %v", p.WindRange, base.WindRange)
	}

	report := s.Step()
	if report.Died && report.Cause == components.CauseOldAge {
		t.Error("seedling died of old age on its first step")
	}
}

func TestRestoreRejectsInvalidAge(t *testing.T) {
	cfg := testConfig(t, nil)
	tests := []struct {
		name string
		days float64
	}{
		{"negative", -1},
		{"nan", math.NaN()},
		{"infinite", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := New(cfg, 1).Snapshot()
			if err != nil {
				t.Fatal(err)
			}
			snap.Tree.Life.DaysSinceBirth = tt.days
			if _, err := Restore(cfg, snap); !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("err = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
}
