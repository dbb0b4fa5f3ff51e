package sim

import (
	"testing"

	"github.com/pthm-cable/arbor/components"
)

func TestLifeStage(t *testing.T) {
	tests := []struct {
		age   float64
		alive bool
		want  string
	}{
		{0.5, true, "Seedling"},
		{5, true, "Sapling"},
		{20, true, "Young"},
		{100, true, "Mature"},
		{150, true, "Ancient"},
		{100, false, "Dead"},
	}
	for _, tt := range tests {
		tree := TreeState{Life: components.Life{Age: tt.age, Alive: tt.alive}}
		if got := lifeStage(tree, 150); got != tt.want {
			t.Errorf("lifeStage(%v, alive=%v) = %q, want %q", tt.age, tt.alive, got, tt.want)
		}
	}
}

func TestStatusPriority(t *testing.T) {
	alive := components.Life{Alive: true}
	tests := []struct {
		name string
		tree TreeState
		want string
	}{
		{"dead", TreeState{Life: components.Life{Cause: components.CauseFire}}, "Dead (fire)"},
		{"dormant beats dying", TreeState{Life: alive,
			Phenology: components.Phenology{Dormant: true},
			Vitality:  components.Vitality{Health: 10}}, "Dormant"},
		{"dying", TreeState{Life: alive, Vitality: components.Vitality{Health: 10, Stress: 90}}, "Dying"},
		{"stressed", TreeState{Life: alive, Vitality: components.Vitality{Health: 90, Stress: 40}}, "Stressed"},
		{"diseased", TreeState{Life: alive, Vitality: components.Vitality{Health: 90, DiseaseLoad: 30}}, "Diseased"},
		{"flowering", TreeState{Life: alive, Vitality: components.Vitality{Health: 90},
			Phenology: components.Phenology{Flowering: true, BudBurst: true}}, "Flowering"},
		{"budding", TreeState{Life: alive, Vitality: components.Vitality{Health: 90},
			Phenology: components.Phenology{BudBurst: true}}, "Budding"},
		{"senescing", TreeState{Life: alive, Vitality: components.Vitality{Health: 90},
			Phenology: components.Phenology{LeafSenescence: true}}, "Senescing"},
		{"thriving", TreeState{Life: alive, Vitality: components.Vitality{Health: 80}}, "Thriving"},
		{"healthy", TreeState{Life: alive, Vitality: components.Vitality{Health: 60}}, "Healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status(tt.tree); got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	s := New(testConfig(t, nil), 1)
	d := s.Display()
	if d.LifeStage != "Seedling" || !d.Alive || d.Season != "Spring" {
		t.Errorf("unexpected display: %+v", d)
	}
	if d.DeathCause != "" {
		t.Errorf("living tree has death cause %q", d.DeathCause)
	}
}
