package scenario

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
	"github.com/pthm-cable/arbor/sim"
)

func TestLoadSortsEvents(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "drought.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "summer-drought" {
		t.Errorf("Name = %q", s.Name)
	}
	want := []string{"planting", "rain stops", "rain returns"}
	if len(s.Events) != len(want) {
		t.Fatalf("got %d events, want %d", len(s.Events), len(want))
	}
	for i, label := range want {
		if s.Events[i].Label != label {
			t.Errorf("event %d = %q, want %q", i, s.Events[i].Label, label)
		}
	}
	in := s.Events[1].Input()
	if in.Water == nil || *in.Water != 10 {
		t.Errorf("rain stops water = %v", in.Water)
	}
	if in.Speed != nil {
		t.Error("unset keys must stay nil")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "events: [year: 1"},
		{"negative day", "events:\n  - day: -1\n    set: {water: 10}\n"},
		{"negative year", "events:\n  - year: -2\n    set: {water: 10}\n"},
		{"unknown key", "events:\n  - day: 5\n    set: {watr: 10}\n"},
		{"wrong type", "events:\n  - day: 5\n    set: {storm: 3}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := Parse([]byte("events:\n  - day: 5\n"))
	if !errors.Is(err, ErrEmptyEvent) {
		t.Errorf("empty set error = %v, want ErrEmptyEvent", err)
	}
}

func TestEventBefore(t *testing.T) {
	tests := []struct {
		ev    Event
		clock environment.Clock
		want  bool
	}{
		{Event{Year: 0, Day: 10}, environment.Clock{Year: 0, Day: 9.9}, false},
		{Event{Year: 0, Day: 10}, environment.Clock{Year: 0, Day: 10}, true},
		{Event{Year: 1, Day: 0}, environment.Clock{Year: 0, Day: 364}, false},
		{Event{Year: 0, Day: 300}, environment.Clock{Year: 1, Day: 0}, true},
	}
	for _, tt := range tests {
		if got := tt.ev.Before(tt.clock); got != tt.want {
			t.Errorf("%+v.Before(%+v) = %v, want %v", tt.ev, tt.clock, got, tt.want)
		}
	}
}

func TestPlayerDue(t *testing.T) {
	s, err := Parse([]byte(`
events:
  - {day: 1, set: {water: 50}}
  - {day: 2, set: {water: 40}}
  - {day: 2, set: {water: 30}}
  - {year: 1, day: 0, set: {water: 20}}
`))
	if err != nil {
		t.Fatal(err)
	}
	p := NewPlayer(s)

	if got := p.Due(environment.Clock{Day: 0.5}); len(got) != 0 {
		t.Errorf("nothing due yet, got %d", len(got))
	}
	if got := p.Due(environment.Clock{Day: 2}); len(got) != 3 {
		t.Errorf("got %d due events at day 2, want 3", len(got))
	}
	if got := p.Due(environment.Clock{Day: 2}); len(got) != 0 {
		t.Error("events must only be returned once")
	}
	if p.Remaining() != 1 {
		t.Errorf("Remaining = %d, want 1", p.Remaining())
	}
}

func TestPlayerDrivesEngine(t *testing.T) {
	cfg := config.Default()
	s, err := Parse([]byte(`
name: dry-spell
events:
  - {day: 0, set: {speed: 2}}
  - {day: 3, set: {water: 12, storm: true}}
`))
	if err != nil {
		t.Fatal(err)
	}

	e := sim.NewEngine(sim.New(cfg, 1))
	p := NewPlayer(s)
	var steps int
	p.Attach(e, func(sim.StepReport) { steps++ })

	if e.Scheduler.Speed() != 2 {
		t.Fatalf("speed = %v, want 2 after attach", e.Scheduler.Speed())
	}

	// Two wall-clock seconds at double speed cover four simulated days.
	for i := 0; i < 120; i++ {
		e.Advance(1.0 / 60)
	}
	if steps == 0 {
		t.Fatal("chained step callback never ran")
	}
	env := e.Sim.Environment()
	if env.Water != 12 || !env.Stressors.Storm {
		t.Errorf("water/storm = %v/%v, want 12/true", env.Water, env.Stressors.Storm)
	}
	if p.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", p.Remaining())
	}
}
