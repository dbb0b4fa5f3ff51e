// Package scenario scripts environment changes over simulated time. A script
// is a YAML list of events; each event carries input keys that are applied
// through the simulation's input adapter once the calendar reaches it.
package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/arbor/environment"
	"github.com/pthm-cable/arbor/sim"
)

// ErrEmptyEvent is returned for events that set nothing.
var ErrEmptyEvent = errors.New("event sets no inputs")

// Event is one scripted change.
type Event struct {
	Year  int            `yaml:"year"`
	Day   float64        `yaml:"day"`
	Label string         `yaml:"label,omitempty"`
	Set   map[string]any `yaml:"set"`

	input sim.Input
}

// Input returns the parsed input for the event.
func (e Event) Input() sim.Input {
	return e.input
}

// Before reports whether e is scheduled no later than the clock position.
func (e Event) Before(c environment.Clock) bool {
	if e.Year != c.Year {
		return e.Year < c.Year
	}
	return e.Day <= c.Day
}

// Script is an ordered list of events.
type Script struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Events      []Event `yaml:"events"`
}

// Parse decodes and validates a YAML script. Events are sorted by time;
// events at the same time keep their file order.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	for i := range s.Events {
		e := &s.Events[i]
		if e.Year < 0 || e.Day < 0 {
			return nil, fmt.Errorf("event %d: negative time (year %d, day %v)", i, e.Year, e.Day)
		}
		if len(e.Set) == 0 {
			return nil, fmt.Errorf("event %d: %w", i, ErrEmptyEvent)
		}
		in, warnings := sim.ParseInput(e.Set)
		if len(warnings) > 0 {
			return nil, fmt.Errorf("event %d: %s", i, strings.Join(warnings, "; "))
		}
		e.input = in
	}
	sort.SliceStable(s.Events, func(i, j int) bool {
		a, b := s.Events[i], s.Events[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Day < b.Day
	})
	return &s, nil
}

// Load reads a script from a YAML file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Player replays a script against an engine.
type Player struct {
	script *Script
	next   int
}

// NewPlayer creates a player positioned at the first event.
func NewPlayer(s *Script) *Player {
	return &Player{script: s}
}

// Remaining returns the number of events not yet applied.
func (p *Player) Remaining() int {
	return len(p.script.Events) - p.next
}

// Due pops the events scheduled at or before the clock position.
func (p *Player) Due(c environment.Clock) []Event {
	start := p.next
	for p.next < len(p.script.Events) && p.script.Events[p.next].Before(c) {
		p.next++
	}
	return p.script.Events[start:p.next]
}

// Apply applies every due event to the engine and returns the adapter's
// warnings.
func (p *Player) Apply(e *sim.Engine) []string {
	var warnings []string
	for _, ev := range p.Due(e.Sim.Clock()) {
		slog.Info("scenario event",
			"scenario", p.script.Name,
			"label", ev.Label,
			"year", ev.Year,
			"day", ev.Day,
		)
		warnings = append(warnings, e.Apply(ev.input)...)
	}
	return warnings
}

// Attach applies due events after every substep the engine's scheduler
// runs, then calls next if it is non-nil. Events due at the current clock
// are applied immediately.
func (p *Player) Attach(e *sim.Engine, next func(sim.StepReport)) {
	p.warn(p.Apply(e))
	e.Scheduler.OnStep(func(r sim.StepReport) {
		p.warn(p.Apply(e))
		if next != nil {
			next(r)
		}
	})
}

func (p *Player) warn(warnings []string) {
	for _, w := range warnings {
		slog.Warn("scenario input", "scenario", p.script.Name, "warning", w)
	}
}
