// Package telemetry provides tree trajectory tracking, event logs, cohort
// statistics and snapshot files.
package telemetry

import (
	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/sim"
)

// EventType identifies telemetry events.
type EventType uint8

const (
	EventBudBurst EventType = iota
	EventFlowering
	EventLeafSenescence
	EventDormancyStart
	EventDormancyEnd
	EventSeasonChange
	EventDeath
)

var eventNames = [...]string{
	EventBudBurst:       "bud_burst",
	EventFlowering:      "flowering",
	EventLeafSenescence: "leaf_senescence",
	EventDormancyStart:  "dormancy_start",
	EventDormancyEnd:    "dormancy_end",
	EventSeasonChange:   "season_change",
	EventDeath:          "death",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (t EventType) MarshalCSV() (string, error) {
	return t.String(), nil
}

// Event represents a single telemetry event.
type Event struct {
	Type    EventType `csv:"type"`
	Substep int64     `csv:"substep"`
	Year    int       `csv:"year"`
	Day     float64   `csv:"day"`
	Season  string    `csv:"season"`
	Age     float64   `csv:"age"`
	Detail  string    `csv:"detail"`
}

// NewDeathEvent creates a death event.
func NewDeathEvent(r sim.StepReport, age float64) Event {
	return Event{
		Type:    EventDeath,
		Substep: r.Substep,
		Year:    r.Year,
		Day:     r.Day,
		Season:  r.Season.String(),
		Age:     age,
		Detail:  r.Cause.String(),
	}
}

// DetectEvents compares consecutive phenology states and reports the
// transitions that happened on step r.
func DetectEvents(prev components.Phenology, r sim.StepReport, age float64) []Event {
	if r.Skipped {
		return nil
	}
	var events []Event
	add := func(t EventType, detail string) {
		events = append(events, Event{
			Type:    t,
			Substep: r.Substep,
			Year:    r.Year,
			Day:     r.Day,
			Season:  r.Season.String(),
			Age:     age,
			Detail:  detail,
		})
	}

	if r.Died {
		events = append(events, NewDeathEvent(r, age))
		return events
	}

	cur := r.Phenology
	if cur.Season != prev.Season {
		add(EventSeasonChange, prev.Season.String()+"->"+cur.Season.String())
	}
	if cur.Dormant && !prev.Dormant {
		add(EventDormancyStart, "")
	}
	if !cur.Dormant && prev.Dormant {
		add(EventDormancyEnd, "")
	}
	if cur.BudBurst && !prev.BudBurst {
		add(EventBudBurst, "")
	}
	if cur.Flowering && !prev.Flowering {
		add(EventFlowering, "")
	}
	if cur.LeafSenescence && !prev.LeafSenescence {
		add(EventLeafSenescence, "")
	}
	return events
}
