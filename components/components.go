// Package components defines ECS components for the tree simulation.
package components

import "fmt"

// DeathCause attributes a death to its dominant hazard.
type DeathCause uint8

const (
	CauseNone DeathCause = iota
	CauseOldAge
	CauseWindthrow
	CauseFire
	CauseDisease
	CauseDrought
	CauseHeatStress
	CauseSenescence
	CauseStress
)

var causeLabels = [...]string{
	CauseNone:       "none",
	CauseOldAge:     "old age",
	CauseWindthrow:  "windthrow",
	CauseFire:       "fire",
	CauseDisease:    "disease",
	CauseDrought:    "drought",
	CauseHeatStress: "heat stress",
	CauseSenescence: "senescence",
	CauseStress:     "stress",
}

// String returns the display label.
func (c DeathCause) String() string {
	if int(c) < len(causeLabels) {
		return causeLabels[c]
	}
	return fmt.Sprintf("DeathCause(%d)", c)
}

// MarshalText encodes the cause as its label.
func (c DeathCause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a label produced by MarshalText.
func (c *DeathCause) UnmarshalText(b []byte) error {
	for i, l := range causeLabels {
		if l == string(b) {
			*c = DeathCause(i)
			return nil
		}
	}
	return fmt.Errorf("unknown death cause %q", b)
}

// AllCauses lists every cause other than CauseNone, in enum order.
func AllCauses() []DeathCause {
	out := make([]DeathCause, 0, len(causeLabels)-1)
	for i := 1; i < len(causeLabels); i++ {
		out = append(out, DeathCause(i))
	}
	return out
}

// Life tracks age and the terminal death event.
type Life struct {
	Age            float64    `json:"age"`              // years
	DaysSinceBirth float64    `json:"days_since_birth"` // simulated days
	Alive          bool       `json:"alive"`
	Cause          DeathCause `json:"cause"`
	DeathDay       float64    `json:"death_day"`
	DeathYear      int        `json:"death_year"`
}

// Traits are randomized once at planting.
type Traits struct {
	DiseaseResistance float64 `json:"disease_resistance"` // 0-1
	GrowthVigor       float64 `json:"growth_vigor"`       // multiplier around 1
}
