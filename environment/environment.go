// Package environment holds the exogenous site conditions and the seasonal
// calendar that drive the tree simulation.
package environment

import "math"

// Ranges accepted for each exogenous condition. Values outside are clamped.
const (
	MinTemperature = -20.0
	MaxTemperature = 50.0
	MinPercent     = 0.0
	MaxPercent     = 100.0
)

// Stressors are the boolean site disturbances.
type Stressors struct {
	Disease   bool `json:"disease" yaml:"disease"`
	Pests     bool `json:"pests" yaml:"pests"`
	Storm     bool `json:"storm" yaml:"storm"`
	Pollution bool `json:"pollution" yaml:"pollution"`
}

// Conditions is the exogenous part of the environment. Only the input adapter
// mutates it.
type Conditions struct {
	Light       float64   `json:"light" yaml:"light"`             // 0-100
	Water       float64   `json:"water" yaml:"water"`             // 0-100
	Temperature float64   `json:"temperature" yaml:"temperature"` // °C
	Soil        float64   `json:"soil" yaml:"soil"`               // 0-100
	Wind        float64   `json:"wind" yaml:"wind"`               // 0-100
	Humidity    float64   `json:"humidity" yaml:"humidity"`       // 0-100
	Stressors   Stressors `json:"stressors" yaml:"stressors"`
}

// Clamped returns a copy with every numeric field inside its documented range.
// Non-finite values collapse to the lower bound.
func (c Conditions) Clamped() Conditions {
	c.Light = ClampPercent(c.Light)
	c.Water = ClampPercent(c.Water)
	c.Soil = ClampPercent(c.Soil)
	c.Wind = ClampPercent(c.Wind)
	c.Humidity = ClampPercent(c.Humidity)
	c.Temperature = ClampTemperature(c.Temperature)
	return c
}

// Snapshot is the immutable view of the environment read by one substep.
type Snapshot struct {
	Conditions
	DayOfYear      float64 `json:"day_of_year"`
	Year           int     `json:"year"`
	Season         Season  `json:"season"`
	SeasonProgress float64 `json:"season_progress"`
}

// NewSnapshot combines the current conditions with the calendar position.
func NewSnapshot(c Conditions, clock Clock, cal Calendar) Snapshot {
	season, progress := cal.Classify(clock.Day)
	return Snapshot{
		Conditions:     c,
		DayOfYear:      clock.Day,
		Year:           clock.Year,
		Season:         season,
		SeasonProgress: progress,
	}
}

// ClampPercent bounds v to [0, 100].
func ClampPercent(v float64) float64 {
	return clamp(v, MinPercent, MaxPercent)
}

// ClampTemperature bounds v to the supported temperature range.
func ClampTemperature(v float64) float64 {
	return clamp(v, MinTemperature, MaxTemperature)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
