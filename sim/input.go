package sim

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
)

// Input is a partial update from the host. Nil fields keep their current value.
type Input struct {
	Water       *float64 `json:"water,omitempty" yaml:"water,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Light       *float64 `json:"light,omitempty" yaml:"light,omitempty"`
	Soil        *float64 `json:"soil,omitempty" yaml:"soil,omitempty"`
	Wind        *float64 `json:"wind,omitempty" yaml:"wind,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty" yaml:"humidity,omitempty"`

	Disease   *bool `json:"disease,omitempty" yaml:"disease,omitempty"`
	Pests     *bool `json:"pests,omitempty" yaml:"pests,omitempty"`
	Storm     *bool `json:"storm,omitempty" yaml:"storm,omitempty"`
	Pollution *bool `json:"pollution,omitempty" yaml:"pollution,omitempty"`

	DroughtThreshold   *float64 `json:"drought_threshold,omitempty" yaml:"drought_threshold,omitempty"`
	HeatStressTemp     *float64 `json:"heat_stress_temp,omitempty" yaml:"heat_stress_temp,omitempty"`
	DiseaseRate        *float64 `json:"disease_rate,omitempty" yaml:"disease_rate,omitempty"`
	StormFrequency     *float64 `json:"storm_frequency,omitempty" yaml:"storm_frequency,omitempty"`
	MaxAge             *float64 `json:"max_age,omitempty" yaml:"max_age,omitempty"`
	SenescenceStartAge *float64 `json:"senescence_start_age,omitempty" yaml:"senescence_start_age,omitempty"`
	BaseMortalityRate  *float64 `json:"base_mortality_rate,omitempty" yaml:"base_mortality_rate,omitempty"`
	EnableMortality    *bool    `json:"enable_mortality,omitempty" yaml:"enable_mortality,omitempty"`
	EnableGrowth       *bool    `json:"enable_growth,omitempty" yaml:"enable_growth,omitempty"`

	Speed *float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// Documented input ranges.
const (
	minDroughtThreshold = 1.0
	maxRate             = 10.0
	maxBaseMortality    = 5.0
	minMaxAge           = 1.0
	maxMaxAge           = 5000.0
)

type inputField struct {
	number func(in *Input, v float64)
	flag   func(in *Input, v bool)
}

func num(set func(in *Input, v *float64)) inputField {
	return inputField{number: func(in *Input, v float64) { set(in, &v) }}
}

func flag(set func(in *Input, v *bool)) inputField {
	return inputField{flag: func(in *Input, v bool) { set(in, &v) }}
}

var inputFields = map[string]inputField{
	"water":                num(func(in *Input, v *float64) { in.Water = v }),
	"temperature":          num(func(in *Input, v *float64) { in.Temperature = v }),
	"light":                num(func(in *Input, v *float64) { in.Light = v }),
	"soil":                 num(func(in *Input, v *float64) { in.Soil = v }),
	"wind":                 num(func(in *Input, v *float64) { in.Wind = v }),
	"humidity":             num(func(in *Input, v *float64) { in.Humidity = v }),
	"disease":              flag(func(in *Input, v *bool) { in.Disease = v }),
	"pests":                flag(func(in *Input, v *bool) { in.Pests = v }),
	"storm":                flag(func(in *Input, v *bool) { in.Storm = v }),
	"pollution":            flag(func(in *Input, v *bool) { in.Pollution = v }),
	"drought_threshold":    num(func(in *Input, v *float64) { in.DroughtThreshold = v }),
	"heat_stress_temp":     num(func(in *Input, v *float64) { in.HeatStressTemp = v }),
	"disease_rate":         num(func(in *Input, v *float64) { in.DiseaseRate = v }),
	"storm_frequency":      num(func(in *Input, v *float64) { in.StormFrequency = v }),
	"max_age":              num(func(in *Input, v *float64) { in.MaxAge = v }),
	"senescence_start_age": num(func(in *Input, v *float64) { in.SenescenceStartAge = v }),
	"base_mortality_rate":  num(func(in *Input, v *float64) { in.BaseMortalityRate = v }),
	"enable_mortality":     flag(func(in *Input, v *bool) { in.EnableMortality = v }),
	"enable_growth":        flag(func(in *Input, v *bool) { in.EnableGrowth = v }),
	"speed":                num(func(in *Input, v *float64) { in.Speed = v }),
}

// InputKeys returns every accepted key in sorted order.
func InputKeys() []string {
	keys := make([]string, 0, len(inputFields))
	for k := range inputFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseInput converts loosely typed key-value pairs (decoded JSON or YAML)
// into an Input. Unknown keys and mistyped values produce warnings.
func ParseInput(raw map[string]any) (Input, []string) {
	var in Input
	var warnings []string

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		field, ok := inputFields[key]
		if !ok {
			if guess, ok := config.Suggest(key, InputKeys()); ok {
				warnings = append(warnings, fmt.Sprintf("unknown input %q (did you mean %q?)", key, guess))
			} else {
				warnings = append(warnings, fmt.Sprintf("unknown input %q", key))
			}
			continue
		}

		if field.flag != nil {
			b, ok := value.(bool)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("input %q expects a boolean, got %T", key, value))
				continue
			}
			field.flag(&in, b)
			continue
		}

		f, ok := toFloat(value)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("input %q expects a number, got %T", key, value))
			continue
		}
		field.number(&in, f)
	}
	return in, warnings
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

// ApplyInput writes the present fields of in, clamping each to its range.
// Non-finite values are ignored with a warning. The speed field belongs to the
// scheduler and is ignored here.
func (s *Simulation) ApplyInput(in Input) []string {
	var warnings []string
	set := func(key string, dst *float64, src *float64, lo, hi float64) bool {
		if src == nil {
			return false
		}
		if math.IsNaN(*src) || math.IsInf(*src, 0) {
			warnings = append(warnings, fmt.Sprintf("input %q is not finite; keeping %v", key, *dst))
			return false
		}
		*dst = math.Max(lo, math.Min(hi, *src))
		return true
	}
	setFlag := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	c := &s.conditions
	set("water", &c.Water, in.Water, environment.MinPercent, environment.MaxPercent)
	set("temperature", &c.Temperature, in.Temperature, environment.MinTemperature, environment.MaxTemperature)
	set("light", &c.Light, in.Light, environment.MinPercent, environment.MaxPercent)
	set("soil", &c.Soil, in.Soil, environment.MinPercent, environment.MaxPercent)
	set("wind", &c.Wind, in.Wind, environment.MinPercent, environment.MaxPercent)
	set("humidity", &c.Humidity, in.Humidity, environment.MinPercent, environment.MaxPercent)
	setFlag(&c.Stressors.Disease, in.Disease)
	setFlag(&c.Stressors.Pests, in.Pests)
	setFlag(&c.Stressors.Storm, in.Storm)
	setFlag(&c.Stressors.Pollution, in.Pollution)

	p := s.mortality.Params
	changed := false
	changed = set("drought_threshold", &p.DroughtThreshold, in.DroughtThreshold, minDroughtThreshold, environment.MaxPercent) || changed
	changed = set("heat_stress_temp", &p.HeatStressTemp, in.HeatStressTemp, environment.MinTemperature, environment.MaxTemperature) || changed
	changed = set("disease_rate", &p.DiseaseRate, in.DiseaseRate, 0, maxRate) || changed
	changed = set("storm_frequency", &p.StormFrequency, in.StormFrequency, 0, maxRate) || changed
	changed = set("max_age", &p.MaxAge, in.MaxAge, minMaxAge, maxMaxAge) || changed
	changed = set("senescence_start_age", &p.SenescenceStartAge, in.SenescenceStartAge, 0, p.MaxAge) || changed
	changed = set("base_mortality_rate", &p.BaseRate, in.BaseMortalityRate, 0, maxBaseMortality) || changed
	if in.EnableMortality != nil {
		p.Enabled = *in.EnableMortality
		changed = true
	}
	if p.SenescenceStartAge > p.MaxAge {
		p.SenescenceStartAge = p.MaxAge
	}
	if changed {
		s.mortality.Params = p
		slog.Info("mortality reconfigured",
			"enabled", p.Enabled,
			"base_rate", p.BaseRate,
			"max_age", p.MaxAge,
			"senescence_start_age", p.SenescenceStartAge,
			"drought_threshold", p.DroughtThreshold,
			"heat_stress_temp", p.HeatStressTemp,
			"disease_rate", p.DiseaseRate,
			"storm_frequency", p.StormFrequency,
		)
	}

	setFlag(&s.enableGrowth, in.EnableGrowth)
	return warnings
}
