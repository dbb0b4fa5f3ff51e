package main

import (
	"github.com/pthm-cable/arbor/config"
)

// ParamSpec defines a single calibrated mortality parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of calibrated parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the hazard parameters fitted against lifespan
// targets. Defaults are taken from cfg.
func NewParamVector(cfg *config.Config) *ParamVector {
	m := cfg.Mortality
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "base_rate", Path: "mortality.base_rate", Min: 0.0001, Max: 0.1, Default: m.BaseRate},
			{Name: "senescence_weight", Path: "mortality.senescence_weight", Min: 0, Max: 5, Default: m.SenescenceWeight},
			{Name: "stress_weight", Path: "mortality.stress_weight", Min: 0, Max: 2, Default: m.StressWeight},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice, clamped
// into bounds.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return pv.Clamp(v)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies clamped parameter values to cfg.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	cfg.Mortality.BaseRate = clamped[0]
	cfg.Mortality.SenescenceWeight = clamped[1]
	cfg.Mortality.StressWeight = clamped[2]
}

// ExtractFromConfig extracts current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Mortality.BaseRate,
		cfg.Mortality.SenescenceWeight,
		cfg.Mortality.StressWeight,
	}
}
