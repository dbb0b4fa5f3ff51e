// Package config provides configuration loading for the tree simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/arbor/environment"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation  SimulationConfig   `yaml:"simulation"`
	Calendar    CalendarConfig     `yaml:"calendar"`
	Environment EnvironmentConfig  `yaml:"environment"`
	Tree        TreeConfig         `yaml:"tree"`
	Species     map[string]Species `yaml:"species"`
	Phenology   PhenologyConfig    `yaml:"phenology"`
	Physiology  PhysiologyConfig   `yaml:"physiology"`
	Vitality    VitalityConfig     `yaml:"vitality"`
	Growth      GrowthConfig       `yaml:"growth"`
	Mortality   MortalityConfig    `yaml:"mortality"`
	Telemetry   TelemetryConfig    `yaml:"telemetry"`
	Cohort      CohortConfig       `yaml:"cohort"`
	Storage     StorageConfig      `yaml:"storage"`
	Server      ServerConfig       `yaml:"server"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds the fixed-timestep scheduler parameters.
type SimulationConfig struct {
	SubstepsPerSecond int     `yaml:"substeps_per_second"` // dt = 1 / this
	MaxSubsteps       int     `yaml:"max_substeps"`        // Substeps per Advance call before deferring
	MaxBacklog        float64 `yaml:"max_backlog"`         // Scheduler seconds kept pending; older time is dropped
	Speed             float64 `yaml:"speed"`               // Initial time multiplier
	MaxSpeed          float64 `yaml:"max_speed"`
	DaysPerSecond     float64 `yaml:"days_per_second"` // Simulated days per scheduler second
	Seed              int64   `yaml:"seed"`
}

// CalendarConfig describes the simulated year.
type CalendarConfig struct {
	DaysPerYear   int         `yaml:"days_per_year"`
	SeasonLengths [4]int      `yaml:"season_lengths"` // Spring, Summer, Autumn, Winter
	StartDay      float64     `yaml:"start_day"`
	Seasons       SeasonTable `yaml:"seasons"`
}

// SeasonParams are the per-season growth constants.
type SeasonParams struct {
	GrowthMultiplier float64    `yaml:"growth_multiplier"`
	Allocation       Allocation `yaml:"allocation"`
}

// Allocation splits a biomass increment between compartments. Ratios sum to 1.
type Allocation struct {
	Trunk    float64 `yaml:"trunk"`
	Branches float64 `yaml:"branches"`
	Leaves   float64 `yaml:"leaves"`
	Roots    float64 `yaml:"roots"`
}

// Sum returns the total of all ratios.
func (a Allocation) Sum() float64 {
	return a.Trunk + a.Branches + a.Leaves + a.Roots
}

// SeasonTable is the explicit season lookup table.
type SeasonTable struct {
	Spring SeasonParams `yaml:"spring"`
	Summer SeasonParams `yaml:"summer"`
	Autumn SeasonParams `yaml:"autumn"`
	Winter SeasonParams `yaml:"winter"`
}

// At returns the parameters for s.
func (t SeasonTable) At(s environment.Season) SeasonParams {
	switch s {
	case environment.Summer:
		return t.Summer
	case environment.Autumn:
		return t.Autumn
	case environment.Winter:
		return t.Winter
	default:
		return t.Spring
	}
}

// EnvironmentConfig holds the initial site conditions.
type EnvironmentConfig struct {
	Initial environment.Conditions `yaml:"initial"`
}

// TreeConfig holds the initial sapling state and trait distributions.
type TreeConfig struct {
	Species      string  `yaml:"species"`
	EnableGrowth bool    `yaml:"enable_growth"`
	Height       float64 `yaml:"height"`
	DBH          float64 `yaml:"dbh"`
	RootDepth    float64 `yaml:"root_depth"`
	RootSpread   float64 `yaml:"root_spread"`
	Trunk        float64 `yaml:"trunk"`
	Branches     float64 `yaml:"branches"`
	Leaves       float64 `yaml:"leaves"`
	Roots        float64 `yaml:"roots"`
	Health       float64 `yaml:"health"`
	Vigor        float64 `yaml:"vigor"`
	WaterContent float64 `yaml:"water_content"`
	Chlorophyll  float64 `yaml:"chlorophyll"`

	ResistanceMin float64 `yaml:"resistance_min"`
	ResistanceMax float64 `yaml:"resistance_max"`
	VigorSigma    float64 `yaml:"vigor_sigma"`
	VigorMin      float64 `yaml:"vigor_min"`
	VigorMax      float64 `yaml:"vigor_max"`
}

// Species holds the per-species biological parameters.
type Species struct {
	Name                string  `yaml:"-"`
	Evergreen           bool    `yaml:"evergreen"`
	MaxHeight           float64 `yaml:"max_height"`           // m
	HeightGrowthRate    float64 `yaml:"height_growth_rate"`   // m/day at ngf=1
	BiomassGrowthRate   float64 `yaml:"biomass_growth_rate"`  // kg/day at ngf=1
	LeafRetention       float64 `yaml:"leaf_retention"`       // Winter foliage fraction
	DormancyTemperature float64 `yaml:"dormancy_temperature"` // °C floor
	FireResistance      float64 `yaml:"fire_resistance"`      // 0-1
	WindthrowResistance float64 `yaml:"windthrow_resistance"` // 0-1
	FloweringMinAge     float64 `yaml:"flowering_min_age"`    // years
}

// PhenologyConfig holds seasonal flag windows.
type PhenologyConfig struct {
	BudBurstWindow        float64 `yaml:"bud_burst_window"`
	FloweringSummerWindow float64 `yaml:"flowering_summer_window"`
	FloweringMinHealth    float64 `yaml:"flowering_min_health"`
	SenescenceStart       float64 `yaml:"senescence_start"`
	LateAutumnDormancy    float64 `yaml:"late_autumn_dormancy"`
	EvergreenFloorOffset  float64 `yaml:"evergreen_floor_offset"`
}

// PhysiologyConfig holds carbon balance and stress constants.
type PhysiologyConfig struct {
	PhotosynthesisBase  float64      `yaml:"photosynthesis_base"`
	WaterSaturation     float64      `yaml:"water_saturation"`
	RespirationBase     float64      `yaml:"respiration_base"`
	Q10                 float64      `yaml:"q10"`
	ReferenceTemp       float64      `yaml:"reference_temp"`
	CarbonEfficiency    float64      `yaml:"carbon_efficiency"`
	StressGrowthPenalty float64      `yaml:"stress_growth_penalty"`
	Stress              StressConfig `yaml:"stress"`
}

// StressConfig holds the composite stress index terms.
type StressConfig struct {
	WaterDeficitThreshold float64 `yaml:"water_deficit_threshold"`
	WaterDeficitWeight    float64 `yaml:"water_deficit_weight"`
	WaterExcessThreshold  float64 `yaml:"water_excess_threshold"`
	WaterExcessWeight     float64 `yaml:"water_excess_weight"`
	ColdModerate          float64 `yaml:"cold_moderate"`
	HeatModerate          float64 `yaml:"heat_moderate"`
	ColdSevere            float64 `yaml:"cold_severe"`
	HeatSevere            float64 `yaml:"heat_severe"`
	ModeratePenalty       float64 `yaml:"moderate_penalty"`
	SeverePenalty         float64 `yaml:"severe_penalty"`
	DormantTempScale      float64 `yaml:"dormant_temp_scale"`
	LightThreshold        float64 `yaml:"light_threshold"`
	LightWeight           float64 `yaml:"light_weight"`
	Disease               float64 `yaml:"disease"`
	Pests                 float64 `yaml:"pests"`
	Storm                 float64 `yaml:"storm"`
	Pollution             float64 `yaml:"pollution"`
	Cap                   float64 `yaml:"cap"`
}

// VitalityConfig holds health, vigor and foliage dynamics.
type VitalityConfig struct {
	RecoveryPhotosynthesis float64 `yaml:"recovery_photosynthesis"`
	RecoveryStress         float64 `yaml:"recovery_stress"`
	GrowthHealthGain       float64 `yaml:"growth_health_gain"`
	RecoveryWeight         float64 `yaml:"recovery_weight"`
	StressHealthLoss       float64 `yaml:"stress_health_loss"`
	NoiseSigma             float64 `yaml:"noise_sigma"`
	VigorRetention         float64 `yaml:"vigor_retention"`
	StressRetention        float64 `yaml:"stress_retention"`
	StressAccumulation     float64 `yaml:"stress_accumulation"`
	DiseaseGrowth          float64 `yaml:"disease_growth"`
	DiseaseFloor           float64 `yaml:"disease_floor"`
	DiseaseDecay           float64 `yaml:"disease_decay"`
	WaterAlpha             float64 `yaml:"water_alpha"`
	DensityAlpha           float64 `yaml:"density_alpha"`
	OpacityAlpha           float64 `yaml:"opacity_alpha"`
	ChlorophyllAlpha       float64 `yaml:"chlorophyll_alpha"`
	FoliageStressThreshold float64 `yaml:"foliage_stress_threshold"`
	EvergreenRetention     float64 `yaml:"evergreen_retention"`
}

// GrowthConfig holds allometry and allocation constants.
type GrowthConfig struct {
	MinHealth            float64 `yaml:"min_health"`
	DBHExponent          float64 `yaml:"dbh_exponent"`
	DBHCoefficient       float64 `yaml:"dbh_coefficient"`
	DBHRate              float64 `yaml:"dbh_rate"`
	DBHBase              float64 `yaml:"dbh_base"`
	CrownRadiusRatio     float64 `yaml:"crown_radius_ratio"`
	CrownHeightRatio     float64 `yaml:"crown_height_ratio"`
	RootDepthRate        float64 `yaml:"root_depth_rate"`
	RootSpreadRate       float64 `yaml:"root_spread_rate"`
	RootDepthCap         float64 `yaml:"root_depth_cap"`  // × height
	RootSpreadCap        float64 `yaml:"root_spread_cap"` // × crown radius
	HeartwoodRate        float64 `yaml:"heartwood_rate"`
	HeartwoodAge         float64 `yaml:"heartwood_age"`
	CarbonFraction       float64 `yaml:"carbon_fraction"`
	TranspirationPerLeaf float64 `yaml:"transpiration_per_leaf"` // kg water per kg leaf per day
}

// MortalityConfig holds the hazard model parameters.
type MortalityConfig struct {
	Enabled            bool    `yaml:"enabled"`
	BaseRate           float64 `yaml:"base_rate"`
	SenescenceStartAge float64 `yaml:"senescence_start_age"`
	MaxAge             float64 `yaml:"max_age"`
	AgeTolerance       float64 `yaml:"age_tolerance"`
	SenescenceWeight   float64 `yaml:"senescence_weight"`
	StressWeight       float64 `yaml:"stress_weight"`
	DroughtThreshold   float64 `yaml:"drought_threshold"`
	DroughtWeight      float64 `yaml:"drought_weight"`
	HeatStressTemp     float64 `yaml:"heat_stress_temp"`
	HeatWeight         float64 `yaml:"heat_weight"`
	DiseaseRate        float64 `yaml:"disease_rate"`
	StormFrequency     float64 `yaml:"storm_frequency"`
	WindThreshold      float64 `yaml:"wind_threshold"`
	WindRange          float64 `yaml:"wind_range"`
	StormMultiplier    float64 `yaml:"storm_multiplier"`
	FireWaterThreshold float64 `yaml:"fire_water_threshold"`
	FireTempThreshold  float64 `yaml:"fire_temp_threshold"`
	FireTempRange      float64 `yaml:"fire_temp_range"`
	FireWeight         float64 `yaml:"fire_weight"`
	HazardCap          float64 `yaml:"hazard_cap"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	WindowDays          float64 `yaml:"window_days"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// CohortConfig holds parallel cohort run parameters.
type CohortConfig struct {
	Size    int     `yaml:"size"`
	Workers int     `yaml:"workers"` // 0 = GOMAXPROCS
	Years   float64 `yaml:"years"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Kind string `yaml:"kind"` // memory, sqlite, mysql
	DSN  string `yaml:"dsn"`
}

// ServerConfig holds HTTP daemon parameters.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	TickMillis   int    `yaml:"tick_millis"`
	SnapshotDays int    `yaml:"snapshot_days"` // 0 disables periodic persistence
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT          float64              // Scheduler seconds per substep
	DTDays      float64              // Simulated days per substep
	Calendar    environment.Calendar // Validated season partition
	SpeciesName string               // Resolved tree.species
	Species     Species              // Resolved species parameters
}

// ErrUnknownSpecies is returned when tree.species names no configured species.
var ErrUnknownSpecies = errors.New("unknown species")

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded defaults. It panics if they are invalid.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: invalid embedded defaults: %v", err))
	}
	return cfg
}

// Finalize clamps, validates and recomputes derived values. Call it after
// mutating a loaded Config in code.
func (c *Config) Finalize() error {
	c.Environment.Initial = c.Environment.Initial.Clamped()
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.computeDerived()
}

func (c *Config) validate() error {
	if c.Simulation.SubstepsPerSecond <= 0 {
		return fmt.Errorf("simulation.substeps_per_second must be positive, got %d", c.Simulation.SubstepsPerSecond)
	}
	if c.Simulation.MaxSubsteps <= 0 {
		return fmt.Errorf("simulation.max_substeps must be positive, got %d", c.Simulation.MaxSubsteps)
	}
	if !(c.Simulation.DaysPerSecond > 0) {
		return fmt.Errorf("simulation.days_per_second must be positive, got %v", c.Simulation.DaysPerSecond)
	}
	if c.Simulation.MaxBacklog < 0 || math.IsNaN(c.Simulation.MaxBacklog) {
		return fmt.Errorf("simulation.max_backlog must be non-negative, got %v", c.Simulation.MaxBacklog)
	}
	if c.Simulation.MaxSpeed <= 0 {
		return fmt.Errorf("simulation.max_speed must be positive, got %v", c.Simulation.MaxSpeed)
	}
	c.Simulation.Speed = math.Max(0, math.Min(c.Simulation.MaxSpeed, c.Simulation.Speed))

	for _, s := range []struct {
		name string
		p    SeasonParams
	}{
		{"spring", c.Calendar.Seasons.Spring},
		{"summer", c.Calendar.Seasons.Summer},
		{"autumn", c.Calendar.Seasons.Autumn},
		{"winter", c.Calendar.Seasons.Winter},
	} {
		if math.Abs(s.p.Allocation.Sum()-1) > 1e-6 {
			return fmt.Errorf("calendar.seasons.%s.allocation sums to %v, want 1", s.name, s.p.Allocation.Sum())
		}
		if s.p.GrowthMultiplier < 0 {
			return fmt.Errorf("calendar.seasons.%s.growth_multiplier is negative", s.name)
		}
	}

	m := c.Mortality
	if m.MaxAge <= 0 {
		return fmt.Errorf("mortality.max_age must be positive, got %v", m.MaxAge)
	}
	if m.SenescenceStartAge < 0 || m.SenescenceStartAge > m.MaxAge {
		return fmt.Errorf("mortality.senescence_start_age %v outside [0, max_age]", m.SenescenceStartAge)
	}
	if m.HazardCap <= 0 {
		return fmt.Errorf("mortality.hazard_cap must be positive, got %v", m.HazardCap)
	}
	if m.DroughtThreshold <= 0 || m.WindRange <= 0 || m.FireWaterThreshold <= 0 || m.FireTempRange <= 0 {
		return errors.New("mortality thresholds and ranges must be positive")
	}

	if len(c.Species) == 0 {
		return errors.New("no species configured")
	}
	for name, sp := range c.Species {
		if sp.MaxHeight <= 0 {
			return fmt.Errorf("species %q: max_height must be positive", name)
		}
		if sp.FireResistance < 0 || sp.FireResistance > 1 || sp.WindthrowResistance < 0 || sp.WindthrowResistance > 1 {
			return fmt.Errorf("species %q: resistances must be in [0, 1]", name)
		}
	}
	if c.Tree.ResistanceMin > c.Tree.ResistanceMax || c.Tree.VigorMin > c.Tree.VigorMax {
		return errors.New("tree trait bounds are inverted")
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	c.Derived.DT = 1 / float64(c.Simulation.SubstepsPerSecond)
	c.Derived.DTDays = c.Derived.DT * c.Simulation.DaysPerSecond

	cal, err := environment.NewCalendar(c.Calendar.SeasonLengths, c.Calendar.DaysPerYear)
	if err != nil {
		return fmt.Errorf("invalid calendar: %w", err)
	}
	c.Derived.Calendar = cal

	sp, err := c.LookupSpecies(c.Tree.Species)
	if err != nil {
		return err
	}
	c.Derived.SpeciesName = sp.Name
	c.Derived.Species = sp
	return nil
}

// LookupSpecies returns the named species, suggesting the closest configured
// name when it is unknown.
func (c *Config) LookupSpecies(name string) (Species, error) {
	if sp, ok := c.Species[name]; ok {
		sp.Name = name
		return sp, nil
	}
	if guess, ok := Suggest(name, c.SpeciesNames()); ok {
		return Species{}, fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownSpecies, name, guess)
	}
	return Species{}, fmt.Errorf("%w %q", ErrUnknownSpecies, name)
}

// SpeciesNames returns the configured species names in sorted order.
func (c *Config) SpeciesNames() []string {
	names := make([]string, 0, len(c.Species))
	for name := range c.Species {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
