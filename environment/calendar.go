package environment

import (
	"fmt"
	"math"
)

// Season is the phenological season of the year.
type Season uint8

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

// NumSeasons is the number of seasons in a year.
const NumSeasons = 4

var seasonNames = [NumSeasons]string{"Spring", "Summer", "Autumn", "Winter"}

func (s Season) String() string {
	if int(s) < NumSeasons {
		return seasonNames[s]
	}
	return fmt.Sprintf("Season(%d)", s)
}

// ParseSeason maps a season name (case-sensitive, as produced by String) to a Season.
func ParseSeason(name string) (Season, bool) {
	for i, n := range seasonNames {
		if n == name {
			return Season(i), true
		}
	}
	return Spring, false
}

// Calendar partitions the year into contiguous season ranges starting with Spring.
type Calendar struct {
	Lengths [NumSeasons]int
}

// NewCalendar validates season lengths against the year length.
func NewCalendar(lengths [NumSeasons]int, daysPerYear int) (Calendar, error) {
	total := 0
	for i, l := range lengths {
		if l <= 0 {
			return Calendar{}, fmt.Errorf("season %s has non-positive length %d", Season(i), l)
		}
		total += l
	}
	if total != daysPerYear {
		return Calendar{}, fmt.Errorf("season lengths sum to %d, want %d", total, daysPerYear)
	}
	return Calendar{Lengths: lengths}, nil
}

// DaysPerYear returns the total length of the year.
func (c Calendar) DaysPerYear() int {
	total := 0
	for _, l := range c.Lengths {
		total += l
	}
	return total
}

// Classify returns the season containing day and the fractional position
// within it. Days outside [0, year) wrap.
func (c Calendar) Classify(day float64) (Season, float64) {
	year := float64(c.DaysPerYear())
	if year <= 0 || math.IsNaN(day) || math.IsInf(day, 0) {
		return Spring, 0
	}
	day = math.Mod(day, year)
	if day < 0 {
		day += year
	}

	start := 0.0
	for i, l := range c.Lengths {
		end := start + float64(l)
		if day < end || i == NumSeasons-1 {
			progress := (day - start) / float64(l)
			if progress >= 1 {
				progress = math.Nextafter(1, 0)
			}
			return Season(i), math.Max(0, progress)
		}
		start = end
	}
	return Winter, 0
}

// Start returns the first day of the given season.
func (c Calendar) Start(s Season) int {
	day := 0
	for i := 0; i < int(s) && i < NumSeasons; i++ {
		day += c.Lengths[i]
	}
	return day
}

// Clock is the simulated calendar position. The simulation advances it
// between substeps.
type Clock struct {
	Day  float64 `json:"day"`
	Year int     `json:"year"`
}

// Advance moves the clock forward by days, rolling over whole years.
func (c *Clock) Advance(days float64, daysPerYear int) {
	if days <= 0 || daysPerYear <= 0 {
		return
	}
	c.Day += days
	year := float64(daysPerYear)
	for c.Day >= year {
		c.Day -= year
		c.Year++
	}
}

// MarshalText encodes the season as its name.
func (s Season) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a season name.
func (s *Season) UnmarshalText(b []byte) error {
	v, ok := ParseSeason(string(b))
	if !ok {
		return fmt.Errorf("unknown season %q", b)
	}
	*s = v
	return nil
}
