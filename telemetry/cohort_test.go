package telemetry

import (
	"math"
	"testing"
)

func TestComputeCohortStats(t *testing.T) {
	runs := []LifetimeStats{
		{Alive: true, AgeYears: 5, Height: 10},
		{Alive: false, Cause: "drought", AgeYears: 2, Height: 3},
		{Alive: false, Cause: "drought", AgeYears: 4, Height: 6},
		{Alive: false, Cause: "windthrow", AgeYears: 3, Height: 8},
	}
	cs := ComputeCohortStats(runs)

	if cs.Size != 4 || cs.Survivors != 1 {
		t.Fatalf("size/survivors = %d/%d, want 4/1", cs.Size, cs.Survivors)
	}
	if math.Abs(cs.SurvivalFraction-0.25) > 1e-9 {
		t.Errorf("SurvivalFraction = %v, want 0.25", cs.SurvivalFraction)
	}
	if math.Abs(cs.LifespanMean-3) > 1e-9 {
		t.Errorf("LifespanMean = %v, want 3", cs.LifespanMean)
	}
	if math.Abs(cs.LifespanStd-1) > 1e-9 {
		t.Errorf("LifespanStd = %v, want 1", cs.LifespanStd)
	}
	if cs.LifespanMedian != 3 {
		t.Errorf("LifespanMedian = %v, want 3", cs.LifespanMedian)
	}
	if math.Abs(cs.Height.Mean-6.75) > 1e-9 {
		t.Errorf("Height.Mean = %v, want 6.75", cs.Height.Mean)
	}

	// Causes follow enum order: windthrow precedes drought.
	if len(cs.Causes) != 2 {
		t.Fatalf("got %d causes, want 2: %+v", len(cs.Causes), cs.Causes)
	}
	if cs.Causes[0].Cause != "windthrow" || cs.Causes[0].Count != 1 {
		t.Errorf("first cause = %+v", cs.Causes[0])
	}
	if cs.Causes[1].Cause != "drought" || cs.Causes[1].Count != 2 {
		t.Errorf("second cause = %+v", cs.Causes[1])
	}
	if math.Abs(cs.Causes[1].Fraction-2.0/3) > 1e-9 {
		t.Errorf("drought fraction = %v, want 2/3", cs.Causes[1].Fraction)
	}
}

func TestComputeCohortStatsAllSurvive(t *testing.T) {
	cs := ComputeCohortStats([]LifetimeStats{{Alive: true}, {Alive: true}})
	if cs.SurvivalFraction != 1 || cs.LifespanMean != 0 || len(cs.Causes) != 0 {
		t.Errorf("unexpected stats %+v", cs)
	}
	if empty := ComputeCohortStats(nil); empty.Size != 0 || empty.SurvivalFraction != 0 {
		t.Errorf("empty cohort = %+v", empty)
	}
}
