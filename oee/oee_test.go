package oee

import "testing"

func TestCompute(t *testing.T) {
	got := Compute(Inputs{
		RuntimeHours:       8,
		PlannedDowntimeMin: 30,
		TotalParts:         400,
		CycleTimeSec:       60,
		TotalScrap:         10,
	})
	want := Metrics{
		Availability: 100,
		Performance:  88.89,
		Quality:      97.5,
		OEE:          86.67,
		Capacity:     50,
		GoodParts:    390,
	}
	if got != want {
		t.Errorf("Compute = %+v, want %+v", got, want)
	}
}

func TestComputeUnplannedDowntime(t *testing.T) {
	got := Compute(Inputs{
		RuntimeHours:         8,
		PlannedDowntimeMin:   30,
		UnplannedDowntimeMin: 45,
		TotalParts:           400,
		CycleTimeSec:         60,
	})
	// operating = 27000 - 2700 = 24300 sec of 27000 planned
	if got.Availability != 90 {
		t.Errorf("availability = %v, want 90", got.Availability)
	}
	// ideal = 24300/60 = 405 parts
	if got.Performance != 98.77 {
		t.Errorf("performance = %v, want 98.77", got.Performance)
	}
	if got.Quality != 100 {
		t.Errorf("quality = %v, want 100", got.Quality)
	}
}

func TestComputeZeroInputs(t *testing.T) {
	got := Compute(Inputs{})
	if got != (Metrics{}) {
		t.Errorf("zero inputs = %+v, want all-zero metrics", got)
	}
}

func TestComputeClamps(t *testing.T) {
	got := Compute(Inputs{
		RuntimeHours:         1,
		UnplannedDowntimeMin: 120, // more downtime than runtime
		TotalParts:           10,
		CycleTimeSec:         1,
		TotalScrap:           50, // more scrap than parts
	})
	if got.Availability != 0 {
		t.Errorf("availability = %v, want 0", got.Availability)
	}
	if got.GoodParts != 0 {
		t.Errorf("good parts = %v, want 0", got.GoodParts)
	}
	if got.Quality != 0 {
		t.Errorf("quality = %v, want 0", got.Quality)
	}
}
