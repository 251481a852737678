// Package oee computes Overall Equipment Effectiveness figures for the
// quote's performance section. Pure arithmetic, no I/O.
package oee

import "math"

// Inputs are the normalized numeric inputs. Time fields carry the units
// the quote form uses: runtime in hours, downtime in minutes, cycle time
// in seconds per part.
type Inputs struct {
	RuntimeHours         float64 `json:"runtime"`
	PlannedDowntimeMin   float64 `json:"planned_downtime"`
	UnplannedDowntimeMin float64 `json:"unplanned_downtime"`
	TotalParts           float64 `json:"total_parts"`
	CycleTimeSec         float64 `json:"cycle_time"`
	TotalScrap           float64 `json:"total_scrap"`
}

// Metrics are the computed figures. The first four are percentages in
// 0..100; Capacity is parts per hour.
type Metrics struct {
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Quality      float64 `json:"quality"`
	OEE          float64 `json:"oee"`
	Capacity     float64 `json:"capacity"`
	GoodParts    float64 `json:"good_parts"`
}

// Compute derives the OEE metrics. Zero denominators yield zero rather
// than an error: a half-filled form still produces a preview.
func Compute(in Inputs) Metrics {
	runtimeSec := in.RuntimeHours * 3600
	plannedSec := in.PlannedDowntimeMin * 60
	unplannedSec := in.UnplannedDowntimeMin * 60

	plannedProduction := math.Max(runtimeSec-plannedSec, 0)
	operating := math.Max(plannedProduction-unplannedSec, 0)

	availability := safePct(operating, plannedProduction)

	idealParts := 0.0
	if in.CycleTimeSec > 0 {
		idealParts = operating / in.CycleTimeSec
	}
	performance := safePct(in.TotalParts, idealParts)

	goodParts := math.Max(in.TotalParts-in.TotalScrap, 0)
	quality := safePct(goodParts, in.TotalParts)

	oee := availability / 100 * performance / 100 * quality / 100 * 100

	capacity := 0.0
	if in.RuntimeHours > 0 {
		capacity = in.TotalParts / in.RuntimeHours
	}

	return Metrics{
		Availability: round2(availability),
		Performance:  round2(performance),
		Quality:      round2(quality),
		OEE:          round2(oee),
		Capacity:     round2(capacity),
		GoodParts:    goodParts,
	}
}

func safePct(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
