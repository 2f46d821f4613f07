package oee

import "fmt"

// Inputs are the raw figures for one calculation window.
type Inputs struct {
	PlannedTimeS   float64 // planned production time in the window
	DowntimeS      float64 // accumulated fault time in the window
	GoodParts      int64
	TotalParts     int64
	IdealCycleTime float64 // seconds per part
}

// Result is one computed set of effectiveness figures. Components are always
// in [0, 1]; inputs that would push them outside that range are clamped and
// reported in Warnings.
type Result struct {
	Availability  float64
	Performance   float64
	Quality       float64
	OEE           float64
	RuntimeS      float64
	Informational bool
	Warnings      []string
}

// Calculator computes availability/performance/quality/OEE.
type Calculator struct {
	// ZeroPartsQuality is the quality figure reported when the window saw no
	// parts at all. No scrap observed is not a defect, so this defaults to 1.
	ZeroPartsQuality float64
}

// NewCalculator creates a calculator with the given zero-parts policy.
func NewCalculator(zeroPartsQuality float64) *Calculator {
	if zeroPartsQuality <= 0 || zeroPartsQuality > 1 {
		zeroPartsQuality = 1
	}
	return &Calculator{ZeroPartsQuality: zeroPartsQuality}
}

// Compute derives the effectiveness figures for one window.
//
//	availability = runtime / planned            (0 when planned == 0)
//	performance  = ideal_cycle × total / runtime
//	quality      = good / total                 (ZeroPartsQuality when total == 0)
//	oee          = availability × performance × quality
func (c *Calculator) Compute(in Inputs) Result {
	var r Result

	runtime := in.PlannedTimeS - in.DowntimeS
	if runtime < 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("downtime %.1fs exceeds planned time %.1fs", in.DowntimeS, in.PlannedTimeS))
		runtime = 0
	}
	r.RuntimeS = runtime

	if in.PlannedTimeS <= 0 {
		// No planned production: the whole calculation is informational.
		r.Availability = 0
		r.Informational = true
	} else {
		r.Availability = c.clamp("availability", runtime/in.PlannedTimeS, &r)
	}

	if runtime <= 0 || in.IdealCycleTime <= 0 {
		r.Performance = 0
	} else {
		r.Performance = c.clamp("performance", in.IdealCycleTime*float64(in.TotalParts)/runtime, &r)
	}

	switch {
	case in.TotalParts == 0:
		r.Quality = c.ZeroPartsQuality
	case in.GoodParts > in.TotalParts:
		r.Warnings = append(r.Warnings, fmt.Sprintf("good parts %d exceed total parts %d", in.GoodParts, in.TotalParts))
		r.Quality = 1
	default:
		r.Quality = c.clamp("quality", float64(in.GoodParts)/float64(in.TotalParts), &r)
	}

	r.OEE = r.Availability * r.Performance * r.Quality
	return r
}

// clamp bounds a component to [0, 1], recording a warning when it fires;
// out-of-range components indicate an upstream data error, never silently
// absorbed.
func (c *Calculator) clamp(name string, v float64, r *Result) float64 {
	if v < 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s %.4f below 0, clamped", name, v))
		return 0
	}
	if v > 1 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s %.4f above 1, clamped", name, v))
		return 1
	}
	return v
}
