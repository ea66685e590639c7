package analytics

import (
	"math"
	"math/rand/v2"

	"stressvision/internal/raster"
)

// Level is the alert tier for a field
type Level string

const (
	Safe     Level = "SAFE"
	Monitor  Level = "MONITOR"
	Critical Level = "CRITICAL"
)

// Alert tier lower bounds, in percent of stressed pixels
const (
	MonitorThreshold  = 30.0
	CriticalThreshold = 60.0
)

// Probability cut-offs for the distribution buckets
const (
	moderateCutoff = 0.3
	criticalCutoff = 0.6
	stressedCutoff = 0.5
)

const (
	ForecastDays = 7
	// ForecastSeed keeps forecasts reproducible for the same input
	ForecastSeed   = 42
	forecastSigma  = 3.0
	risingDrift    = 1.5
	fallingDrift   = -0.5
	risingAbovePct = 40.0
)

// Distribution is the share of pixels in each stress bucket, in percent
type Distribution struct {
	Healthy  float64 `json:"healthy"`
	Moderate float64 `json:"moderate"`
	Critical float64 `json:"critical"`
}

// AlertLevel classifies a stress percentage. Each tier includes its lower bound.
func AlertLevel(pct float64) Level {
	switch {
	case pct < MonitorThreshold:
		return Safe
	case pct < CriticalThreshold:
		return Monitor
	default:
		return Critical
	}
}

// StressPercentage returns the unrounded percentage of pixels whose stress
// probability exceeds one half
func StressPercentage(stress raster.Grid) float64 {
	data := stress.Data()
	if len(data) == 0 {
		return 0
	}
	n := 0
	for _, v := range data {
		if v > stressedCutoff {
			n++
		}
	}
	return float64(n) / float64(len(data)) * 100
}

// ComputeDistribution buckets pixels into healthy (<0.3), moderate [0.3,0.6)
// and critical (>=0.6). NaN pixels fall in none of the buckets.
func ComputeDistribution(stress raster.Grid) Distribution {
	data := stress.Data()
	if len(data) == 0 {
		return Distribution{}
	}
	var healthy, moderate, critical int
	for _, v := range data {
		switch {
		case v < moderateCutoff:
			healthy++
		case v >= moderateCutoff && v < criticalCutoff:
			moderate++
		case v >= criticalCutoff:
			critical++
		}
	}
	total := float64(len(data))
	return Distribution{
		Healthy:  Round1(float64(healthy) / total * 100),
		Moderate: Round1(float64(moderate) / total * 100),
		Critical: Round1(float64(critical) / total * 100),
	}
}

// NewForecastRand returns the generator Forecast is normally driven with
func NewForecastRand() *rand.Rand {
	return rand.New(rand.NewPCG(ForecastSeed, ForecastSeed))
}

// Forecast projects the stress percentage over the next week as a random walk.
// The walk drifts upward while the running value is above 40% and slowly
// recovers otherwise.
func Forecast(pct float64, r *rand.Rand) []float64 {
	out := make([]float64, ForecastDays)
	out[0] = Round1(clampPct(pct))
	for i := 1; i < ForecastDays; i++ {
		drift := fallingDrift
		if out[i-1] > risingAbovePct {
			drift = risingDrift
		}
		next := out[i-1] + drift + r.NormFloat64()*forecastSigma
		out[i] = Round1(clampPct(next))
	}
	return out
}

// Round1 rounds half away from zero to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampPct(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
