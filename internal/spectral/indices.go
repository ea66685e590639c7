// Package spectral computes vegetation indices from reflectance bands and
// assembles the per-pixel feature matrix the stress classifier is trained on.
package spectral

import (
	"fmt"
	"math"

	"stressvision/internal/raster"
)

// SafeDivide divides num by den elementwise, yielding 0 wherever den is 0
func SafeDivide(num, den raster.Grid) (raster.Grid, error) {
	if err := raster.SameShape(num, den); err != nil {
		return raster.Grid{}, fmt.Errorf("safe divide: %w", err)
	}
	s := num.Shape()
	out := raster.NewGrid(s.H, s.W)
	n, d, o := num.Data(), den.Data(), out.Data()
	for i := range o {
		if d[i] != 0 {
			o[i] = n[i] / d[i]
		}
	}
	return out, nil
}

// normalizedDifference returns (a-b)/(a+b)
func normalizedDifference(a, b raster.Grid) (raster.Grid, error) {
	if err := raster.SameShape(a, b); err != nil {
		return raster.Grid{}, err
	}
	s := a.Shape()
	diff := raster.NewGrid(s.H, s.W)
	sum := raster.NewGrid(s.H, s.W)
	ad, bd := a.Data(), b.Data()
	dd, sd := diff.Data(), sum.Data()
	for i := range ad {
		dd[i] = ad[i] - bd[i]
		sd[i] = ad[i] + bd[i]
	}
	return SafeDivide(diff, sum)
}

// NDVI = (NIR - Red) / (NIR + Red), in [-1, 1] for non-negative reflectance
func NDVI(nir, red raster.Grid) (raster.Grid, error) {
	g, err := normalizedDifference(nir, red)
	if err != nil {
		return raster.Grid{}, fmt.Errorf("ndvi: %w", err)
	}
	return g, nil
}

// NDRE = (NIR - RedEdge) / (NIR + RedEdge). Reacts to chlorophyll loss before NDVI does.
func NDRE(nir, redEdge raster.Grid) (raster.Grid, error) {
	g, err := normalizedDifference(nir, redEdge)
	if err != nil {
		return raster.Grid{}, fmt.Errorf("ndre: %w", err)
	}
	return g, nil
}

// MSI = SWIR / NIR. Unbounded above; higher means drier canopy.
func MSI(swir, nir raster.Grid) (raster.Grid, error) {
	g, err := SafeDivide(swir, nir)
	if err != nil {
		return raster.Grid{}, fmt.Errorf("msi: %w", err)
	}
	return g, nil
}

// CWSI min-max normalizes a thermal-like band to [0, 1]. NaN pixels are ignored
// when finding the range; a constant band yields all zeros.
func CWSI(thermal raster.Grid) raster.Grid {
	s := thermal.Shape()
	out := raster.NewGrid(s.H, s.W)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range thermal.Data() {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	span := hi - lo
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || span == 0 || math.IsNaN(span) {
		return out
	}

	o := out.Data()
	for i, v := range thermal.Data() {
		o[i] = float32((float64(v) - lo) / span)
	}
	return out
}

// ZScoreAnomaly returns |x - mean| / std per pixel, using the NaN-ignoring
// population mean and standard deviation of the whole grid. A grid with zero
// spread yields all zeros.
func ZScoreAnomaly(index raster.Grid) raster.Grid {
	s := index.Shape()
	out := raster.NewGrid(s.H, s.W)

	mean, std := meanStdDev(index.Data())
	if std == 0 || math.IsNaN(std) {
		return out
	}

	o := out.Data()
	for i, v := range index.Data() {
		o[i] = float32(math.Abs((float64(v) - mean) / std))
	}
	return out
}

// meanStdDev calculates the population mean and standard deviation, skipping NaNs
func meanStdDev(values []float32) (mean, std float64) {
	n := 0
	sum := 0.0
	for _, v := range values {
		if math.IsNaN(float64(v)) {
			continue
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)

	variance := 0.0
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		variance += (f - mean) * (f - mean)
	}
	variance /= float64(n)
	return mean, math.Sqrt(variance)
}
