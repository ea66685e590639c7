// Package synth generates synthetic six-band scenes with ground-truth stress
// masks. The scenes define the distribution the stress classifier is trained on.
package synth

import (
	"fmt"
	"math/rand/v2"

	"stressvision/internal/raster"
)

const (
	minBlobs     = 2
	maxBlobs     = 5
	minRadius    = 20
	maxRadius    = 59
	noiseStdDev  = 0.005
	pcgIncrement = 0x9e3779b97f4a7c15
)

// span is a uniform sampling range [lo, hi)
type span struct {
	lo, hi float32
}

func (s span) sample(r *rand.Rand) float32 {
	return s.lo + r.Float32()*(s.hi-s.lo)
}

// Per-channel reflectance ranges, in raster.ChannelNames order. Stressed canopy
// loses NIR and red-edge reflectance and gains red and SWIR.
var (
	healthyRanges = [6]span{
		{0.02, 0.06}, // blue
		{0.05, 0.10}, // green
		{0.03, 0.08}, // red
		{0.15, 0.30}, // red edge
		{0.35, 0.55}, // nir
		{0.10, 0.20}, // swir
	}
	stressedRanges = [6]span{
		{0.04, 0.10},
		{0.06, 0.12},
		{0.10, 0.20},
		{0.10, 0.20},
		{0.15, 0.30},
		{0.25, 0.45},
	}
)

// Scene is one synthetic band set with its per-pixel labels
type Scene struct {
	Bands  raster.Bands
	Labels raster.Mask
}

// NewRand returns the generator every scene function draws from. The same seed
// always produces the same stream.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, pcgIncrement))
}

// Generate produces an h×w scene whose stressed area approximates stressRatio.
//
// Stress is laid down as 2–5 circular blobs. When the blobs cover less than half
// the target ratio, independent salt pixels are added with probability
// (target - coverage); this only nudges coverage toward the target and never
// trims an overshoot.
func Generate(h, w int, stressRatio float64, r *rand.Rand) (Scene, error) {
	if h <= 0 || w <= 0 {
		return Scene{}, fmt.Errorf("invalid scene size %dx%d", h, w)
	}
	if stressRatio < 0 || stressRatio > 1 {
		return Scene{}, fmt.Errorf("stress ratio %.3f outside [0,1]", stressRatio)
	}

	mask := blobMask(h, w, r)
	labels := mask.Data()

	current := mask.Coverage()
	if current < stressRatio*0.5 {
		p := stressRatio - current
		for i := range labels {
			if r.Float64() < p {
				labels[i] = 1
			}
		}
	}

	var chans [6]raster.Grid
	for c := range chans {
		chans[c] = uniformGrid(h, w, healthyRanges[c], r)
	}
	for c := range chans {
		data := chans[c].Data()
		for i, l := range labels {
			if l != 0 {
				data[i] = stressedRanges[c].sample(r)
			}
		}
	}
	for c := range chans {
		addNoise(chans[c], noiseStdDev, r)
		clip(chans[c], 0, 1)
	}

	bands, err := raster.NewBands(chans[0], chans[1], chans[2], chans[3], chans[4], chans[5])
	if err != nil {
		return Scene{}, err
	}
	return Scene{Bands: bands, Labels: mask}, nil
}

// blobMask unions 2–5 random discs into a label mask
func blobMask(h, w int, r *rand.Rand) raster.Mask {
	mask := raster.NewMask(h, w)
	n := minBlobs + r.IntN(maxBlobs-minBlobs+1)
	for i := 0; i < n; i++ {
		cx, cy := r.IntN(w), r.IntN(h)
		radius := minRadius + r.IntN(maxRadius-minRadius+1)
		paintDisc(mask, cx, cy, radius)
	}
	return mask
}

// paintDisc sets every pixel strictly inside the circle to 1
func paintDisc(mask raster.Mask, cx, cy, radius int) {
	s := mask.Shape()
	data := mask.Data()
	r2 := radius * radius
	for y := max(0, cy-radius); y < min(s.H, cy+radius+1); y++ {
		dy := y - cy
		for x := max(0, cx-radius); x < min(s.W, cx+radius+1); x++ {
			dx := x - cx
			if dx*dx+dy*dy < r2 {
				data[y*s.W+x] = 1
			}
		}
	}
}

func uniformGrid(h, w int, s span, r *rand.Rand) raster.Grid {
	g := raster.NewGrid(h, w)
	data := g.Data()
	for i := range data {
		data[i] = s.sample(r)
	}
	return g
}

func addNoise(g raster.Grid, std float64, r *rand.Rand) {
	data := g.Data()
	for i := range data {
		data[i] += float32(r.NormFloat64() * std)
	}
}

func clip(g raster.Grid, lo, hi float32) {
	data := g.Data()
	for i, v := range data {
		data[i] = min(max(v, lo), hi)
	}
}
