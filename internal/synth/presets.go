package synth

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"stressvision/internal/raster"
)

// PresetFunc builds a deterministic demo scene of the given size
type PresetFunc func(h, w int) (Scene, error)

var presets = map[string]PresetFunc{
	"healthy_field":   HealthyField,
	"moderate_stress": ModerateStress,
	"severe_drought":  SevereDrought,
	"pest_outbreak":   PestOutbreak,
	"mixed_field":     MixedGradient,
}

// PresetNames lists the available demo scenes
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset looks a demo scene builder up by name
func Preset(name string) (PresetFunc, error) {
	fn, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	return fn, nil
}

// HealthyField is an almost entirely healthy baseline: a low-ratio scene whose
// NIR, red and SWIR bands are then redrawn from healthy ranges everywhere.
func HealthyField(h, w int) (Scene, error) {
	r := NewRand(10)
	scene, err := Generate(h, w, 0.08, r)
	if err != nil {
		return Scene{}, err
	}
	overwrite(scene.Bands.NIR, nil, span{0.40, 0.55}, r)
	overwrite(scene.Bands.Red, nil, span{0.02, 0.06}, r)
	overwrite(scene.Bands.SWIR, nil, span{0.08, 0.15}, r)
	scene.Labels = raster.NewMask(h, w)
	return scene, nil
}

// ModerateStress is patchy stress around 40% of the field
func ModerateStress(h, w int) (Scene, error) {
	return Generate(h, w, 0.40, NewRand(20))
}

// SevereDrought covers most of the field with a water-stress signature
// (high SWIR, low NIR, raised red) on top of a high-ratio scene.
func SevereDrought(h, w int) (Scene, error) {
	r := NewRand(30)
	scene, err := Generate(h, w, 0.70, r)
	if err != nil {
		return Scene{}, err
	}

	drought := make([]bool, h*w)
	for i := range drought {
		drought[i] = r.Float64() < 0.65
	}
	overwrite(scene.Bands.SWIR, drought, span{0.35, 0.55}, r)
	overwrite(scene.Bands.NIR, drought, span{0.12, 0.25}, r)
	overwrite(scene.Bands.Red, drought, span{0.12, 0.22}, r)

	labels := scene.Labels.Data()
	for i, d := range drought {
		if d {
			labels[i] = 1
		}
	}
	return scene, nil
}

// PestOutbreak is a healthy field with 8–12 tight circular damage clusters
func PestOutbreak(h, w int) (Scene, error) {
	if h <= 0 || w <= 0 {
		return Scene{}, fmt.Errorf("invalid scene size %dx%d", h, w)
	}
	r := NewRand(40)

	blue := uniformGrid(h, w, span{0.02, 0.06}, r)
	green := uniformGrid(h, w, span{0.05, 0.10}, r)
	red := uniformGrid(h, w, span{0.03, 0.07}, r)
	redEdge := uniformGrid(h, w, span{0.18, 0.30}, r)
	nir := uniformGrid(h, w, span{0.38, 0.55}, r)
	swir := uniformGrid(h, w, span{0.10, 0.18}, r)

	labels := raster.NewMask(h, w)
	clusters := 8 + r.IntN(5)
	for i := 0; i < clusters; i++ {
		cx, cy := marginCoord(w, r), marginCoord(h, r)
		radius := 8 + r.IntN(17)

		cluster := raster.NewMask(h, w)
		paintDisc(cluster, cx, cy, radius)
		in := make([]bool, h*w)
		for j, v := range cluster.Data() {
			if v != 0 {
				in[j] = true
				labels.Data()[j] = 1
			}
		}
		overwrite(red, in, span{0.15, 0.25}, r)
		overwrite(redEdge, in, span{0.08, 0.15}, r)
		overwrite(nir, in, span{0.12, 0.22}, r)
		overwrite(swir, in, span{0.30, 0.50}, r)
	}

	bands, err := raster.NewBands(blue, green, red, redEdge, nir, swir)
	if err != nil {
		return Scene{}, err
	}
	return Scene{Bands: bands, Labels: labels}, nil
}

// MixedGradient blends from healthy on the left edge to stressed on the right
func MixedGradient(h, w int) (Scene, error) {
	if h <= 0 || w <= 0 {
		return Scene{}, fmt.Errorf("invalid scene size %dx%d", h, w)
	}
	r := NewRand(50)

	gradient := raster.NewGrid(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := float32(0)
			if w > 1 {
				g = float32(x) / float32(w-1)
			}
			gradient.Set(y, x, g+float32(r.NormFloat64()*0.05))
		}
	}
	clip(gradient, 0, 1)

	blend := func(base, slope float32, std float64) raster.Grid {
		out := raster.NewGrid(h, w)
		for i, g := range gradient.Data() {
			out.Data()[i] = base + slope*g + float32(r.NormFloat64()*std)
		}
		clip(out, 0.01, 0.99)
		return out
	}
	blue := blend(0.03, 0.05, 0.005)
	green := blend(0.07, 0.04, 0.005)
	red := blend(0.04, 0.14, 0.005)
	redEdge := blend(0.25, -0.12, 0.005)
	nir := blend(0.50, -0.28, 0.01)
	swir := blend(0.12, 0.30, 0.005)

	labels := raster.NewMask(h, w)
	for i, g := range gradient.Data() {
		if g > 0.5 {
			labels.Data()[i] = 1
		}
	}

	bands, err := raster.NewBands(blue, green, red, redEdge, nir, swir)
	if err != nil {
		return Scene{}, err
	}
	return Scene{Bands: bands, Labels: labels}, nil
}

// overwrite redraws g from s wherever sel is true, or everywhere when sel is nil
func overwrite(g raster.Grid, sel []bool, s span, r *rand.Rand) {
	data := g.Data()
	for i := range data {
		if sel == nil || sel[i] {
			data[i] = s.sample(r)
		}
	}
}

// marginCoord picks a coordinate at least 20 pixels from either edge when the
// axis is long enough, otherwise anywhere on it
func marginCoord(n int, r *rand.Rand) int {
	if n > 40 {
		return 20 + r.IntN(n-40)
	}
	return r.IntN(n)
}
