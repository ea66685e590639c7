package visual

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"stressvision/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constGrid(t *testing.T, h, w int, v float32) raster.Grid {
	t.Helper()
	data := make([]float32, h*w)
	for i := range data {
		data[i] = v
	}
	g, err := raster.GridFrom(h, w, data)
	require.NoError(t, err)
	return g
}

func TestRenderRGB(t *testing.T) {
	var ch [6][]float32
	values := []float32{0.05, 0.1, 0.5, 0.2, 0.4, 0.1} // blue green red red_edge nir swir
	for c := range ch {
		ch[c] = []float32{values[c], values[c], values[c], values[c]}
	}
	b, err := raster.BandsFromSlices(2, 2, ch)
	require.NoError(t, err)

	img, err := RenderRGB(b)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	got := img.RGBAAt(1, 1)
	assert.Equal(t, uint8(255), got.R, "0.5*4 clips to full intensity")
	assert.Equal(t, uint8(102), got.G)
	assert.Equal(t, uint8(51), got.B)
}

func TestRenderRGB_InvalidBands(t *testing.T) {
	_, err := RenderRGB(raster.Bands{})
	assert.Error(t, err)
}

func TestHeatmap_Endpoints(t *testing.T) {
	tests := []struct {
		name  string
		value float32
		check func(c color.RGBA) bool
	}{
		{"healthy is blue", 0, func(c color.RGBA) bool { return c.B > 100 && c.R == 0 && c.G == 0 }},
		{"midpoint is green", 0.5, func(c color.RGBA) bool { return c.G == 255 && c.R < c.G && c.B < c.G }},
		{"critical is red", 1, func(c color.RGBA) bool { return c.R > 100 && c.G == 0 && c.B == 0 }},
		{"above range clips", 3, func(c color.RGBA) bool { return c.R > 100 && c.G == 0 }},
		{"nan is healthy", float32(math.NaN()), func(c color.RGBA) bool { return c.B > 100 && c.R == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Heatmap(constGrid(t, 1, 1, tt.value)).RGBAAt(0, 0)
			if !tt.check(c) {
				t.Errorf("Heatmap(%v) = %+v", tt.value, c)
			}
		})
	}
}

func TestNDVIColor(t *testing.T) {
	low := NDVIColor(constGrid(t, 1, 1, -1)).RGBAAt(0, 0)
	high := NDVIColor(constGrid(t, 1, 1, 1)).RGBAAt(0, 0)
	assert.Equal(t, color.RGBA{R: 0, G: 128, B: 102, A: 255}, low)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 102, A: 255}, high)
}

func TestOverlay_SameSize(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 2, 2))
	heat := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			base.SetRGBA(x, y, color.RGBA{R: 200, A: 255})
			heat.SetRGBA(x, y, color.RGBA{B: 200, A: 255})
		}
	}
	out, err := Overlay(base, heat, DefaultAlpha)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 90, G: 0, B: 110, A: 255}, out.RGBAAt(0, 0))
}

func TestOverlay_ResizesHeatmap(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 8, 6))
	heat := Heatmap(constGrid(t, 3, 4, 1))

	out, err := Overlay(base, heat, 1)
	require.NoError(t, err)
	assert.Equal(t, base.Bounds(), out.Bounds())
	want, got := heat.RGBAAt(0, 0), out.RGBAAt(5, 4)
	assert.InDelta(t, want.R, got.R, 1)
	assert.InDelta(t, want.G, got.G, 1)
	assert.InDelta(t, want.B, got.B, 1)
}

func TestOverlay_BadAlpha(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	_, err := Overlay(img, img, 1.5)
	assert.Error(t, err)
}

func TestEncodePNGBase64(t *testing.T) {
	img := Heatmap(constGrid(t, 3, 5, 0.25))
	s, err := EncodePNGBase64(img)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), decoded.Bounds())
}
