package visual

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"stressvision/internal/raster"

	"golang.org/x/image/draw"
)

// DefaultAlpha is the heatmap weight used when blending over the RGB render
const DefaultAlpha = 0.55

// rgbGain brightens dark surface reflectance for display
const rgbGain = 4

// RenderRGB builds a pseudo true-colour image from the red, green and blue bands
func RenderRGB(b raster.Bands) (*image.RGBA, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	shape := b.Shape()
	img := image.NewRGBA(image.Rect(0, 0, shape.W, shape.H))
	red, green, blue := b.Red.Data(), b.Green.Data(), b.Blue.Data()
	for i := range red {
		img.SetRGBA(i%shape.W, i/shape.W, color.RGBA{
			R: quantize(red[i] * rgbGain),
			G: quantize(green[i] * rgbGain),
			B: quantize(blue[i] * rgbGain),
			A: 0xff,
		})
	}
	return img, nil
}

// Heatmap colours a stress map from blue (healthy) through cyan, green and
// yellow to red (critical)
func Heatmap(stress raster.Grid) *image.RGBA {
	return colorize(stress, func(v float32) float32 { return v }, jet)
}

// NDVIColor rescales NDVI from [-1,1] and applies a green sequential ramp
func NDVIColor(ndvi raster.Grid) *image.RGBA {
	return colorize(ndvi, func(v float32) float32 { return (v + 1) / 2 }, summer)
}

// Overlay blends heat over base with weight alpha. heat is resized to the
// bounds of base first when the two differ.
func Overlay(base, heat image.Image, alpha float64) (*image.RGBA, error) {
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("overlay alpha %.2f outside [0,1]", alpha)
	}
	bounds := base.Bounds()
	if heat.Bounds().Size() != bounds.Size() {
		scaled := image.NewRGBA(bounds)
		draw.BiLinear.Scale(scaled, bounds, heat, heat.Bounds(), draw.Src, nil)
		heat = scaled
	}

	out := image.NewRGBA(bounds)
	hb := heat.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c1 := color.RGBAModel.Convert(base.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA)
			c2 := color.RGBAModel.Convert(heat.At(hb.Min.X+x, hb.Min.Y+y)).(color.RGBA)
			out.SetRGBA(bounds.Min.X+x, bounds.Min.Y+y, color.RGBA{
				R: blend(c1.R, c2.R, alpha),
				G: blend(c1.G, c2.G, alpha),
				B: blend(c1.B, c2.B, alpha),
				A: 0xff,
			})
		}
	}
	return out, nil
}

// EncodePNGBase64 encodes img as PNG and returns it base64 encoded
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func colorize(g raster.Grid, scale func(float32) float32, cmap func(float64) color.RGBA) *image.RGBA {
	shape := g.Shape()
	img := image.NewRGBA(image.Rect(0, 0, shape.W, shape.H))
	for i, v := range g.Data() {
		level := quantize(scale(v))
		img.SetRGBA(i%shape.W, i/shape.W, cmap(float64(level)/255))
	}
	return img
}

// quantize clips v to [0,1] and truncates to 8 bits. NaN maps to 0.
func quantize(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}

func blend(a, b uint8, alpha float64) uint8 {
	v := float64(a)*(1-alpha) + float64(b)*alpha
	return uint8(math.Min(math.Round(v), 255))
}

// jet is the classic piecewise-linear rainbow ramp
func jet(v float64) color.RGBA {
	ch := func(center float64) uint8 {
		c := 1.5 - math.Abs(4*v-center)
		return uint8(math.Round(math.Max(0, math.Min(1, c)) * 255))
	}
	return color.RGBA{R: ch(3), G: ch(2), B: ch(1), A: 0xff}
}

// summer ramps from green to yellow
func summer(v float64) color.RGBA {
	return color.RGBA{
		R: uint8(math.Round(v * 255)),
		G: uint8(math.Round((0.5 + v/2) * 255)),
		B: uint8(math.Round(0.4 * 255)),
		A: 0xff,
	}
}
