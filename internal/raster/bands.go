package raster

import "fmt"

// ChannelNames lists the six reflectance channels in their fixed input order
var ChannelNames = []string{"blue", "green", "red", "red_edge", "nir", "swir"}

// Bands is a co-registered six-channel reflectance scene
type Bands struct {
	Blue    Grid
	Green   Grid
	Red     Grid
	RedEdge Grid
	NIR     Grid
	SWIR    Grid
}

// NewBands builds a band set, rejecting channels whose shape differs from blue
func NewBands(blue, green, red, redEdge, nir, swir Grid) (Bands, error) {
	b := Bands{Blue: blue, Green: green, Red: red, RedEdge: redEdge, NIR: nir, SWIR: swir}
	if err := b.Validate(); err != nil {
		return Bands{}, err
	}
	return b, nil
}

// BandsFromSlices builds a band set from six row-major slices in ChannelNames order
func BandsFromSlices(h, w int, channels [6][]float32) (Bands, error) {
	var grids [6]Grid
	for i, data := range channels {
		g, err := GridFrom(h, w, data)
		if err != nil {
			return Bands{}, fmt.Errorf("channel %s: %w", ChannelNames[i], err)
		}
		grids[i] = g
	}
	return NewBands(grids[0], grids[1], grids[2], grids[3], grids[4], grids[5])
}

// Validate checks that all six channels are non-empty and share one shape
func (b Bands) Validate() error {
	ref := b.Blue.Shape()
	if ref.Len() == 0 {
		return fmt.Errorf("%w: blue channel is empty", ErrShapeMismatch)
	}
	for i, g := range b.Channels() {
		if g.Shape() != ref {
			return fmt.Errorf("%w: channel %s is %s, expected %s", ErrShapeMismatch, ChannelNames[i], g.Shape(), ref)
		}
	}
	return nil
}

// Shape returns the common channel shape
func (b Bands) Shape() Shape {
	return b.Blue.Shape()
}

// Channels returns the grids in ChannelNames order
func (b Bands) Channels() [6]Grid {
	return [6]Grid{b.Blue, b.Green, b.Red, b.RedEdge, b.NIR, b.SWIR}
}
