package raster

import (
	"errors"
	"fmt"
	"math"
)

// MaxPixels caps the area of a single grid
const MaxPixels = 1 << 26

// ErrShapeMismatch is returned when grids that must be co-registered differ in size
var ErrShapeMismatch = errors.New("grid shape mismatch")

// CheckSize rejects non-positive dimensions and areas that overflow or exceed MaxPixels
func CheckSize(h, w int) error {
	if h <= 0 || w <= 0 {
		return fmt.Errorf("invalid grid size %dx%d", h, w)
	}
	if w > math.MaxInt/h || h*w > MaxPixels {
		return fmt.Errorf("grid size %dx%d exceeds %d pixels", h, w, MaxPixels)
	}
	return nil
}

// Shape is the (height, width) of a grid
type Shape struct {
	H int `json:"height"`
	W int `json:"width"`
}

// Len returns the number of pixels
func (s Shape) Len() int {
	return s.H * s.W
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.H, s.W)
}

// Grid is an H×W float32 raster stored row-major
type Grid struct {
	shape Shape
	data  []float32
}

// NewGrid allocates a zero-filled grid. Sizes rejected by CheckSize yield an
// empty grid.
func NewGrid(h, w int) Grid {
	if CheckSize(h, w) != nil {
		h, w = 0, 0
	}
	return Grid{shape: Shape{H: h, W: w}, data: make([]float32, h*w)}
}

// GridFrom wraps data as an h×w grid. The slice is used without copying.
func GridFrom(h, w int, data []float32) (Grid, error) {
	if err := CheckSize(h, w); err != nil {
		return Grid{}, err
	}
	if len(data) != h*w {
		return Grid{}, fmt.Errorf("%w: %d values for %dx%d grid", ErrShapeMismatch, len(data), h, w)
	}
	return Grid{shape: Shape{H: h, W: w}, data: data}, nil
}

// Shape returns the grid dimensions
func (g Grid) Shape() Shape {
	return g.shape
}

// Len returns the number of pixels
func (g Grid) Len() int {
	return len(g.data)
}

// Data exposes the row-major backing slice
func (g Grid) Data() []float32 {
	return g.data
}

// At returns the value at row y, column x
func (g Grid) At(y, x int) float32 {
	return g.data[y*g.shape.W+x]
}

// Set stores v at row y, column x
func (g Grid) Set(y, x int, v float32) {
	g.data[y*g.shape.W+x] = v
}

// Clone returns a deep copy
func (g Grid) Clone() Grid {
	data := make([]float32, len(g.data))
	copy(data, g.data)
	return Grid{shape: g.shape, data: data}
}

// SameShape reports an ErrShapeMismatch when a and b differ in size
func SameShape(a, b Grid) error {
	if a.shape != b.shape {
		return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, a.shape, b.shape)
	}
	return nil
}

// Mask holds per-pixel integer labels (0 healthy, 1 stressed)
type Mask struct {
	shape Shape
	data  []int32
}

// NewMask allocates an all-zero mask
func NewMask(h, w int) Mask {
	if CheckSize(h, w) != nil {
		h, w = 0, 0
	}
	return Mask{shape: Shape{H: h, W: w}, data: make([]int32, h*w)}
}

// Shape returns the mask dimensions
func (m Mask) Shape() Shape {
	return m.shape
}

// Data exposes the row-major labels
func (m Mask) Data() []int32 {
	return m.data
}

// Coverage returns the fraction of non-zero pixels
func (m Mask) Coverage() float64 {
	if len(m.data) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.data {
		if v != 0 {
			n++
		}
	}
	return float64(n) / float64(len(m.data))
}
