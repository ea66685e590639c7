package raster

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridFrom(t *testing.T) {
	tests := []struct {
		name    string
		h, w    int
		data    []float32
		wantErr bool
	}{
		{name: "exact fit", h: 2, w: 3, data: make([]float32, 6)},
		{name: "too short", h: 2, w: 3, data: make([]float32, 5), wantErr: true},
		{name: "zero height", h: 0, w: 3, data: nil, wantErr: true},
		{name: "area overflows int", h: 3, w: 6148914691236517206, data: make([]float32, 2), wantErr: true},
		{name: "area over pixel cap", h: 1, w: MaxPixels + 1, data: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GridFrom(tt.h, tt.w, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("GridFrom() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewGrid_RejectsHugeSizes(t *testing.T) {
	g := NewGrid(3, 6148914691236517206)
	assert.Equal(t, Shape{}, g.Shape())
	assert.Equal(t, 0, g.Len())

	m := NewMask(1<<30, 1<<30)
	assert.Equal(t, Shape{}, m.Shape())
}

func TestBandsFromSlices_OverflowingShape(t *testing.T) {
	var ch [6][]float32
	for i := range ch {
		ch[i] = make([]float32, 2)
	}
	_, err := BandsFromSlices(3, 6148914691236517206, ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestGridRowMajor(t *testing.T) {
	g := NewGrid(2, 3)
	g.Set(1, 2, 7)
	assert.Equal(t, float32(7), g.Data()[5])
	assert.Equal(t, float32(7), g.At(1, 2))

	c := g.Clone()
	c.Set(0, 0, 1)
	assert.Equal(t, float32(0), g.At(0, 0), "clone must not alias")
}

func TestNewBands_ShapeMismatch(t *testing.T) {
	ok := NewGrid(4, 4)
	bad := NewGrid(4, 5)

	_, err := NewBands(ok, ok, ok, ok, bad, ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Contains(t, err.Error(), "nir")

	b, err := NewBands(ok, ok, ok, ok, ok, ok)
	require.NoError(t, err)
	assert.Equal(t, Shape{H: 4, W: 4}, b.Shape())
}

func TestBandsFromSlices(t *testing.T) {
	var ch [6][]float32
	for i := range ch {
		ch[i] = make([]float32, 6)
	}
	_, err := BandsFromSlices(2, 3, ch)
	require.NoError(t, err)

	ch[3] = make([]float32, 4)
	_, err = BandsFromSlices(2, 3, ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "red_edge")
}

func TestMaskCoverage(t *testing.T) {
	m := NewMask(2, 2)
	assert.Equal(t, 0.0, m.Coverage())
	m.Data()[0] = 1
	assert.Equal(t, 0.25, m.Coverage())
}
