package spectral

import (
	"fmt"
	"math"

	"stressvision/internal/raster"
)

// FeatureColumns is the column order of every feature matrix. The classifier
// artifact records it at training time and refuses to load against a different order.
var FeatureColumns = []string{"ndvi", "ndre", "msi", "ndvi_zscore", "nir", "swir"}

// NumFeatures is len(FeatureColumns)
const NumFeatures = 6

// FeatureMatrix is a dense row-major N×Cols float32 matrix, one row per pixel
type FeatureMatrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewFeatureMatrix allocates a zeroed rows×cols matrix
func NewFeatureMatrix(rows, cols int) *FeatureMatrix {
	return &FeatureMatrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// Row returns the i-th row without copying
func (m *FeatureMatrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns element (i, j)
func (m *FeatureMatrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Append stacks the rows of other below m
func (m *FeatureMatrix) Append(other *FeatureMatrix) error {
	if m.Rows > 0 && other.Cols != m.Cols {
		return fmt.Errorf("cannot append %d-column matrix to %d-column matrix", other.Cols, m.Cols)
	}
	if m.Rows == 0 {
		m.Cols = other.Cols
	}
	m.Data = append(m.Data, other.Data...)
	m.Rows += other.Rows
	return nil
}

// Sanitized returns a copy with NaN and ±Inf replaced by 0
func (m *FeatureMatrix) Sanitized() *FeatureMatrix {
	out := &FeatureMatrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float32, len(m.Data))}
	for i, v := range m.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out.Data[i] = v
	}
	return out
}

// IndexMaps holds the named index grids kept for visualization
type IndexMaps struct {
	NDVI raster.Grid
	NDRE raster.Grid
	MSI  raster.Grid
}

// ByName looks an index grid up by its feature column name
func (im IndexMaps) ByName(name string) (raster.Grid, bool) {
	switch name {
	case "ndvi":
		return im.NDVI, true
	case "ndre":
		return im.NDRE, true
	case "msi":
		return im.MSI, true
	}
	return raster.Grid{}, false
}

// BuildFeatureStack computes the indices for a band set and flattens them, with
// the raw NIR and SWIR bands, into a matrix whose columns follow FeatureColumns
// and whose rows follow row-major pixel order.
func BuildFeatureStack(b raster.Bands) (*FeatureMatrix, raster.Shape, IndexMaps, error) {
	if err := b.Validate(); err != nil {
		return nil, raster.Shape{}, IndexMaps{}, err
	}

	ndvi, err := NDVI(b.NIR, b.Red)
	if err != nil {
		return nil, raster.Shape{}, IndexMaps{}, err
	}
	ndre, err := NDRE(b.NIR, b.RedEdge)
	if err != nil {
		return nil, raster.Shape{}, IndexMaps{}, err
	}
	msi, err := MSI(b.SWIR, b.NIR)
	if err != nil {
		return nil, raster.Shape{}, IndexMaps{}, err
	}
	zscore := ZScoreAnomaly(ndvi)

	shape := b.Shape()
	columns := [NumFeatures][]float32{
		ndvi.Data(),
		ndre.Data(),
		msi.Data(),
		zscore.Data(),
		b.NIR.Data(),
		b.SWIR.Data(),
	}

	fm := NewFeatureMatrix(shape.Len(), NumFeatures)
	for i := 0; i < fm.Rows; i++ {
		row := fm.Row(i)
		for j, col := range columns {
			row[j] = col[i]
		}
	}

	return fm, shape, IndexMaps{NDVI: ndvi, NDRE: ndre, MSI: msi}, nil
}
