package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"stressvision/internal/spectral"

	"github.com/klauspost/compress/zstd"
)

const (
	artifactFormat  = "stressvision.forest"
	artifactVersion = 1
)

// ErrCorruptModel is returned when an artifact cannot be decoded or fails validation
var ErrCorruptModel = errors.New("corrupt model artifact")

// artifact is the serialized envelope around a trained forest
type artifact struct {
	Format         string    `json:"format"`
	Version        int       `json:"version"`
	FeatureColumns []string  `json:"feature_columns"`
	TrainedAt      time.Time `json:"trained_at"`
	Forest         *Forest   `json:"forest"`
}

// Encode serializes a forest together with the feature column order it was
// trained against, compressed with zstd
func Encode(f *Forest) ([]byte, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, errors.New("cannot encode an empty forest")
	}
	raw, err := json.Marshal(artifact{
		Format:         artifactFormat,
		Version:        artifactVersion,
		FeatureColumns: spectral.FeatureColumns,
		TrainedAt:      time.Now().UTC(),
		Forest:         f,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode restores a forest produced by Encode. It rejects artifacts whose
// feature columns differ from spectral.FeatureColumns, since a reordered
// matrix would be silently misread.
func Decode(blob []byte) (*Forest, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}

	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	if a.Format != artifactFormat || a.Version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported format %q version %d", ErrCorruptModel, a.Format, a.Version)
	}
	if !slices.Equal(a.FeatureColumns, spectral.FeatureColumns) {
		return nil, fmt.Errorf("%w: trained on columns %v, serving builds %v", ErrFeatureMismatch, a.FeatureColumns, spectral.FeatureColumns)
	}
	if err := validateForest(a.Forest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	return a.Forest, nil
}

func validateForest(f *Forest) error {
	if f == nil || len(f.Trees) == 0 {
		return errors.New("no trees")
	}
	if f.Features != len(spectral.FeatureColumns) {
		return fmt.Errorf("forest declares %d features", f.Features)
	}
	for t, tree := range f.Trees {
		n := int32(len(tree.Nodes))
		if n == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for i, node := range tree.Nodes {
			if node.Feature < 0 {
				continue
			}
			if node.Feature >= f.Features {
				return fmt.Errorf("tree %d node %d splits on feature %d", t, i, node.Feature)
			}
			// children are always appended after their parent
			if node.Left <= int32(i) || node.Left >= n || node.Right <= int32(i) || node.Right >= n {
				return fmt.Errorf("tree %d node %d has out-of-range children", t, i)
			}
		}
	}
	return nil
}
