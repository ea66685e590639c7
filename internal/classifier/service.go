package classifier

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"stressvision/internal/metrics"
	"stressvision/internal/raster"
	"stressvision/internal/spectral"

	"github.com/rs/zerolog/log"
)

// Service owns the trained model for the lifetime of the process. It is built
// once at startup and handed to every caller that needs inference. The artifact
// is read from the store at most once; every caller, including concurrent first
// callers, observes the same model or the same load error.
type Service struct {
	store Store

	once  sync.Once
	model Model
	err   error
}

// NewService creates a service that loads its model lazily from store
func NewService(store Store) *Service {
	return &Service{store: store}
}

// NewServiceWithModel creates a service around an already-built model
func NewServiceWithModel(m Model) *Service {
	s := &Service{model: m}
	s.once.Do(func() {})
	return s
}

// Model returns the loaded model, loading it on first use. A failed load is
// not retried; the same error is returned to every later caller.
func (s *Service) Model(ctx context.Context) (Model, error) {
	s.once.Do(func() {
		s.model, s.err = s.load(context.WithoutCancel(ctx))
	})
	return s.model, s.err
}

func (s *Service) load(ctx context.Context) (Model, error) {
	start := time.Now()
	log.Info().Str("store", s.store.String()).Msg("Loading stress model")

	m, err := func() (Model, error) {
		blob, err := s.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		forest, err := Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode model from %s: %w", s.store, err)
		}
		return forest, nil
	}()

	metrics.RecordModelLoad(storeKind(s.store), time.Since(start), err)
	if err != nil {
		log.Error().Err(err).Str("store", s.store.String()).Msg("Model load failed")
		return nil, err
	}
	log.Info().Dur("took", time.Since(start)).Msg("✓ Stress model loaded")
	return m, nil
}

// Predict scores every row of fm and reshapes the probabilities to shape in
// row-major order. NaN and infinite features are replaced with 0 first.
func (s *Service) Predict(ctx context.Context, fm *spectral.FeatureMatrix, shape raster.Shape) (raster.Grid, error) {
	m, err := s.Model(ctx)
	if err != nil {
		return raster.Grid{}, err
	}
	if fm.Rows != shape.Len() {
		return raster.Grid{}, fmt.Errorf("%w: %d feature rows for %s stress map", raster.ErrShapeMismatch, fm.Rows, shape)
	}
	if fm.Cols != m.NumFeatures() {
		return raster.Grid{}, fmt.Errorf("%w: matrix has %d columns, model expects %d", ErrFeatureMismatch, fm.Cols, m.NumFeatures())
	}

	proba, err := m.PredictProba(fm.Sanitized())
	if err != nil {
		return raster.Grid{}, fmt.Errorf("inference failed: %w", err)
	}
	if len(proba) != fm.Rows {
		return raster.Grid{}, fmt.Errorf("inference failed: model returned %d probabilities for %d rows", len(proba), fm.Rows)
	}

	data := make([]float32, len(proba))
	for i, p := range proba {
		if math.IsNaN(p) {
			continue
		}
		data[i] = float32(min(max(p, 0), 1))
	}
	metrics.PixelsClassified.Add(float64(len(data)))
	return raster.GridFrom(shape.H, shape.W, data)
}

func storeKind(s Store) string {
	switch s.(type) {
	case *FileStore:
		return "file"
	case *RedisStore:
		return "redis"
	}
	return "other"
}
