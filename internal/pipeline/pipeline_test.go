package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stressvision/internal/analytics"
	"stressvision/internal/classifier"
	"stressvision/internal/metrics"
	"stressvision/internal/raster"
	"stressvision/internal/spectral"
	"stressvision/internal/synth"
	"stressvision/internal/training"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	forestOnce sync.Once
	forest     *classifier.Forest
	forestErr  error
)

func trainedService(t *testing.T) *classifier.Service {
	t.Helper()
	forestOnce.Do(func() {
		cfg := training.Config{
			Scenes:       3,
			Height:       128,
			Width:        128,
			Seed:         5,
			TestFraction: 0.2,
			Forest: classifier.ForestConfig{
				Trees:           15,
				MaxDepth:        8,
				MinSamplesSplit: 10,
				MaxSamples:      5000,
				Seed:            5,
			},
		}
		out, err := training.Run(context.Background(), cfg)
		if err != nil {
			forestErr = err
			return
		}
		forest = out.Forest
	})
	require.NoError(t, forestErr)
	return classifier.NewServiceWithModel(forest)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	analyzer := NewAnalyzer(trainedService(t))

	tests := []struct {
		name   string
		preset synth.PresetFunc
		check  func(t *testing.T, res *Result)
	}{
		{
			name:   "healthy field",
			preset: synth.HealthyField,
			check: func(t *testing.T, res *Result) {
				assert.Less(t, res.StressPercentage, 30.0)
				assert.Equal(t, analytics.Safe, res.AlertLevel)
			},
		},
		{
			name:   "severe drought",
			preset: synth.SevereDrought,
			check: func(t *testing.T, res *Result) {
				assert.Greater(t, res.StressPercentage, 60.0)
				assert.Equal(t, analytics.Critical, res.AlertLevel)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene, err := tt.preset(192, 192)
			require.NoError(t, err)

			res, err := analyzer.Analyze(context.Background(), scene.Bands)
			require.NoError(t, err)
			tt.check(t, res)

			assert.Equal(t, raster.Shape{H: 192, W: 192}, res.Stress.Shape())
			assert.Equal(t, 192, res.RGB.Bounds().Dx())
			assert.Equal(t, res.RGB.Bounds(), res.Overlay.Bounds())
			assert.Equal(t, res.RGB.Bounds(), res.NDVI.Bounds())
			assert.Len(t, res.Forecast, analytics.ForecastDays)
			assert.Equal(t, res.StressPercentage, res.Forecast[0])
			d := res.Distribution
			assert.InDelta(t, 100, d.Healthy+d.Moderate+d.Critical, 0.2)
			assert.NotEmpty(t, res.Advisory)
			for _, v := range res.Stress.Data() {
				if v < 0 || v > 1 {
					t.Fatalf("stress value %v outside [0,1]", v)
				}
			}
		})
	}
}

type fixedModel struct {
	stressed int
}

func (m fixedModel) NumFeatures() int { return spectral.NumFeatures }

func (m fixedModel) PredictProba(fm *spectral.FeatureMatrix) ([]float64, error) {
	probs := make([]float64, fm.Rows)
	for i := 0; i < m.stressed && i < len(probs); i++ {
		probs[i] = 0.9
	}
	return probs, nil
}

func TestAnalyze_AlertTierFromUnroundedPercentage(t *testing.T) {
	analyzer := NewAnalyzer(classifier.NewServiceWithModel(fixedModel{stressed: 2996}))
	scene, err := synth.HealthyField(100, 100)
	require.NoError(t, err)

	res, err := analyzer.Analyze(context.Background(), scene.Bands)
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.StressPercentage)
	assert.Equal(t, analytics.Safe, res.AlertLevel)
	assert.Equal(t, 30.0, res.Forecast[0])
}

func TestAnalyze_RejectsMismatchedBands(t *testing.T) {
	analyzer := NewAnalyzer(classifier.NewServiceWithModel(&classifier.Forest{}))
	scene, err := synth.HealthyField(8, 8)
	require.NoError(t, err)
	scene.Bands.SWIR = raster.NewGrid(8, 7)

	_, err = analyzer.Analyze(context.Background(), scene.Bands)
	assert.ErrorIs(t, err, raster.ErrShapeMismatch)
}

func TestAnalyze_ModelUnavailable(t *testing.T) {
	svc := classifier.NewService(classifier.NewFileStore(t.TempDir() + "/missing.model"))
	analyzer := NewAnalyzer(svc)
	scene, err := synth.HealthyField(8, 8)
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), scene.Bands)
	assert.ErrorIs(t, err, classifier.ErrModelNotFound)
}

type slowAnalyzer struct {
	running atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
}

func (s *slowAnalyzer) Analyze(_ context.Context, _ raster.Bands) (*Result, error) {
	n := s.running.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	s.running.Add(-1)
	return &Result{StressPercentage: 1}, nil
}

func TestPool_BoundsParallelism(t *testing.T) {
	sa := &slowAnalyzer{delay: 10 * time.Millisecond}
	pool := NewPool(sa, 3, 16)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := pool.Analyze(context.Background(), raster.Bands{})
			assert.NoError(t, err)
			assert.Equal(t, 1.0, res.StressPercentage)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, sa.peak.Load(), int32(3))
}

func TestPool_ContextBoundsWait(t *testing.T) {
	sa := &slowAnalyzer{delay: 200 * time.Millisecond}
	pool := NewPool(sa, 1, 0)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Analyze(ctx, raster.Bands{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPool_Closed(t *testing.T) {
	pool := NewPool(&slowAnalyzer{}, 1, 1)
	pool.Close()
	pool.Close()

	_, err := pool.Analyze(context.Background(), raster.Bands{})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

type panickyAnalyzer struct {
	calls atomic.Int32
}

func (p *panickyAnalyzer) Analyze(_ context.Context, bands raster.Bands) (*Result, error) {
	if p.calls.Add(1) == 1 {
		_ = bands.Blue.Data()[bands.Shape().Len()]
	}
	return &Result{StressPercentage: 2}, nil
}

func TestPool_RecoversFromPanickingAnalysis(t *testing.T) {
	pool := NewPool(&panickyAnalyzer{}, 1, 1)
	defer pool.Close()

	_, err := pool.Analyze(context.Background(), raster.Bands{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	res, err := pool.Analyze(context.Background(), raster.Bands{})
	require.NoError(t, err, "worker must survive the panic")
	assert.Equal(t, 2.0, res.StressPercentage)
}

func TestPool_RejectsOverflowingBands(t *testing.T) {
	pool := NewPool(NewAnalyzer(classifier.NewServiceWithModel(&classifier.Forest{})), 1, 1)
	defer pool.Close()

	var ch [6][]float32
	for i := range ch {
		ch[i] = make([]float32, 2)
	}
	bands, err := raster.BandsFromSlices(3, 6148914691236517206, ch)
	require.Error(t, err)

	_, err = pool.Analyze(context.Background(), bands)
	assert.ErrorIs(t, err, raster.ErrShapeMismatch)
}

type blockingAnalyzer struct {
	started atomic.Bool
	release chan struct{}
}

func (b *blockingAnalyzer) Analyze(_ context.Context, _ raster.Bands) (*Result, error) {
	b.started.Store(true)
	<-b.release
	return &Result{}, nil
}

func TestPool_QueueDepthSettlesAfterTimeout(t *testing.T) {
	baseline := testutil.ToFloat64(metrics.QueueDepth)
	ba := &blockingAnalyzer{release: make(chan struct{})}
	pool := NewPool(ba, 1, 0)

	done := make(chan error, 1)
	go func() {
		_, err := pool.Analyze(context.Background(), raster.Bands{})
		done <- err
	}()
	require.Eventually(t, ba.started.Load, time.Second, time.Millisecond)
	assert.Equal(t, baseline, testutil.ToFloat64(metrics.QueueDepth))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Analyze(ctx, raster.Bands{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, baseline, testutil.ToFloat64(metrics.QueueDepth))

	close(ba.release)
	require.NoError(t, <-done)
	pool.Close()
	assert.Equal(t, baseline, testutil.ToFloat64(metrics.QueueDepth))
}
