package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"stressvision/internal/analytics"
	"stressvision/internal/classifier"
	"stressvision/internal/metrics"
	"stressvision/internal/raster"
	"stressvision/internal/spectral"
	"stressvision/internal/visual"

	"github.com/rs/zerolog/log"
)

// Result is everything produced for one analysed scene
type Result struct {
	RGB     *image.RGBA
	NDVI    *image.RGBA
	Overlay *image.RGBA
	Stress  raster.Grid

	StressPercentage float64
	AlertLevel       analytics.Level
	Distribution     analytics.Distribution
	Forecast         []float64
	Advice           analytics.Advice
	Advisory         string

	Elapsed time.Duration
}

// Analyzer runs the full serving path for a band set
type Analyzer struct {
	classifier *classifier.Service
	alpha      float64
}

// NewAnalyzer creates an analyzer that scores pixels with svc
func NewAnalyzer(svc *classifier.Service) *Analyzer {
	return &Analyzer{classifier: svc, alpha: visual.DefaultAlpha}
}

// Analyze validates the bands, classifies every pixel and derives the images
// and field-level analytics from the resulting stress map
func (a *Analyzer) Analyze(ctx context.Context, bands raster.Bands) (res *Result, err error) {
	start := time.Now()
	defer func() {
		level, pct := "", 0.0
		if res != nil {
			level, pct = string(res.AlertLevel), res.StressPercentage
		}
		metrics.RecordAnalysis(level, pct, err)
	}()

	if err := bands.Validate(); err != nil {
		return nil, err
	}
	shape := bands.Shape()
	log.Debug().Str("shape", shape.String()).Msg("Analyzing scene")

	stageStart := time.Now()
	fm, shape, indices, err := spectral.BuildFeatureStack(bands)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}
	metrics.ObserveStage("features", stageStart)

	stageStart = time.Now()
	stress, err := a.classifier.Predict(ctx, fm, shape)
	if err != nil {
		return nil, fmt.Errorf("failed to classify scene: %w", err)
	}
	metrics.ObserveStage("classify", stageStart)

	stageStart = time.Now()
	rgb, err := visual.RenderRGB(bands)
	if err != nil {
		return nil, err
	}
	overlay, err := visual.Overlay(rgb, visual.Heatmap(stress), a.alpha)
	if err != nil {
		return nil, err
	}
	ndvi := visual.NDVIColor(indices.NDVI)
	metrics.ObserveStage("render", stageStart)

	stageStart = time.Now()
	raw := analytics.StressPercentage(stress)
	level := analytics.AlertLevel(raw)
	pct := analytics.Round1(raw)
	advice := analytics.Advise(level, pct)
	res = &Result{
		RGB:              rgb,
		NDVI:             ndvi,
		Overlay:          overlay,
		Stress:           stress,
		StressPercentage: pct,
		AlertLevel:       level,
		Distribution:     analytics.ComputeDistribution(stress),
		Forecast:         analytics.Forecast(raw, analytics.NewForecastRand()),
		Advice:           advice,
		Advisory:         advice.Message(),
	}
	metrics.ObserveStage("analytics", stageStart)

	res.Elapsed = time.Since(start)
	log.Info().
		Str("shape", shape.String()).
		Float64("stress_pct", pct).
		Str("alert", string(level)).
		Dur("took", res.Elapsed).
		Msg("Scene analyzed")
	return res, nil
}
