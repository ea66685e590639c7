package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"stressvision/internal/classifier"
	"stressvision/internal/metrics"
	"stressvision/internal/spectral"
	"stressvision/internal/synth"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Per-scene stress ratio is drawn uniformly from this range
const (
	minSceneRatio = 0.2
	maxSceneRatio = 0.5
)

// Config describes one training run
type Config struct {
	Scenes       int
	Height       int
	Width        int
	Seed         uint64
	TestFraction float64
	Workers      int
	Forest       classifier.ForestConfig
}

// DefaultConfig is the run the train command performs without flags
func DefaultConfig() Config {
	return Config{
		Scenes:       50,
		Height:       256,
		Width:        256,
		Seed:         42,
		TestFraction: 0.2,
		Forest:       classifier.DefaultForestConfig(),
	}
}

func (c Config) validate() error {
	if c.Scenes < 1 {
		return errors.New("scene count must be at least 1")
	}
	if c.Height < 1 || c.Width < 1 {
		return fmt.Errorf("invalid scene size %dx%d", c.Height, c.Width)
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("test fraction %.2f outside (0,1)", c.TestFraction)
	}
	return nil
}

// Outcome is the result of a training run
type Outcome struct {
	Forest    *classifier.Forest
	Report    classifier.Report
	TrainRows int
	TestRows  int
	Elapsed   time.Duration
}

type sceneSpec struct {
	seed  uint64
	ratio float64
}

// Run generates labelled synthetic scenes, fits a forest on a stratified
// training split and evaluates it on the held-out rows
func Run(ctx context.Context, cfg Config) (out *Outcome, err error) {
	start := time.Now()
	defer func() { metrics.RecordTrainingRun(err) }()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// draw every scene's parameters up front so results do not depend on scheduling
	r := synth.NewRand(cfg.Seed)
	specs := make([]sceneSpec, cfg.Scenes)
	for i := range specs {
		specs[i] = sceneSpec{
			seed:  r.Uint64(),
			ratio: minSceneRatio + r.Float64()*(maxSceneRatio-minSceneRatio),
		}
	}

	log.Info().Int("scenes", cfg.Scenes).Int("height", cfg.Height).Int("width", cfg.Width).Msg("Generating synthetic scenes")
	features := make([]*spectral.FeatureMatrix, cfg.Scenes)
	labels := make([][]int32, cfg.Scenes)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, spec := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scene, err := synth.Generate(cfg.Height, cfg.Width, spec.ratio, synth.NewRand(spec.seed))
			if err != nil {
				return fmt.Errorf("scene %d: %w", i, err)
			}
			fm, _, _, err := spectral.BuildFeatureStack(scene.Bands)
			if err != nil {
				return fmt.Errorf("scene %d: %w", i, err)
			}
			features[i] = fm
			labels[i] = scene.Labels.Data()
			log.Debug().Int("scene", i).Float64("ratio", spec.ratio).Float64("coverage", scene.Labels.Coverage()).Msg("Scene generated")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := spectral.NewFeatureMatrix(0, spectral.NumFeatures)
	var y []int32
	for i := range features {
		if err := all.Append(features[i]); err != nil {
			return nil, err
		}
		y = append(y, labels[i]...)
	}
	all = all.Sanitized()

	trainIdx, testIdx, err := classifier.StratifiedSplit(y, cfg.TestFraction, rand.New(rand.NewPCG(cfg.Seed, 1)))
	if err != nil {
		return nil, fmt.Errorf("failed to split dataset: %w", err)
	}
	xTrain, yTrain := classifier.Subset(all, y, trainIdx)
	xTest, yTest := classifier.Subset(all, y, testIdx)
	log.Info().Int("train", len(trainIdx)).Int("test", len(testIdx)).Msg("Dataset split")

	fitStart := time.Now()
	forestCfg := cfg.Forest
	if forestCfg.Workers == 0 {
		forestCfg.Workers = workers
	}
	forest, err := classifier.Fit(ctx, xTrain, yTrain, forestCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fit forest: %w", err)
	}
	log.Info().Int("trees", len(forest.Trees)).Dur("took", time.Since(fitStart)).Msg("Forest fitted")

	pred, err := forest.Predict(xTest)
	if err != nil {
		return nil, err
	}
	report, err := classifier.Evaluate(yTest, pred)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Forest:    forest,
		Report:    report,
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		Elapsed:   time.Since(start),
	}, nil
}
