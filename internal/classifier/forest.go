package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"stressvision/internal/spectral"

	"golang.org/x/sync/errgroup"
)

// ErrFeatureMismatch is returned when a feature matrix does not have the column
// count the model was trained on
var ErrFeatureMismatch = errors.New("feature count does not match model")

// Model is a binary probabilistic classifier over feature matrix rows
type Model interface {
	NumFeatures() int
	// PredictProba returns the probability of the stressed class per row
	PredictProba(fm *spectral.FeatureMatrix) ([]float64, error)
}

// ForestConfig controls ensemble fitting
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	// MaxSamples caps each tree's bootstrap sample; 0 means one draw per row
	MaxSamples int
	// MaxFeatures is the number of candidate features per split; 0 means sqrt(n)
	MaxFeatures int
	Seed        uint64
	Workers     int
}

// DefaultForestConfig mirrors the ensemble the service has always shipped with
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        12,
		MinSamplesSplit: 10,
		MaxSamples:      50000,
		Seed:            42,
	}
}

// Node is one split or leaf of a decision tree. Leaves have Feature == -1 and
// carry the weighted fraction of stressed samples in Value.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float32 `json:"t,omitempty"`
	Left      int32   `json:"l,omitempty"`
	Right     int32   `json:"r,omitempty"`
	Value     float32 `json:"v"`
}

// Tree is a flat array of nodes rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(row []float32) float32 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = int(n.Left)
		} else {
			i = int(n.Right)
		}
	}
}

// Forest is a bagged ensemble of CART trees with balanced class weights
type Forest struct {
	Features int    `json:"features"`
	Trees    []Tree `json:"trees"`
}

// NumFeatures implements Model
func (f *Forest) NumFeatures() int {
	return f.Features
}

// PredictProba averages the leaf probabilities of every tree
func (f *Forest) PredictProba(fm *spectral.FeatureMatrix) ([]float64, error) {
	if fm.Cols != f.Features {
		return nil, fmt.Errorf("%w: got %d columns, model expects %d", ErrFeatureMismatch, fm.Cols, f.Features)
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	out := make([]float64, fm.Rows)
	scale := 1 / float64(len(f.Trees))
	for i := range out {
		row := fm.Row(i)
		sum := 0.0
		for t := range f.Trees {
			sum += float64(f.Trees[t].predict(row))
		}
		out[i] = sum * scale
	}
	return out, nil
}

// Predict returns hard labels, stressed when the probability exceeds one half
func (f *Forest) Predict(fm *spectral.FeatureMatrix) ([]int32, error) {
	proba, err := f.PredictProba(fm)
	if err != nil {
		return nil, err
	}
	labels := make([]int32, len(proba))
	for i, p := range proba {
		if p > 0.5 {
			labels[i] = 1
		}
	}
	return labels, nil
}

// Fit trains a forest on x with binary labels y. Trees are grown in parallel,
// each from its own seeded generator, so the result depends only on the inputs
// and cfg.Seed.
func Fit(ctx context.Context, x *spectral.FeatureMatrix, y []int32, cfg ForestConfig) (*Forest, error) {
	if x.Rows == 0 || x.Cols == 0 {
		return nil, errors.New("empty training matrix")
	}
	if len(y) != x.Rows {
		return nil, fmt.Errorf("%d labels for %d rows", len(y), x.Rows)
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("tree count must be positive, got %d", cfg.Trees)
	}

	var counts [2]int
	for _, l := range y {
		if l != 0 && l != 1 {
			return nil, fmt.Errorf("label %d is not binary", l)
		}
		counts[l]++
	}
	if counts[0] == 0 || counts[1] == 0 {
		return nil, fmt.Errorf("training set needs both classes, got %d healthy and %d stressed", counts[0], counts[1])
	}
	n := float64(x.Rows)
	weights := [2]float64{n / (2 * float64(counts[0])), n / (2 * float64(counts[1]))}

	mtry := cfg.MaxFeatures
	if mtry <= 0 || mtry > x.Cols {
		mtry = max(1, int(math.Sqrt(float64(x.Cols))))
	}
	samples := cfg.MaxSamples
	if samples <= 0 || samples > x.Rows {
		samples = x.Rows
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	forest := &Forest{Features: x.Cols, Trees: make([]Tree, cfg.Trees)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := 0; t < cfg.Trees; t++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := rand.New(rand.NewPCG(cfg.Seed, uint64(t)))
			idx := make([]int32, samples)
			for i := range idx {
				idx[i] = int32(r.IntN(x.Rows))
			}
			b := &builder{x: x, y: y, weights: weights, cfg: cfg, mtry: mtry, r: r}
			b.grow(idx, 0)
			forest.Trees[t] = Tree{Nodes: b.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return forest, nil
}

type builder struct {
	x       *spectral.FeatureMatrix
	y       []int32
	weights [2]float64
	cfg     ForestConfig
	mtry    int
	r       *rand.Rand
	nodes   []Node
	pairs   []sample
}

type sample struct {
	v float32
	i int32
}

type split struct {
	feature   int
	threshold float32
	score     float64
	ok        bool
}

// grow appends the subtree for idx and returns its root index
func (b *builder) grow(idx []int32, depth int) int32 {
	var w [2]float64
	for _, i := range idx {
		w[b.y[i]] += b.weights[b.y[i]]
	}
	total := w[0] + w[1]
	value := float32(0)
	if total > 0 {
		value = float32(w[1] / total)
	}

	self := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Feature: -1, Value: value})

	if depth >= b.cfg.MaxDepth || len(idx) < b.cfg.MinSamplesSplit || w[0] == 0 || w[1] == 0 {
		return self
	}

	best := b.bestSplit(idx)
	if !best.ok {
		return self
	}

	// partition in place: rows at or below the threshold first
	lo, hi := 0, len(idx)-1
	for lo <= hi {
		if b.x.At(int(idx[lo]), best.feature) <= best.threshold {
			lo++
		} else {
			idx[lo], idx[hi] = idx[hi], idx[lo]
			hi--
		}
	}
	if lo == 0 || lo == len(idx) {
		return self
	}

	left := b.grow(idx[:lo], depth+1)
	right := b.grow(idx[lo:], depth+1)
	b.nodes[self] = Node{Feature: best.feature, Threshold: best.threshold, Left: left, Right: right, Value: value}
	return self
}

// bestSplit searches a random subset of features, falling back to the rest when
// none of the sampled ones can separate the rows
func (b *builder) bestSplit(idx []int32) split {
	order := b.r.Perm(b.x.Cols)
	best := split{score: math.Inf(1)}
	for k, f := range order {
		if k >= b.mtry && best.ok {
			break
		}
		if s := b.scanFeature(idx, f); s.ok && s.score < best.score {
			best = s
		}
	}
	return best
}

// scanFeature finds the threshold on feature f minimising weighted Gini impurity
func (b *builder) scanFeature(idx []int32, f int) split {
	pairs := b.pairs[:0]
	for _, i := range idx {
		pairs = append(pairs, sample{v: b.x.At(int(i), f), i: i})
	}
	b.pairs = pairs
	slices.SortFunc(pairs, func(a, c sample) int {
		switch {
		case a.v < c.v:
			return -1
		case a.v > c.v:
			return 1
		}
		return 0
	})

	var total [2]float64
	for _, p := range pairs {
		total[b.y[p.i]] += b.weights[b.y[p.i]]
	}

	best := split{feature: f, score: math.Inf(1)}
	var left [2]float64
	for k := 0; k < len(pairs)-1; k++ {
		c := b.y[pairs[k].i]
		left[c] += b.weights[c]
		if pairs[k].v == pairs[k+1].v {
			continue
		}
		right := [2]float64{total[0] - left[0], total[1] - left[1]}
		score := weightedGini(left) + weightedGini(right)
		if score < best.score {
			thr := pairs[k].v + (pairs[k+1].v-pairs[k].v)/2
			if thr >= pairs[k+1].v {
				thr = pairs[k].v
			}
			best = split{feature: f, threshold: thr, score: score, ok: true}
		}
	}
	return best
}

// weightedGini returns W * gini for a node holding class weights w
func weightedGini(w [2]float64) float64 {
	total := w[0] + w[1]
	if total == 0 {
		return 0
	}
	p0, p1 := w[0]/total, w[1]/total
	return total * (1 - p0*p0 - p1*p1)
}
