package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stressvision/internal/metrics"
	"stressvision/internal/raster"

	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned for work submitted after Close
var ErrPoolClosed = errors.New("analysis pool is closed")

type sceneAnalyzer interface {
	Analyze(ctx context.Context, bands raster.Bands) (*Result, error)
}

type job struct {
	ctx     context.Context
	bands   raster.Bands
	results chan<- jobResult
}

type jobResult struct {
	result *Result
	err    error
}

// Pool runs analyses on a fixed set of worker goroutines so CPU-bound scene
// processing is bounded regardless of how many requests arrive
type Pool struct {
	analyzer sceneAnalyzer
	jobs     chan job
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines with room for queueSize waiting analyses
func NewPool(a sceneAnalyzer, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{analyzer: a, jobs: make(chan job, queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info().Int("workers", workers).Int("queue", queueSize).Msg("Analysis pool started")
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		metrics.QueueDepth.Dec()
		start := time.Now()
		res, err := p.run(j)
		if err != nil {
			log.Debug().Int("worker", id).Err(err).Dur("took", time.Since(start)).Msg("Analysis failed")
		}
		j.results <- jobResult{result: res, err: err}
	}
}

// run analyzes one job, turning a panic into an error
func (p *Pool) run(j job) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Analysis panicked")
			res, err = nil, fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	return p.analyzer.Analyze(context.WithoutCancel(j.ctx), j.bands)
}

// Analyze queues bands for a worker and waits for the result. ctx bounds the
// wait only; an analysis that has started runs to completion.
func (p *Pool) Analyze(ctx context.Context, bands raster.Bands) (*Result, error) {
	results := make(chan jobResult, 1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	metrics.QueueDepth.Inc()
	select {
	case p.jobs <- job{ctx: ctx, bands: bands, results: results}:
	case <-ctx.Done():
		metrics.QueueDepth.Dec()
		p.mu.RUnlock()
		return nil, ctx.Err()
	}
	p.mu.RUnlock()

	select {
	case r := <-results:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting work and waits for queued analyses to finish
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	log.Info().Msg("Analysis pool stopped")
}
