package main

import (
	"fmt"
	"sync"

	"github.com/pthm-cable/stencil/config"
	"github.com/pthm-cable/stencil/field"
	"github.com/pthm-cable/stencil/stencil"
	"github.com/pthm-cable/stencil/telemetry"
)

// conservationWeight scales the penalty for interior weights that do not
// sum to one.
const conservationWeight = 10.0

// Evaluator runs short stencil runs and scores kernel weights against a
// target spread retention.
type Evaluator struct {
	params     *ParamVector
	baseConfig *config.Config
	patterns   []field.InitParams
	target     float64

	mu        sync.Mutex
	lastRatio float64
}

// NewEvaluator creates an evaluator. target is the desired ratio of final to
// initial standard deviation after the configured number of iterations.
func NewEvaluator(params *ParamVector, baseCfg *config.Config, patterns []field.InitParams, target float64) *Evaluator {
	return &Evaluator{
		params:     params,
		baseConfig: baseCfg,
		patterns:   patterns,
		target:     target,
	}
}

// LastRatio returns the mean retention ratio from the most recent Evaluate call.
func (e *Evaluator) LastRatio() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRatio
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (e *Evaluator) Evaluate(x []float64) (float64, error) {
	cfg := e.copyConfig()
	if err := e.params.ApplyToConfig(cfg, x); err != nil {
		return 0, err
	}

	// Run all patterns in parallel
	ratios := make([]float64, len(e.patterns))
	errs := make([]error, len(e.patterns))
	var wg sync.WaitGroup
	for i, p := range e.patterns {
		wg.Add(1)
		go func(idx int, p field.InitParams) {
			defer wg.Done()
			ratios[idx], errs[idx] = retention(cfg, p)
		}(i, p)
	}
	wg.Wait()

	var sum float64
	for i, r := range ratios {
		if errs[i] != nil {
			return 0, fmt.Errorf("pattern %d: %w", i, errs[i])
		}
		sum += r
	}
	ratio := sum / float64(len(ratios))

	c, n := cfg.Kernel.Center, cfg.Kernel.Neighbor
	drift := c + 4*n - 1
	fitness := (ratio-e.target)*(ratio-e.target) + conservationWeight*drift*drift

	e.mu.Lock()
	e.lastRatio = ratio
	e.mu.Unlock()

	return fitness, nil
}

// retention runs cfg.Run.Iterations iterations from pattern p and returns
// stddev(final) / stddev(initial). A flat initial field reports 0.
func retention(cfg *config.Config, p field.InitParams) (float64, error) {
	a, err := field.New(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return 0, err
	}
	if err := field.Initialize(a, p); err != nil {
		return 0, err
	}
	initial := telemetry.ComputeFieldStats(a, "initial", 0)
	if initial.StdDev == 0 {
		return 0, nil
	}

	kernel := stencil.NewKernel(cfg.KernelOptions()...)
	defer kernel.Close()

	d, err := stencil.NewDriver(kernel, a, a.Clone())
	if err != nil {
		return 0, err
	}
	if err := d.Run(cfg.Run.Iterations); err != nil {
		return 0, err
	}

	final := telemetry.ComputeFieldStats(d.Result(), "final", d.Iterations())
	return final.StdDev / initial.StdDev, nil
}

// copyConfig creates a copy of the base config. Config holds only value
// fields, so a struct copy is deep.
func (e *Evaluator) copyConfig() *config.Config {
	cfg := *e.baseConfig
	return &cfg
}
