// Package main searches for stencil kernel weights that reach a target
// spread retention after a fixed number of iterations.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/stencil/config"
	"github.com/pthm-cable/stencil/field"
)

// evalRecord is one row of calibrate_log.csv.
type evalRecord struct {
	Eval     int     `csv:"eval"`
	Fitness  float64 `csv:"fitness"`
	Ratio    float64 `csv:"ratio"`
	Center   float64 `csv:"center"`
	Neighbor float64 `csv:"neighbor"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// calibrationPatterns returns the checkerboard from cfg plus seeded noise fields.
func calibrationPatterns(cfg *config.Config, seeds int) []field.InitParams {
	base := cfg.InitParams()
	base.Pattern = field.PatternCheckerboard
	patterns := []field.InitParams{base}
	for i := 0; i < seeds; i++ {
		p := base
		p.Pattern = field.PatternNoise
		p.Seed = int64(i*1000 + 42)
		patterns = append(patterns, p)
	}
	return patterns
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	width := flag.Int("width", 128, "Grid width per evaluation")
	height := flag.Int("height", 128, "Grid height per evaluation")
	iterations := flag.Int("iterations", 50, "Iterations per evaluation")
	target := flag.Float64("target", 0.1, "Target ratio of final to initial standard deviation")
	seeds := flag.Int("seeds", 2, "Number of noise fields per evaluation (plus one checkerboard)")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()
	baseCfg.Grid.Width, baseCfg.Grid.Height = *width, *height
	baseCfg.Run.Iterations = *iterations
	if err := baseCfg.Resolve(); err != nil {
		log.Fatalf("invalid calibration grid: %v", err)
	}

	params := NewParamVector()
	evaluator := NewEvaluator(params, baseCfg, calibrationPatterns(baseCfg, *seeds), *target)

	// Open log file
	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Search runs in normalized space; clamp to get the values actually used
			clamped := params.Clamp(params.Denormalize(x))
			fitness, err := evaluator.Evaluate(clamped)
			if err != nil {
				log.Fatalf("evaluation failed: %v", err)
			}
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			rec := []evalRecord{{
				Eval:     evalCount,
				Fitness:  fitness,
				Ratio:    evaluator.LastRatio(),
				Center:   clamped[0],
				Neighbor: clamped[1],
			}}
			if evalCount == 1 {
				err = gocsv.Marshal(rec, logFile)
			} else {
				err = gocsv.MarshalWithoutHeaders(rec, logFile)
			}
			if err != nil {
				log.Printf("failed to log evaluation: %v", err)
			}

			elapsed := time.Since(startTime)
			fmt.Printf("Eval %d/%d: center=%.4f neighbor=%.4f ratio=%.4f fitness=%.6f (best=%.6f) | elapsed: %s\n",
				evalCount, *maxEvals, clamped[0], clamped[1], evaluator.LastRatio(), fitness, bestFitness,
				formatDuration(elapsed))

			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential evaluation
	}

	fmt.Printf("Starting Nelder-Mead calibration over %d parameters, target ratio %.3f after %d iterations on %dx%d\n",
		params.Dim(), *target, *iterations, *width, *height)

	initX := params.Normalize(params.ExtractFromConfig(baseCfg))
	result, err := optimize.Minimize(problem, initX, settings, &optimize.NelderMead{})
	if err != nil {
		log.Printf("calibration ended: %v", err)
	}

	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluations completed")
	}

	fmt.Printf("\nCalibration complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.6f\n", bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	// Save best config
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	if err := params.ApplyToConfig(bestCfg, bestParams); err != nil {
		log.Fatalf("best parameters rejected: %v", err)
	}

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
