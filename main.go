package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pthm-cable/stencil/config"
	"github.com/pthm-cable/stencil/export"
	"github.com/pthm-cable/stencil/field"
	"github.com/pthm-cable/stencil/stencil"
	"github.com/pthm-cable/stencil/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one stencil run and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stencil", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// CLI flags
	configPath := fs.String("config", "", "Path to config.yaml (empty = use defaults)")
	output := fs.String("output", "stencil.pgm", "Output raster (.pgm, .png, .tif, .bmp)")
	mode := fs.String("mode", "exact", "Boundary mode: exact | reference")
	workers := fs.Int("workers", 1, "Worker goroutines for interior rows (<= 1 = single-threaded)")
	vectorized := fs.Bool("vectorized", false, "Evaluate interior rows with blas32")
	reportDir := fs.String("report-dir", "", "Output directory for CSV reports and config snapshot")
	logStats := fs.Bool("log-stats", false, "Output perf and field stats via slog")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: stencil [flags] WIDTH HEIGHT ITERATIONS\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return 1
	}

	dims, err := parsePositional(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to load config: %v\n", err)
		return 1
	}

	cfg.Grid.Width, cfg.Grid.Height, cfg.Run.Iterations = dims[0], dims[1], dims[2]

	// Flags override the config file only when given explicitly
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Path = *output
		case "mode":
			cfg.Kernel.Boundary = *mode
		case "workers":
			cfg.Kernel.Workers = *workers
		case "vectorized":
			cfg.Kernel.Vectorized = *vectorized
		case "report-dir":
			cfg.Telemetry.ReportDir = *reportDir
		case "log-stats":
			cfg.Telemetry.LogStats = *logStats
		}
	})
	if err := cfg.Resolve(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(stdout, nil))
	slog.SetDefault(logger)

	if err := simulate(cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// parsePositional reads WIDTH HEIGHT ITERATIONS. Range checks happen in
// config.Resolve so that file and CLI values share one set of limits.
func parsePositional(args []string) ([3]int, error) {
	var out [3]int
	names := [3]string{"width", "height", "iterations"}
	for i, s := range args {
		v, err := strconv.Atoi(s)
		if err != nil {
			return out, fmt.Errorf("%s must be an integer, got %q", names[i], s)
		}
		out[i] = v
	}
	return out, nil
}

func simulate(cfg *config.Config) error {
	a, err := field.New(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return err
	}
	b, err := field.New(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return err
	}
	if err := field.Initialize(a, cfg.InitParams()); err != nil {
		return fmt.Errorf("initializing field: %w", err)
	}
	// Both buffers start from the same pattern.
	if err := b.CopyFrom(a); err != nil {
		return err
	}

	om, err := telemetry.NewOutputManager(cfg.Telemetry.ReportDir)
	if err != nil {
		return err
	}
	defer om.Close()

	if err := om.WriteConfig(cfg); err != nil {
		return err
	}
	if err := report(om, cfg, a, "initial", 0); err != nil {
		return err
	}

	kernel := stencil.NewKernel(cfg.KernelOptions()...)
	defer kernel.Close()

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	driver, err := stencil.NewDriver(kernel, a, b, stencil.WithObserver(perf))
	if err != nil {
		return err
	}

	slog.Info("starting run",
		"width", cfg.Grid.Width,
		"height", cfg.Grid.Height,
		"iterations", cfg.Run.Iterations,
		"boundary", cfg.Derived.Boundary.String(),
		"workers", cfg.Kernel.Workers,
		"vectorized", cfg.Kernel.Vectorized,
	)

	start := time.Now()
	for driver.Iterations() < cfg.Run.Iterations {
		n := min(cfg.Telemetry.PerfWindow, cfg.Run.Iterations-driver.Iterations())
		if err := driver.Run(n); err != nil {
			return err
		}
		if perf.WindowFull() {
			stats := perf.Stats()
			if cfg.Telemetry.LogStats {
				stats.LogStats()
			}
			if err := om.WritePerf(stats, driver.Iterations()); err != nil {
				return err
			}
		}
	}
	runtime := time.Since(start)

	slog.Info("run complete",
		"iterations", driver.Iterations(),
		"runtime_s", runtime.Seconds(),
	)

	if err := export.WriteFile(cfg.Output.Path, driver.Result()); err != nil {
		return err
	}
	slog.Info("wrote output", "path", cfg.Output.Path, "format", string(export.FormatFromPath(cfg.Output.Path)))

	return report(om, cfg, driver.Result(), "final", driver.Iterations())
}

// report computes field statistics only when something consumes them.
func report(om *telemetry.OutputManager, cfg *config.Config, f *field.Field, label string, iterations int) error {
	if om == nil && !cfg.Telemetry.LogStats {
		return nil
	}
	stats := telemetry.ComputeFieldStats(f, label, iterations)
	if cfg.Telemetry.LogStats {
		stats.LogStats()
	}
	return om.WriteSummary(stats)
}
