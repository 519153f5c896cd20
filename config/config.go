// Package config provides configuration loading and access for stencil runs.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/stencil/field"
	"github.com/pthm-cable/stencil/stencil"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is returned when a loaded or overridden value is out of range.
var ErrInvalid = errors.New("invalid config")

// Config holds all run configuration parameters.
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Run       RunConfig       `yaml:"run"`
	Kernel    KernelConfig    `yaml:"kernel"`
	Init      InitConfig      `yaml:"init"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Limits    LimitsConfig    `yaml:"limits"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds the field dimensions.
type GridConfig struct {
	Width  int `yaml:"width"`  // Columns
	Height int `yaml:"height"` // Rows
}

// RunConfig holds iteration parameters.
type RunConfig struct {
	Iterations int `yaml:"iterations"` // Each iteration is two kernel passes
}

// KernelConfig holds stencil weights and execution strategy.
type KernelConfig struct {
	Center     float64 `yaml:"center"`     // Weight of the cell itself
	Neighbor   float64 `yaml:"neighbor"`   // Weight of each orthogonal neighbour
	Boundary   string  `yaml:"boundary"`   // exact | reference
	Vectorized bool    `yaml:"vectorized"` // Interior rows through blas32
	Workers    int     `yaml:"workers"`    // Interior row bands (<= 1 = single-threaded)
}

// InitConfig holds initial field parameters.
type InitConfig struct {
	Pattern    string  `yaml:"pattern"`     // checkerboard | uniform | noise
	Blocks     int     `yaml:"blocks"`      // Checkerboard blocks per axis
	Value      float64 `yaml:"value"`       // Fill value / noise peak
	NoiseScale float64 `yaml:"noise_scale"` // Noise periods across the field
	Seed       int64   `yaml:"seed"`        // Noise seed
}

// OutputConfig holds result export parameters.
type OutputConfig struct {
	Path string `yaml:"path"` // Extension selects pgm, png, tiff, or bmp
}

// TelemetryConfig holds reporting parameters.
type TelemetryConfig struct {
	PerfWindow int    `yaml:"perf_window"` // Iterations per perf record
	ReportDir  string `yaml:"report_dir"`  // CSV + config snapshot output (empty = disabled)
	LogStats   bool   `yaml:"log_stats"`   // Log perf windows and field stats via slog
}

// LimitsConfig bounds run size.
type LimitsConfig struct {
	MaxCells      int `yaml:"max_cells"`
	MaxIterations int `yaml:"max_iterations"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Center32   float32
	Neighbor32 float32
	Value32    float32
	Cells      int
	Boundary   stencil.BoundaryMode
	Pattern    field.Pattern
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve validates the configuration and recomputes derived values.
// Call again after overriding fields (e.g. from command-line arguments).
func (c *Config) Resolve() error {
	if err := field.CheckSize(c.Grid.Width, c.Grid.Height, c.Limits.MaxCells); err != nil {
		return fmt.Errorf("%w: grid: %w", ErrInvalid, err)
	}
	if c.Run.Iterations < 0 {
		return fmt.Errorf("%w: iterations must not be negative, got %d", ErrInvalid, c.Run.Iterations)
	}
	if c.Limits.MaxIterations > 0 && c.Run.Iterations > c.Limits.MaxIterations {
		return fmt.Errorf("%w: %d iterations exceeds limit %d", ErrInvalid, c.Run.Iterations, c.Limits.MaxIterations)
	}
	mode, err := stencil.ParseBoundaryMode(c.Kernel.Boundary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	pattern, err := field.ParsePattern(c.Init.Pattern)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if pattern == field.PatternCheckerboard && c.Init.Blocks < 1 {
		return fmt.Errorf("%w: init.blocks must be positive, got %d", ErrInvalid, c.Init.Blocks)
	}
	if c.Kernel.Workers < 0 {
		return fmt.Errorf("%w: kernel.workers must not be negative, got %d", ErrInvalid, c.Kernel.Workers)
	}
	if c.Telemetry.PerfWindow < 1 {
		return fmt.Errorf("%w: telemetry.perf_window must be positive, got %d", ErrInvalid, c.Telemetry.PerfWindow)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("%w: output.path is empty", ErrInvalid)
	}

	c.computeDerived(mode, pattern)
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived(mode stencil.BoundaryMode, pattern field.Pattern) {
	c.Derived.Center32 = float32(c.Kernel.Center)
	c.Derived.Neighbor32 = float32(c.Kernel.Neighbor)
	c.Derived.Value32 = float32(c.Init.Value)
	c.Derived.Cells = c.Grid.Width * c.Grid.Height
	c.Derived.Boundary = mode
	c.Derived.Pattern = pattern
}

// KernelOptions translates the kernel section into stencil options.
func (c *Config) KernelOptions() []stencil.Option {
	return []stencil.Option{
		stencil.WithWeights(c.Derived.Center32, c.Derived.Neighbor32),
		stencil.WithBoundaryMode(c.Derived.Boundary),
		stencil.WithVectorized(c.Kernel.Vectorized),
		stencil.WithWorkers(c.Kernel.Workers),
	}
}

// InitParams translates the init section into field initializer parameters.
func (c *Config) InitParams() field.InitParams {
	return field.InitParams{
		Pattern: c.Derived.Pattern,
		Blocks:  c.Init.Blocks,
		Value:   c.Derived.Value32,
		Scale:   c.Init.NoiseScale,
		Seed:    c.Init.Seed,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
