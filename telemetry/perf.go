package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/stencil/stencil"
)

// PerfSample holds timing data for a single iteration.
type PerfSample struct {
	IterationDuration time.Duration
	Phases            map[string]time.Duration
}

// PerfCollector tracks iteration timing over a rolling window.
// It satisfies stencil.Observer.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	total         int
	currentPhases map[string]time.Duration
	iterStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

var _ stencil.Observer = (*PerfCollector)(nil)

// NewPerfCollector creates a new performance collector.
// windowSize: number of iterations to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 100
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartIteration begins timing a new iteration.
func (p *PerfCollector) StartIteration() {
	p.iterStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	// End previous phase if any
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndIteration finishes timing the current iteration and records the sample.
func (p *PerfCollector) EndIteration() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		IterationDuration: now.Sub(p.iterStart),
		Phases:            p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.total++
}

// Total returns the number of iterations recorded since creation.
func (p *PerfCollector) Total() int { return p.total }

// WindowFull reports whether the last EndIteration completed a window.
func (p *PerfCollector) WindowFull() bool {
	return p.total > 0 && p.total%p.windowSize == 0
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgIteration time.Duration
	MinIteration time.Duration
	MaxIteration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total iteration time
	PhasePct map[string]float64

	IterationsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total time.Duration
	var minIter, maxIter time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.IterationDuration

		if i == 0 || s.IterationDuration < minIter {
			minIter = s.IterationDuration
		}
		if s.IterationDuration > maxIter {
			maxIter = s.IterationDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgIteration:        avg,
		MinIteration:        minIter,
		MaxIteration:        maxIter,
		PhaseAvg:            phaseAvg,
		PhasePct:            phasePct,
		IterationsPerSecond: perSec,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_iter_us", s.AvgIteration.Microseconds(),
		"min_iter_us", s.MinIteration.Microseconds(),
		"max_iter_us", s.MaxIteration.Microseconds(),
		"iters_per_sec", int(s.IterationsPerSecond),
	}

	for _, phase := range []string{stencil.PhaseForward, stencil.PhaseBackward} {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_iter_us", s.AvgIteration.Microseconds()),
		slog.Int64("min_iter_us", s.MinIteration.Microseconds()),
		slog.Int64("max_iter_us", s.MaxIteration.Microseconds()),
		slog.Float64("iters_per_sec", s.IterationsPerSecond),
	}

	for phase, pct := range s.PhasePct {
		attrs = append(attrs, slog.Float64(phase+"_pct", pct))
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd     int     `csv:"window_end"`
	AvgIterUS     int64   `csv:"avg_iter_us"`
	MinIterUS     int64   `csv:"min_iter_us"`
	MaxIterUS     int64   `csv:"max_iter_us"`
	ItersPerSec   float64 `csv:"iters_per_sec"`
	ForwardAvgUS  int64   `csv:"pass_ab_avg_us"`
	BackwardAvgUS int64   `csv:"pass_ba_avg_us"`
	ForwardPct    float64 `csv:"pass_ab_pct"`
	BackwardPct   float64 `csv:"pass_ba_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		AvgIterUS:     s.AvgIteration.Microseconds(),
		MinIterUS:     s.MinIteration.Microseconds(),
		MaxIterUS:     s.MaxIteration.Microseconds(),
		ItersPerSec:   s.IterationsPerSecond,
		ForwardAvgUS:  s.PhaseAvg[stencil.PhaseForward].Microseconds(),
		BackwardAvgUS: s.PhaseAvg[stencil.PhaseBackward].Microseconds(),
		ForwardPct:    s.PhasePct[stencil.PhaseForward],
		BackwardPct:   s.PhasePct[stencil.PhaseBackward],
	}
}
