package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/stencil/field"
)

// FieldStats summarises the values of a field at one point in a run.
type FieldStats struct {
	Label      string `csv:"label"`
	Iterations int    `csv:"iterations"`
	Width      int    `csv:"width"`
	Height     int    `csv:"height"`

	Min    float64 `csv:"min"`
	Max    float64 `csv:"max"`
	Mean   float64 `csv:"mean"`
	StdDev float64 `csv:"std_dev"`
	Sum    float64 `csv:"sum"`

	// Border cells lose mass faster than the interior, so track both.
	InteriorMean float64 `csv:"interior_mean"`
	BoundaryMean float64 `csv:"boundary_mean"`

	P10 float64 `csv:"p10"`
	P50 float64 `csv:"p50"`
	P90 float64 `csv:"p90"`
}

// Percentile calculates the p-th percentile (0-1) of sorted values.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeFieldStats summarises f. label and iterations are copied through.
func ComputeFieldStats(f *field.Field, label string, iterations int) FieldStats {
	s := FieldStats{
		Label:      label,
		Iterations: iterations,
		Width:      f.Width,
		Height:     f.Height,
	}
	n := len(f.Data)
	if n == 0 {
		return s
	}

	values := make([]float64, n)
	var interiorSum, boundarySum float64
	var interiorN, boundaryN int
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := y*f.Width + x
			v := float64(f.Data[i])
			values[i] = v
			if f.IsInterior(x, y) {
				interiorSum += v
				interiorN++
			} else {
				boundarySum += v
				boundaryN++
			}
		}
	}

	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	for _, v := range values {
		s.Sum += v
	}
	if interiorN > 0 {
		s.InteriorMean = interiorSum / float64(interiorN)
	}
	if boundaryN > 0 {
		s.BoundaryMean = boundarySum / float64(boundaryN)
	}

	sort.Float64s(values)
	s.Min = values[0]
	s.Max = values[n-1]
	s.P10 = Percentile(values, 0.10)
	s.P50 = Percentile(values, 0.50)
	s.P90 = Percentile(values, 0.90)

	// A single cell has no spread; MeanStdDev reports NaN for it.
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("label", s.Label),
		slog.Int("iterations", s.Iterations),
		slog.Float64("min", s.Min),
		slog.Float64("max", s.Max),
		slog.Float64("mean", s.Mean),
		slog.Float64("std_dev", s.StdDev),
		slog.Float64("sum", s.Sum),
		slog.Float64("interior_mean", s.InteriorMean),
		slog.Float64("boundary_mean", s.BoundaryMean),
		slog.Float64("p10", s.P10),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
	)
}

// LogStats logs the summary at info level.
func (s FieldStats) LogStats() {
	slog.Info("field", "stats", s)
}
