package field

import (
	"fmt"

	"github.com/ojrac/opensimplex-go"
)

// Pattern names an initial field layout.
type Pattern string

const (
	PatternCheckerboard Pattern = "checkerboard"
	PatternUniform      Pattern = "uniform"
	PatternNoise        Pattern = "noise"
)

// ParsePattern validates a pattern name. Empty selects the checkerboard.
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(s); p {
	case "":
		return PatternCheckerboard, nil
	case PatternCheckerboard, PatternUniform, PatternNoise:
		return p, nil
	default:
		return "", fmt.Errorf("unknown init pattern %q", s)
	}
}

// InitParams holds the parameters shared by the initial patterns.
type InitParams struct {
	Pattern Pattern
	Blocks  int     // checkerboard blocks per axis
	Value   float32 // fill value (checkerboard "on" blocks, uniform level, noise peak)
	Scale   float64 // noise frequency across the whole field
	Seed    int64   // noise seed
}

// Initialize fills f according to p.
func Initialize(f *Field, p InitParams) error {
	switch p.Pattern {
	case PatternCheckerboard, "":
		if p.Blocks < 1 {
			return fmt.Errorf("checkerboard needs at least one block, got %d", p.Blocks)
		}
		Checkerboard(f, p.Blocks, p.Value)
	case PatternUniform:
		f.Fill(p.Value)
	case PatternNoise:
		Noise(f, p.Scale, p.Seed, p.Value)
	default:
		return fmt.Errorf("unknown init pattern %q", p.Pattern)
	}
	return nil
}

// Checkerboard zeroes f and then sets every cell of the odd-parity blocks of a
// blocks x blocks tiling to value. Block edges use integer division, so block
// sizes differ by at most one cell when a dimension is not a multiple of blocks.
func Checkerboard(f *Field, blocks int, value float32) {
	f.Fill(0)
	for bi := 0; bi < blocks; bi++ {
		y0 := bi * f.Height / blocks
		y1 := (bi + 1) * f.Height / blocks
		for bj := 0; bj < blocks; bj++ {
			if (bi+bj)%2 == 0 {
				continue
			}
			x0 := bj * f.Width / blocks
			x1 := (bj + 1) * f.Width / blocks
			for y := y0; y < y1; y++ {
				row := f.Data[y*f.Width : (y+1)*f.Width]
				for x := x0; x < x1; x++ {
					row[x] = value
				}
			}
		}
	}
}

// Noise fills f with OpenSimplex noise in [0, peak]. scale is the number of
// noise periods spanned by each axis.
func Noise(f *Field, scale float64, seed int64, peak float32) {
	if scale <= 0 {
		scale = 1
	}
	n := opensimplex.NewNormalized(seed)
	for y := 0; y < f.Height; y++ {
		v := (float64(y) + 0.5) / float64(f.Height) * scale
		for x := 0; x < f.Width; x++ {
			u := (float64(x) + 0.5) / float64(f.Width) * scale
			f.Data[y*f.Width+x] = float32(n.Eval2(u, v)) * peak
		}
	}
}
