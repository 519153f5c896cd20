package stencil

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/stencil/field"
)

const tolerance = 1e-4

func approxEqual(a, b float32) bool {
	diff := math.Abs(float64(a - b))
	scale := math.Max(1, math.Max(math.Abs(float64(a)), math.Abs(float64(b))))
	return diff <= tolerance*scale
}

// naiveApply is the exact rule written per cell with explicit neighbour checks.
func naiveApply(dst, src *field.Field, c, n float32) {
	w, h := src.Width, src.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := c * src.At(x, y)
			if y > 0 {
				v += n * src.At(x, y-1)
			}
			if y < h-1 {
				v += n * src.At(x, y+1)
			}
			if x > 0 {
				v += n * src.At(x-1, y)
			}
			if x < w-1 {
				v += n * src.At(x+1, y)
			}
			dst.Set(x, y, v)
		}
	}
}

func randomField(w, h int, seed uint64) *field.Field {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f := field.MustNew(w, h)
	for i := range f.Data {
		f.Data[i] = rng.Float32() * 100
	}
	return f
}

func applyOrFatal(t *testing.T, k *Kernel, dst, src *field.Field) {
	t.Helper()
	if err := k.Apply(dst, src); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func checkerboard8() *field.Field {
	f := field.MustNew(8, 8)
	field.Checkerboard(f, 8, 100)
	return f
}

func assertGrid(t *testing.T, f *field.Field, want [][]float32) {
	t.Helper()
	for y := range want {
		for x := range want[y] {
			if got := f.At(x, y); !approxEqual(got, want[y][x]) {
				t.Errorf("(%d,%d) = %v, want %v", x, y, got, want[y][x])
			}
		}
	}
}

func TestCheckerboardSinglePassExact(t *testing.T) {
	src := checkerboard8()
	dst := field.MustNew(8, 8)
	applyOrFatal(t, NewKernel(), dst, src)

	// Odd cells keep 0.6*100. Even cells collect 10 per existing neighbour.
	want := [][]float32{
		{20, 60, 30, 60, 30, 60, 30, 60},
		{60, 40, 60, 40, 60, 40, 60, 30},
		{30, 60, 40, 60, 40, 60, 40, 60},
		{60, 40, 60, 40, 60, 40, 60, 30},
		{30, 60, 40, 60, 40, 60, 40, 60},
		{60, 40, 60, 40, 60, 40, 60, 30},
		{30, 60, 40, 60, 40, 60, 40, 60},
		{60, 30, 60, 30, 60, 30, 60, 20},
	}
	assertGrid(t, dst, want)
}

func TestCheckerboardSinglePassReference(t *testing.T) {
	src := checkerboard8()
	dst := field.MustNew(8, 8)
	applyOrFatal(t, NewKernel(WithBoundaryMode(Reference)), dst, src)

	// Identical to the exact grid except the top-left corner, which adds its
	// own (zero) value again instead of the right neighbour's 100.
	want := [][]float32{
		{10, 60, 30, 60, 30, 60, 30, 60},
		{60, 40, 60, 40, 60, 40, 60, 30},
		{30, 60, 40, 60, 40, 60, 40, 60},
		{60, 40, 60, 40, 60, 40, 60, 30},
		{30, 60, 40, 60, 40, 60, 40, 60},
		{60, 40, 60, 40, 60, 40, 60, 30},
		{30, 60, 40, 60, 40, 60, 40, 60},
		{60, 30, 60, 30, 60, 30, 60, 20},
	}
	assertGrid(t, dst, want)
}

func TestUniformFieldConservesInteriorAndDecaysBoundary(t *testing.T) {
	const k = 50.0
	for _, mode := range []BoundaryMode{Exact, Reference} {
		t.Run(mode.String(), func(t *testing.T) {
			src := field.MustNew(7, 5)
			src.Fill(k)
			dst := field.MustNew(7, 5)
			applyOrFatal(t, NewKernel(WithBoundaryMode(mode)), dst, src)

			for y := 0; y < src.Height; y++ {
				for x := 0; x < src.Width; x++ {
					got := dst.At(x, y)
					var want float32
					switch {
					case src.IsInterior(x, y):
						want = k
					case (x == 0 || x == src.Width-1) && (y == 0 || y == src.Height-1):
						// Corners keep 0.8k. In Reference mode the top-left
						// corner also lands on 0.8k because the duplicated
						// term equals the missing neighbour on a flat field.
						want = 0.8 * k
					default:
						want = 0.9 * k
					}
					if !approxEqual(got, want) {
						t.Errorf("(%d,%d) = %v, want %v", x, y, got, want)
					}
					if !src.IsInterior(x, y) && got >= k {
						t.Errorf("boundary cell (%d,%d) = %v did not decay below %v", x, y, got, k)
					}
				}
			}
		})
	}
}

func TestInteriorWeightsSumToOne(t *testing.T) {
	c, n := NewKernel().Weights()
	if sum := c + 4*n; !approxEqual(sum, 1) {
		t.Errorf("interior weights sum to %v, want 1", sum)
	}
}

func TestExactMatchesNaiveRule(t *testing.T) {
	sizes := [][2]int{
		{8, 8}, {5, 3}, {3, 5}, {17, 4}, {4, 17},
		{2, 2}, {2, 6}, {6, 2},
		{1, 1}, {1, 7}, {7, 1},
	}
	for i, sz := range sizes {
		w, h := sz[0], sz[1]
		src := randomField(w, h, uint64(i+1))
		want := field.MustNew(w, h)
		naiveApply(want, src, DefaultCenter, DefaultNeighbor)

		for _, vectorized := range []bool{false, true} {
			got := field.MustNew(w, h)
			applyOrFatal(t, NewKernel(WithVectorized(vectorized)), got, src)
			for j := range want.Data {
				if !approxEqual(got.Data[j], want.Data[j]) {
					t.Errorf("%dx%d vectorized=%v cell %d = %v, want %v",
						w, h, vectorized, j, got.Data[j], want.Data[j])
				}
			}
		}
	}
}

func TestReferenceDiffersOnlyAtTopLeftCorner(t *testing.T) {
	src := randomField(9, 6, 7)
	exact := field.MustNew(9, 6)
	ref := field.MustNew(9, 6)
	applyOrFatal(t, NewKernel(), exact, src)
	applyOrFatal(t, NewKernel(WithBoundaryMode(Reference)), ref, src)

	for i := 1; i < len(exact.Data); i++ {
		if exact.Data[i] != ref.Data[i] {
			t.Errorf("cell %d differs: exact %v, reference %v", i, exact.Data[i], ref.Data[i])
		}
	}

	s := src.Data
	wantRef := 0.6*s[0] + 0.1*s[9] + 0.1*s[0]
	if !approxEqual(ref.Data[0], wantRef) {
		t.Errorf("reference corner = %v, want %v", ref.Data[0], wantRef)
	}
	wantExact := 0.6*s[0] + 0.1*s[9] + 0.1*s[1]
	if !approxEqual(exact.Data[0], wantExact) {
		t.Errorf("exact corner = %v, want %v", exact.Data[0], wantExact)
	}
}

func TestDegenerateGridsIgnoreReferenceMode(t *testing.T) {
	src := randomField(1, 5, 3)
	exact := field.MustNew(1, 5)
	ref := field.MustNew(1, 5)
	applyOrFatal(t, NewKernel(), exact, src)
	applyOrFatal(t, NewKernel(WithBoundaryMode(Reference)), ref, src)
	for i := range exact.Data {
		if exact.Data[i] != ref.Data[i] {
			t.Errorf("cell %d: exact %v, reference %v", i, exact.Data[i], ref.Data[i])
		}
	}
}

func TestNonSquareOrientations(t *testing.T) {
	// A field and its transpose must produce transposed results.
	wide := randomField(12, 5, 11)
	tall := field.MustNew(5, 12)
	for y := 0; y < 5; y++ {
		for x := 0; x < 12; x++ {
			tall.Set(y, x, wide.At(x, y))
		}
	}

	k := NewKernel()
	wideOut := field.MustNew(12, 5)
	tallOut := field.MustNew(5, 12)
	applyOrFatal(t, k, wideOut, wide)
	applyOrFatal(t, k, tallOut, tall)

	for y := 0; y < 5; y++ {
		for x := 0; x < 12; x++ {
			if !approxEqual(wideOut.At(x, y), tallOut.At(y, x)) {
				t.Errorf("wide(%d,%d)=%v tall(%d,%d)=%v",
					x, y, wideOut.At(x, y), y, x, tallOut.At(y, x))
			}
		}
	}
}

func TestApplyLeavesSourceAndWritesEveryCell(t *testing.T) {
	src := randomField(10, 7, 5)
	before := src.Clone()
	dst := field.MustNew(10, 7)
	dst.Fill(float32(math.NaN()))

	applyOrFatal(t, NewKernel(), dst, src)

	for i := range src.Data {
		if src.Data[i] != before.Data[i] {
			t.Fatalf("source cell %d modified", i)
		}
		if math.IsNaN(float64(dst.Data[i])) {
			t.Fatalf("destination cell %d not written", i)
		}
	}
}

func TestApplyErrors(t *testing.T) {
	k := NewKernel()

	a := field.MustNew(4, 4)
	if err := k.Apply(a, field.MustNew(4, 5)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("shape mismatch: got %v", err)
	}
	if err := k.Apply(a, field.MustNew(2, 8)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("same cell count, different shape: got %v", err)
	}
	if err := k.Apply(a, a); !errors.Is(err, ErrAliased) {
		t.Errorf("aliased: got %v", err)
	}

	buf := make([]float32, 20)
	v1 := &field.Field{Width: 4, Height: 4, Data: buf[:16]}
	v2 := &field.Field{Width: 4, Height: 4, Data: buf[4:]}
	if err := k.Apply(v1, v2); !errors.Is(err, ErrAliased) {
		t.Errorf("overlapping views: got %v", err)
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	// Enough interior rows to cross parallelThreshold.
	const w, h = 70, parallelThreshold + 50
	src := randomField(w, h, 99)

	for _, vectorized := range []bool{false, true} {
		serial := field.MustNew(w, h)
		applyOrFatal(t, NewKernel(WithVectorized(vectorized)), serial, src)

		pk := NewKernel(WithVectorized(vectorized), WithWorkers(4))
		parallel := field.MustNew(w, h)
		// Apply twice to exercise worker reuse.
		applyOrFatal(t, pk, parallel, src)
		applyOrFatal(t, pk, parallel, src)
		pk.Close()

		for i := range serial.Data {
			if serial.Data[i] != parallel.Data[i] {
				t.Fatalf("vectorized=%v cell %d: serial %v, parallel %v",
					vectorized, i, serial.Data[i], parallel.Data[i])
			}
		}
	}
}

func TestKernelUsableAfterClose(t *testing.T) {
	k := NewKernel(WithWorkers(3))
	k.Close()
	k.Close()

	src := randomField(8, parallelThreshold+4, 1)
	dst := field.MustNew(8, parallelThreshold+4)
	applyOrFatal(t, k, dst, src)
}

func TestCustomWeights(t *testing.T) {
	src := randomField(6, 6, 21)
	got := field.MustNew(6, 6)
	want := field.MustNew(6, 6)
	applyOrFatal(t, NewKernel(WithWeights(0.2, 0.2)), got, src)
	naiveApply(want, src, 0.2, 0.2)
	for i := range want.Data {
		if !approxEqual(got.Data[i], want.Data[i]) {
			t.Errorf("cell %d = %v, want %v", i, got.Data[i], want.Data[i])
		}
	}
}

func TestParseBoundaryMode(t *testing.T) {
	tests := []struct {
		in      string
		want    BoundaryMode
		wantErr bool
	}{
		{"", Exact, false},
		{"exact", Exact, false},
		{"reference", Reference, false},
		{"periodic", Exact, true},
	}
	for _, tt := range tests {
		got, err := ParseBoundaryMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseBoundaryMode(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
