package field

import (
	"testing"
)

func TestCheckerboard8x8(t *testing.T) {
	f := MustNew(8, 8)
	Checkerboard(f, 8, 100)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := float32(0)
			if (x+y)%2 == 1 {
				want = 100
			}
			if got := f.At(x, y); got != want {
				t.Errorf("(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestCheckerboard16x16(t *testing.T) {
	f := MustNew(16, 16)
	Checkerboard(f, 8, 100)

	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			want := float32(0)
			if (bx+by)%2 == 1 {
				want = 100
			}
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					x, y := bx*2+dx, by*2+dy
					if got := f.At(x, y); got != want {
						t.Errorf("block (%d,%d) cell (%d,%d) = %v, want %v", bx, by, x, y, got, want)
					}
				}
			}
		}
	}
}

func TestCheckerboardUnevenBlocks(t *testing.T) {
	// 10 columns / 8 blocks: column edges 0,1,2,3,5,6,7,8,10.
	// 4 rows / 8 blocks: even block rows are empty, odd ones hold one row.
	f := MustNew(10, 4)
	f.Fill(7) // must be cleared first
	Checkerboard(f, 8, 100)

	colBlock := []int{0, 1, 2, 3, 3, 4, 5, 6, 7, 7}
	rowBlock := []int{1, 3, 5, 7}

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			want := float32(0)
			if (rowBlock[y]+colBlock[x])%2 == 1 {
				want = 100
			}
			if got := f.At(x, y); got != want {
				t.Errorf("(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestCheckerboardNonSquareOrientation(t *testing.T) {
	wide := MustNew(16, 8)
	tall := MustNew(8, 16)
	Checkerboard(wide, 8, 1)
	Checkerboard(tall, 8, 1)

	// Transposing one must give the other.
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			if wide.At(x, y) != tall.At(y, x) {
				t.Fatalf("wide(%d,%d)=%v tall(%d,%d)=%v", x, y, wide.At(x, y), y, x, tall.At(y, x))
			}
		}
	}
	// Wide blocks are 2 columns by 1 row.
	if wide.At(2, 0) != 1 || wide.At(3, 0) != 1 || wide.At(2, 1) != 0 {
		t.Errorf("unexpected wide block layout: %v %v %v", wide.At(2, 0), wide.At(3, 0), wide.At(2, 1))
	}
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in      string
		want    Pattern
		wantErr bool
	}{
		{"", PatternCheckerboard, false},
		{"checkerboard", PatternCheckerboard, false},
		{"uniform", PatternUniform, false},
		{"noise", PatternNoise, false},
		{"stripes", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePattern(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePattern(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePattern(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitializeUniform(t *testing.T) {
	f := MustNew(3, 5)
	if err := Initialize(f, InitParams{Pattern: PatternUniform, Value: 2.5}); err != nil {
		t.Fatal(err)
	}
	for i, v := range f.Data {
		if v != 2.5 {
			t.Fatalf("cell %d = %v, want 2.5", i, v)
		}
	}
}

func TestInitializeNoiseRangeAndSeed(t *testing.T) {
	a := MustNew(32, 16)
	b := MustNew(32, 16)
	p := InitParams{Pattern: PatternNoise, Value: 100, Scale: 4, Seed: 42}
	if err := Initialize(a, p); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(b, p); err != nil {
		t.Fatal(err)
	}

	distinct := map[float32]bool{}
	for i, v := range a.Data {
		if v < 0 || v > 100 {
			t.Fatalf("cell %d = %v outside [0, 100]", i, v)
		}
		if v != b.Data[i] {
			t.Fatalf("same seed produced different cell %d: %v vs %v", i, v, b.Data[i])
		}
		distinct[v] = true
	}
	if len(distinct) < 10 {
		t.Errorf("expected varied noise, got %d distinct values", len(distinct))
	}
}

func TestInitializeRejectsZeroBlocks(t *testing.T) {
	f := MustNew(4, 4)
	if err := Initialize(f, InitParams{Pattern: PatternCheckerboard, Blocks: 0, Value: 1}); err == nil {
		t.Error("expected error for zero blocks")
	}
}
