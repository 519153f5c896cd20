// Package stencil implements the five-point weighted-average update over a
// bounded field and the double-buffered driver that iterates it.
//
// Cells missing a neighbour simply drop that term; weights are never
// renormalised at the border, so edges lose mass faster than the interior.
package stencil

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/stencil/field"
)

// Default weights: the interior update is a true weighted average.
const (
	DefaultCenter   = 0.6
	DefaultNeighbor = 0.1
)

var (
	ErrShapeMismatch = errors.New("source and destination shapes differ")
	ErrAliased       = errors.New("source and destination share memory")
)

// BoundaryMode selects how the top-left corner is evaluated.
type BoundaryMode int

const (
	// Exact applies the missing-neighbour rule at every border cell.
	Exact BoundaryMode = iota
	// Reference reproduces the historical arithmetic in which the top-left
	// corner counts its own value a second time in place of its right
	// neighbour. Every other border cell matches Exact.
	Reference
)

func (m BoundaryMode) String() string {
	switch m {
	case Exact:
		return "exact"
	case Reference:
		return "reference"
	default:
		return fmt.Sprintf("BoundaryMode(%d)", int(m))
	}
}

// ParseBoundaryMode maps a config or flag value to a BoundaryMode.
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	switch s {
	case "", "exact":
		return Exact, nil
	case "reference":
		return Reference, nil
	default:
		return Exact, fmt.Errorf("unknown boundary mode %q (want exact or reference)", s)
	}
}

// Kernel computes one stencil pass from a source field into a destination field.
// A Kernel holds no field state between calls; it is not safe for concurrent use
// when workers are enabled.
type Kernel struct {
	center   float32
	neighbor float32
	mode     BoundaryMode

	vectorized bool
	workers    int
	pool       *bandPool
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithWeights overrides the centre and per-neighbour weights.
func WithWeights(center, neighbor float32) Option {
	return func(k *Kernel) {
		k.center = center
		k.neighbor = neighbor
	}
}

// WithBoundaryMode selects Exact or Reference corner handling.
func WithBoundaryMode(m BoundaryMode) Option {
	return func(k *Kernel) { k.mode = m }
}

// WithVectorized routes interior row spans through blas32.
func WithVectorized(on bool) Option {
	return func(k *Kernel) { k.vectorized = on }
}

// WithWorkers splits interior rows across n persistent goroutines.
// n <= 1 keeps the kernel single-threaded.
func WithWorkers(n int) Option {
	return func(k *Kernel) { k.workers = n }
}

// NewKernel creates a kernel with the default 0.6/0.1 weights in Exact mode.
func NewKernel(opts ...Option) *Kernel {
	k := &Kernel{
		center:   DefaultCenter,
		neighbor: DefaultNeighbor,
		mode:     Exact,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.workers > 1 {
		k.pool = newBandPool(k.workers, k.interiorRowFunc())
	}
	return k
}

// Mode returns the configured boundary mode.
func (k *Kernel) Mode() BoundaryMode { return k.mode }

// Weights returns the centre and neighbour weights.
func (k *Kernel) Weights() (center, neighbor float32) { return k.center, k.neighbor }

// Close stops any worker goroutines. The kernel remains usable single-threaded.
func (k *Kernel) Close() {
	if k.pool != nil {
		k.pool.stop()
		k.pool = nil
	}
}

// Apply writes one stencil pass over src into dst. src is only read; every
// cell of dst is written exactly once. The fields must have the same shape and
// must not share memory.
func (k *Kernel) Apply(dst, src *field.Field) error {
	if !dst.SameShape(src) {
		return fmt.Errorf("%w: src %dx%d, dst %dx%d",
			ErrShapeMismatch, src.Width, src.Height, dst.Width, dst.Height)
	}
	if dst.Overlaps(src) {
		return ErrAliased
	}

	w, h := src.Width, src.Height
	d, s := dst.Data, src.Data

	if w < 2 || h < 2 {
		k.line(d, s, w, h)
		return nil
	}

	k.topRow(d, s, w)

	rowFn := k.interiorRowFunc()
	if k.pool != nil && h-2 >= parallelThreshold {
		k.pool.run(d, s, w, 1, h-1)
	} else {
		for y := 1; y < h-1; y++ {
			rowFn(d, s, w, y)
		}
	}

	k.bottomRow(d, s, w, h)
	return nil
}

func (k *Kernel) interiorRowFunc() rowFunc {
	if k.vectorized {
		return k.interiorRowBLAS
	}
	return k.interiorRow
}

// line handles grids one cell wide or tall, where the corner blocks below
// would overlap. Both modes use the exact rule here.
func (k *Kernel) line(d, s []float32, w, h int) {
	c, n := k.center, k.neighbor
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			v := c * s[i]
			if y > 0 {
				v += float32(n * s[i-w])
			}
			if y < h-1 {
				v += float32(n * s[i+w])
			}
			if x > 0 {
				v += float32(n * s[i-1])
			}
			if x < w-1 {
				v += float32(n * s[i+1])
			}
			d[i] = v
		}
	}
}
