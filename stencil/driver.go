package stencil

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/stencil/field"
)

// Phase names reported to an Observer for the two passes of an iteration.
const (
	PhaseForward  = "pass_ab"
	PhaseBackward = "pass_ba"
)

var ErrNegativeIterations = errors.New("iteration count must not be negative")

// Pass is one source-to-destination stencil evaluation. *Kernel implements it.
type Pass interface {
	Apply(dst, src *field.Field) error
}

// Observer is notified around each iteration and pass. It exists for timing;
// it never sees the field contents.
type Observer interface {
	StartIteration()
	StartPhase(phase string)
	EndIteration()
}

type nopObserver struct{}

func (nopObserver) StartIteration()   {}
func (nopObserver) StartPhase(string) {}
func (nopObserver) EndIteration()     {}

// Driver owns two same-shaped buffers and alternates a Pass between them.
// After Run(n) the current result is always in buffer A.
type Driver struct {
	pass     Pass
	a, b     *field.Field
	observer Observer
	done     int
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithObserver attaches an Observer to the driver.
func WithObserver(o Observer) DriverOption {
	return func(d *Driver) {
		if o != nil {
			d.observer = o
		}
	}
}

// NewDriver takes ownership of a and b. a holds the initial state; b is
// scratch and is fully overwritten by the first pass.
func NewDriver(pass Pass, a, b *field.Field, opts ...DriverOption) (*Driver, error) {
	if !a.SameShape(b) {
		return nil, fmt.Errorf("%w: A %dx%d, B %dx%d",
			ErrShapeMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	if a.Overlaps(b) {
		return nil, ErrAliased
	}
	d := &Driver{
		pass:     pass,
		a:        a,
		b:        b,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run performs n iterations, each a pass A->B followed by B->A.
// n == 0 leaves A untouched.
func (d *Driver) Run(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeIterations, n)
	}
	for t := 0; t < n; t++ {
		d.observer.StartIteration()

		d.observer.StartPhase(PhaseForward)
		if err := d.pass.Apply(d.b, d.a); err != nil {
			return fmt.Errorf("iteration %d, A->B: %w", t, err)
		}

		d.observer.StartPhase(PhaseBackward)
		if err := d.pass.Apply(d.a, d.b); err != nil {
			return fmt.Errorf("iteration %d, B->A: %w", t, err)
		}

		d.observer.EndIteration()
		d.done++
	}
	return nil
}

// Result returns buffer A, which holds the state after the last full iteration.
func (d *Driver) Result() *field.Field { return d.a }

// Iterations returns the number of completed iterations across all Run calls.
func (d *Driver) Iterations() int { return d.done }
