// Package field provides the flat float32 grid evolved by the stencil kernel.
package field

import (
	"errors"
	"fmt"
	"unsafe"
)

// MaxCells bounds the number of cells a single field may hold.
// Two fields are live for a run, each cell 4 bytes.
const MaxCells = 1 << 30

// ErrInvalidSize is returned for zero, negative, or oversized dimensions.
var ErrInvalidSize = errors.New("invalid field size")

// Field is a Height x Width grid stored row-major in a single buffer.
// Cell (x, y) lives at Data[y*Width+x]; the row stride is always Width.
type Field struct {
	Width, Height int
	Data          []float32
}

// New allocates a zeroed field of w columns and h rows.
func New(w, h int) (*Field, error) {
	if err := CheckSize(w, h, MaxCells); err != nil {
		return nil, err
	}
	return &Field{
		Width:  w,
		Height: h,
		Data:   make([]float32, w*h),
	}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixed sizes.
func MustNew(w, h int) *Field {
	f, err := New(w, h)
	if err != nil {
		panic(err)
	}
	return f
}

// CheckSize validates dimensions against a cell limit without allocating.
func CheckSize(w, h, limit int) error {
	if w < 1 || h < 1 {
		return fmt.Errorf("%w: %dx%d (dimensions must be positive)", ErrInvalidSize, w, h)
	}
	if limit <= 0 || limit > MaxCells {
		limit = MaxCells
	}
	// Division avoids overflowing w*h.
	if h > limit/w {
		return fmt.Errorf("%w: %dx%d exceeds %d cells", ErrInvalidSize, w, h, limit)
	}
	return nil
}

// Len returns the number of cells.
func (f *Field) Len() int { return f.Width * f.Height }

// Index returns the buffer offset of cell (x, y).
func (f *Field) Index(x, y int) int { return y*f.Width + x }

// At returns the value at (x, y).
func (f *Field) At(x, y int) float32 { return f.Data[y*f.Width+x] }

// Set stores v at (x, y).
func (f *Field) Set(x, y int, v float32) { f.Data[y*f.Width+x] = v }

// Row returns row y as a slice sharing the field's storage.
func (f *Field) Row(y int) []float32 {
	off := y * f.Width
	return f.Data[off : off+f.Width : off+f.Width]
}

// Fill sets every cell to v.
func (f *Field) Fill(v float32) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

// Scale multiplies every cell by k.
func (f *Field) Scale(k float32) {
	for i := range f.Data {
		f.Data[i] *= k
	}
}

// SameShape reports whether o has the same dimensions as f.
func (f *Field) SameShape(o *Field) bool {
	return f.Width == o.Width && f.Height == o.Height && len(f.Data) == len(o.Data)
}

// CopyFrom overwrites f with the contents of src.
func (f *Field) CopyFrom(src *Field) error {
	if !f.SameShape(src) {
		return fmt.Errorf("copying %dx%d into %dx%d: %w",
			src.Width, src.Height, f.Width, f.Height, ErrInvalidSize)
	}
	copy(f.Data, src.Data)
	return nil
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	data := make([]float32, len(f.Data))
	copy(data, f.Data)
	return &Field{Width: f.Width, Height: f.Height, Data: data}
}

// Overlaps reports whether f and o share any backing memory.
func (f *Field) Overlaps(o *Field) bool {
	if len(f.Data) == 0 || len(o.Data) == 0 {
		return false
	}
	const sz = unsafe.Sizeof(float32(0))
	fStart := uintptr(unsafe.Pointer(unsafe.SliceData(f.Data)))
	oStart := uintptr(unsafe.Pointer(unsafe.SliceData(o.Data)))
	fEnd := fStart + uintptr(len(f.Data))*sz
	oEnd := oStart + uintptr(len(o.Data))*sz
	return fStart < oEnd && oStart < fEnd
}

// IsInterior reports whether (x, y) has all four orthogonal neighbours.
func (f *Field) IsInterior(x, y int) bool {
	return x > 0 && y > 0 && x < f.Width-1 && y < f.Height-1
}
