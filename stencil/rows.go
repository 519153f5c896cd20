package stencil

import (
	"gonum.org/v1/gonum/blas/blas32"
)

// rowFunc computes interior row y (0 < y < h-1) of d from s.
type rowFunc func(d, s []float32, w, y int)

// Every update accumulates in the order centre, up, down, left, right.
// The float32 conversions round each product, so no step is fused.

// topRow covers the two top corners and the top edge.
func (k *Kernel) topRow(d, s []float32, w int) {
	c, n := k.center, k.neighbor
	cur := s[0:w]
	down := s[w : 2*w]
	out := d[0:w]

	v := c * cur[0]
	v += float32(n * down[0])
	if k.mode == Reference {
		v += float32(n * cur[0])
	} else {
		v += float32(n * cur[1])
	}
	out[0] = v

	for x := 1; x < w-1; x++ {
		v := c * cur[x]
		v += float32(n * down[x])
		v += float32(n * cur[x-1])
		v += float32(n * cur[x+1])
		out[x] = v
	}

	e := w - 1
	v = c * cur[e]
	v += float32(n * down[e])
	v += float32(n * cur[e-1])
	out[e] = v
}

// bottomRow covers the two bottom corners and the bottom edge.
func (k *Kernel) bottomRow(d, s []float32, w, h int) {
	c, n := k.center, k.neighbor
	off := (h - 1) * w
	up := s[off-w : off]
	cur := s[off : off+w]
	out := d[off : off+w]

	v := c * cur[0]
	v += float32(n * up[0])
	v += float32(n * cur[1])
	out[0] = v

	for x := 1; x < w-1; x++ {
		v := c * cur[x]
		v += float32(n * up[x])
		v += float32(n * cur[x-1])
		v += float32(n * cur[x+1])
		out[x] = v
	}

	e := w - 1
	v = c * cur[e]
	v += float32(n * up[e])
	v += float32(n * cur[e-1])
	out[e] = v
}

// interiorRow handles the left and right edge cells of row y and the
// branch-free span between them.
func (k *Kernel) interiorRow(d, s []float32, w, y int) {
	c, n := k.center, k.neighbor
	off := y * w
	up := s[off-w : off]
	cur := s[off : off+w]
	down := s[off+w : off+2*w]
	out := d[off : off+w]

	v := c * cur[0]
	v += float32(n * up[0])
	v += float32(n * down[0])
	v += float32(n * cur[1])
	out[0] = v

	for x := 1; x < w-1; x++ {
		v := c * cur[x]
		v += float32(n * up[x])
		v += float32(n * down[x])
		v += float32(n * cur[x-1])
		v += float32(n * cur[x+1])
		out[x] = v
	}

	e := w - 1
	v = c * cur[e]
	v += float32(n * up[e])
	v += float32(n * down[e])
	v += float32(n * cur[e-1])
	out[e] = v
}

// interiorRowBLAS is interiorRow with the inner span expressed as whole-row
// Copy/Scal/Axpy calls.
func (k *Kernel) interiorRowBLAS(d, s []float32, w, y int) {
	c, n := k.center, k.neighbor
	off := y * w
	up := s[off-w : off]
	cur := s[off : off+w]
	down := s[off+w : off+2*w]
	out := d[off : off+w]

	if m := w - 2; m > 0 {
		dst := vec(out[1 : w-1])
		blas32.Copy(vec(cur[1:w-1]), dst)
		blas32.Scal(c, dst)
		blas32.Axpy(n, vec(up[1:w-1]), dst)
		blas32.Axpy(n, vec(down[1:w-1]), dst)
		blas32.Axpy(n, vec(cur[0:w-2]), dst)
		blas32.Axpy(n, vec(cur[2:w]), dst)
	}

	v := c * cur[0]
	v += float32(n * up[0])
	v += float32(n * down[0])
	v += float32(n * cur[1])
	out[0] = v

	e := w - 1
	v = c * cur[e]
	v += float32(n * up[e])
	v += float32(n * down[e])
	v += float32(n * cur[e-1])
	out[e] = v
}

func vec(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}
