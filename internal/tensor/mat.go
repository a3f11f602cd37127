// Package tensor provides the dense float32 matrix used by the reference
// engine. It is intentionally minimal: row-major storage, row views and a
// reproducible random fill.
package tensor

import "math/rand"

// Mat represents a dense row-major matrix of float32 values.
//
// R and C are the number of rows and columns. Stride is the number of
// elements between the starts of two consecutive rows (equal to C here).
// Mat performs no memory safety beyond Go's slice checks; out-of-range
// indices panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMat allocates a zero-initialised matrix with the given dimensions.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		Data:   make([]float32, r*c),
	}
}

// Row returns a view of the i-th row. Modifications to the returned slice
// update the underlying matrix values.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// MatVec computes dst = x · m, treating x as a row vector of length R.
// dst must have length C.
func (m *Mat) MatVec(dst, x []float32) {
	if len(x) < m.R || len(dst) < m.C {
		panic("matvec dimension mismatch")
	}
	for j := 0; j < m.C; j++ {
		dst[j] = 0
	}
	for i := 0; i < m.R; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		row := m.Row(i)
		for j := 0; j < m.C; j++ {
			dst[j] += xi * row[j]
		}
	}
}

// FillRand fills the matrix with reproducible pseudo-random values in a
// small range around zero to avoid overflow in accumulations. The same
// seed produces identical matrices.
func FillRand(m *Mat, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.Data {
		m.Data[i] = (rng.Float32() - 0.5) * 0.02
	}
}
