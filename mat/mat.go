// Package mat implements the algebra of small dense operators acting on one or two sites.
package mat

import (
	"fmt"
	"math/cmplx"
	"strconv"
	"strings"

	"github.com/fumin/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// CDense is a dense complex matrix.
type CDense = mat.CDense

var (
	PauliX = [][]complex128{
		{0, 1},
		{1, 0},
	}
	PauliZ = [][]complex128{
		{1, 0},
		{0, -1},
	}
)

// M returns a matrix from its rows.
func M(dense [][]complex128) *CDense {
	rows, cols := len(dense), len(dense[0])
	data := make([]complex128, 0, rows*cols)
	for i, row := range dense {
		if len(row) != cols {
			panic(fmt.Sprintf("%d %d %d", i, len(row), cols))
		}
		data = append(data, row...)
	}
	return mat.NewCDense(rows, cols, data)
}

// Zeros returns a zero matrix.
func Zeros(rows, cols int) *CDense {
	return mat.NewCDense(rows, cols, nil)
}

// Identity returns the n by n identity.
func Identity(n int) *CDense {
	m := Zeros(n, n)
	for i := range n {
		m.Set(i, i, 1)
	}
	return m
}

// Data returns the elements of m in row-major order.
func Data(m *CDense) []complex128 {
	rows, cols := m.Dims()
	data := make([]complex128, 0, rows*cols)
	for i := range rows {
		for j := range cols {
			data = append(data, m.At(i, j))
		}
	}
	return data
}

// IsSquare reports whether m is square.
func IsSquare(m *CDense) bool {
	rows, cols := m.Dims()
	return rows == cols
}

// Add returns a + c*b.
func Add(a *CDense, c complex128, b *CDense) *CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(fmt.Sprintf("%d %d %d %d", ar, ac, br, bc))
	}
	z := Zeros(ar, ac)
	for i := range ar {
		for j := range ac {
			z.Set(i, j, a.At(i, j)+c*b.At(i, j))
		}
	}
	return z
}

// Scale returns c*a.
func Scale(c complex128, a *CDense) *CDense {
	rows, cols := a.Dims()
	return Add(Zeros(rows, cols), c, a)
}

// Mul returns the matrix product a @ b.
func Mul(a, b *CDense) *CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(fmt.Sprintf("%d %d %d %d", ar, ac, br, bc))
	}
	data := make([]complex128, ar*bc)
	ga := cblas128.General{Rows: ar, Cols: ac, Stride: ac, Data: Data(a)}
	gb := cblas128.General{Rows: br, Cols: bc, Stride: bc, Data: Data(b)}
	gc := cblas128.General{Rows: ar, Cols: bc, Stride: bc, Data: data}
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, ga, gb, 0, gc)
	return mat.NewCDense(ar, bc, data)
}

// H returns the conjugate transpose of a.
func H(a *CDense) *CDense {
	rows, cols := a.Dims()
	h := Zeros(cols, rows)
	for i := range rows {
		for j := range cols {
			h.Set(j, i, cmplx.Conj(a.At(i, j)))
		}
	}
	return h
}

// Trace returns the trace of a.
func Trace(a *CDense) complex128 {
	rows, cols := a.Dims()
	var t complex128
	for i := range min(rows, cols) {
		t += a.At(i, i)
	}
	return t
}

// Kron returns the Kronecker product a ⊗ b.
func Kron(a, b *CDense) *CDense {
	aRe, aIm := split(a)
	bRe, bIm := split(b)

	// (aRe + i aIm) ⊗ (bRe + i bIm) = aRe⊗bRe - aIm⊗bIm + i(aRe⊗bIm + aIm⊗bRe).
	var rr, ii, ri, ir mat.Dense
	rr.Kronecker(aRe, bRe)
	ii.Kronecker(aIm, bIm)
	ri.Kronecker(aRe, bIm)
	ir.Kronecker(aIm, bRe)
	var re, im mat.Dense
	re.Sub(&rr, &ii)
	im.Add(&ri, &ir)
	return join(&re, &im)
}

// Expm returns the matrix exponential of a.
func Expm(a *CDense) *CDense {
	if !IsSquare(a) {
		rows, cols := a.Dims()
		panic(fmt.Sprintf("%d %d", rows, cols))
	}
	n, _ := a.Dims()
	re, im := split(a)

	// The real representation {{re, -im}, {im, re}} of a complex matrix is a ring homomorphism,
	// so the exponential of the representation represents the exponential.
	r := mat.NewDense(2*n, 2*n, nil)
	for i := range n {
		for j := range n {
			r.Set(i, j, re.At(i, j))
			r.Set(i, n+j, -im.At(i, j))
			r.Set(n+i, j, im.At(i, j))
			r.Set(n+i, n+j, re.At(i, j))
		}
	}
	var e mat.Dense
	e.Exp(r)

	expm := Zeros(n, n)
	for i := range n {
		for j := range n {
			expm.Set(i, j, complex(e.At(i, j), e.At(n+i, j)))
		}
	}
	return expm
}

// EqualApprox reports whether a and b have the same shape and all elements within tol.
func EqualApprox(a, b *CDense, tol float64) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return false
	}
	for i := range ar {
		for j := range ac {
			if cmplx.Abs(a.At(i, j)-b.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

// String formats a matrix as aligned rows.
func String(m *CDense) string {
	rows, cols := m.Dims()
	lines := make([]string, 0, rows)
	for i := range rows {
		cs := make([]string, 0, cols)
		for j := range cols {
			v := m.At(i, j)
			switch {
			case imag(v) == 0:
				cs = append(cs, format(real(v)))
			case real(v) == 0:
				cs = append(cs, format(imag(v))+"i")
			default:
				cs = append(cs, format(real(v))+"+"+format(imag(v))+"i")
			}
		}
		lines = append(lines, strings.Join(cs, "\t"))
	}
	return strings.Join(lines, "\n")
}

// format pads non-negative values with a sign column, and prints -0 as 0.
func format(v float64) string {
	if v == 0 {
		return " 0"
	}
	s := strconv.FormatFloat(v, 'g', 6, 64)
	if v > 0 {
		s = " " + s
	}
	return s
}

// FormatNumpy formats a complex number as numpy.complex128 parses it, for example "1" or "1+2j".
func FormatNumpy(v complex128) string {
	switch {
	case imag(v) == 0:
		return strconv.FormatFloat(real(v), 'g', -1, 64)
	default:
		s := strconv.FormatComplex(v, 'g', -1, 128)
		s = strings.Trim(s, "()")
		s = strings.ReplaceAll(s, "i", "j")
		return s
	}
}

// Tensor returns m as a matrix tensor, rounding its elements to single precision.
func Tensor(m *CDense) *tensor.Dense {
	rows, cols := m.Dims()
	t := tensor.Zeros(rows, cols)
	for i := range rows {
		for j := range cols {
			t.SetAt([]int{i, j}, complex64(m.At(i, j)))
		}
	}
	return t
}

func split(a *CDense) (*mat.Dense, *mat.Dense) {
	rows, cols := a.Dims()
	re, im := mat.NewDense(rows, cols, nil), mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			v := a.At(i, j)
			re.Set(i, j, real(v))
			im.Set(i, j, imag(v))
		}
	}
	return re, im
}

func join(re, im *mat.Dense) *CDense {
	rows, cols := re.Dims()
	m := Zeros(rows, cols)
	for i := range rows {
		for j := range cols {
			m.Set(i, j, complex(re.At(i, j), im.At(i, j)))
		}
	}
	return m
}
