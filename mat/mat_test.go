package mat

import (
	"fmt"
	"math"
	"testing"
)

func TestKron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a *CDense
		b *CDense
		c *CDense
	}{
		{
			a: M([][]complex128{
				{1, -4, 7},
				{-2, 0, 3},
			}),
			b: M([][]complex128{
				{8, -9, -6, 5},
				{1, -3, 0, 7},
				{2, 8, -8, -3},
				{1, 2, -5, -1},
			}),
			c: M([][]complex128{
				{8, -9, -6, 5, -32, 36, 24, -20, 56, -63, -42, 35},
				{1, -3, 0, 7, -4, 12, 0, -28, 7, -21, 0, 49},
				{2, 8, -8, -3, -8, -32, 32, 12, 14, 56, -56, -21},
				{1, 2, -5, -1, -4, -8, 20, 4, 7, 14, -35, -7},
				{-16, 18, 12, -10, 0, 0, 0, 0, 24, -27, -18, 15},
				{-2, 6, 0, -14, 0, 0, 0, 0, 3, -9, 0, 21},
				{-4, -16, 16, 6, 0, 0, 0, 0, 6, 24, -24, -9},
				{-2, -4, 10, 2, 0, 0, 0, 0, 3, 6, -15, -3},
			}),
		},
		// Scalar kronecker.
		{
			a: M([][]complex128{{1i}}),
			b: M([][]complex128{
				{1, 2},
				{3, 4i},
			}),
			c: M([][]complex128{
				{1i, 2i},
				{3i, -4},
			}),
		},
		{
			a: M(PauliZ),
			b: M([][]complex128{
				{0, -1i},
				{1i, 0},
			}),
			c: M([][]complex128{
				{0, -1i, 0, 0},
				{1i, 0, 0, 0},
				{0, 0, 0, 1i},
				{0, 0, -1i, 0},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", String(test.a)), func(t *testing.T) {
			t.Parallel()
			c := Kron(test.a, test.b)
			if !EqualApprox(c, test.c, 0) {
				t.Fatalf("%s, expected %s", String(c), String(test.c))
			}
		})
	}
}

func TestExpm(t *testing.T) {
	t.Parallel()
	tests := []struct {
		theta float64
	}{
		{theta: 0},
		{theta: 0.3},
		{theta: math.Pi / 2},
		{theta: 2.7},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%f", test.theta), func(t *testing.T) {
			t.Parallel()
			// exp(-i theta X) = cos(theta) I - i sin(theta) X.
			u := Expm(Scale(complex(0, -test.theta), M(PauliX)))
			expected := Add(Scale(complex(math.Cos(test.theta), 0), Identity(2)), complex(0, -math.Sin(test.theta)), M(PauliX))
			if !EqualApprox(u, expected, 1e-12) {
				t.Fatalf("%s, expected %s", String(u), String(expected))
			}

			// u is unitary.
			if !EqualApprox(Mul(u, H(u)), Identity(2), 1e-12) {
				t.Fatalf("%s", String(Mul(u, H(u))))
			}
		})
	}
}

func TestMul(t *testing.T) {
	t.Parallel()
	a := M([][]complex128{
		{0, 0},
		{-1, 2i},
	})
	b := M([][]complex128{
		{0, 1},
		{0, 2},
	})
	c := M([][]complex128{
		{0, 0},
		{0, -1 + 4i},
	})
	if got := Mul(a, b); !EqualApprox(got, c, 0) {
		t.Fatalf("%s, expected %s", String(got), String(c))
	}
	if got := Trace(c); got != -1+4i {
		t.Fatalf("%v", got)
	}
}

func TestFormatNumpy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		v complex128
		s string
	}{
		{v: 1.5, s: "1.5"},
		{v: 1 - 2i, s: "1-2j"},
	}
	for _, test := range tests {
		t.Run(test.s, func(t *testing.T) {
			t.Parallel()
			if s := FormatNumpy(test.v); s != test.s {
				t.Fatalf("%s, expected %s", s, test.s)
			}
		})
	}
}

func TestTensor(t *testing.T) {
	t.Parallel()
	m := M([][]complex128{
		{1, 2i, 0},
		{-3, 0.5, 1 - 1i},
	})
	tm := Tensor(m)
	if shape := tm.Shape(); shape[0] != 2 || shape[1] != 3 {
		t.Fatalf("%#v", shape)
	}
	if v := tm.At(1, 2); v != 1-1i {
		t.Fatalf("%v", v)
	}
	for ij, v := range tm.All() {
		if expected := complex64(m.At(ij[0], ij[1])); v != expected {
			t.Fatalf("%v %v, expected %v", ij, v, expected)
		}
	}
}
