package mpa

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/fumin/tensor"
)

func TestFromArrayGlobal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dims []int
	}{
		{dims: []int{2}},
		{dims: []int{2, 2}},
		{dims: []int{2, 3, 2}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.dims), func(t *testing.T) {
			t.Parallel()
			rows := 1
			for _, d := range test.dims {
				rows *= d
			}
			m := randTensor(rows, rows)
			shape := append(append([]int{}, test.dims...), test.dims...)

			a, err := FromArrayGlobal(resetCopy(tensor.Zeros(1), m).Reshape(shape...), 2)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if a.Len() != len(test.dims) {
				t.Fatalf("%d, expected %d", a.Len(), len(test.dims))
			}
			if err := a.ToMatrix().Equal(m, 1e-5); err != nil {
				t.Fatalf("%+v", err)
			}
		})
	}
}

func TestFromArrayWrongLegs(t *testing.T) {
	t.Parallel()
	if _, err := FromArray(tensor.Zeros(2, 2, 2), 2); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDot(t *testing.T) {
	t.Parallel()
	a := randMPO(3, 2)
	b := randMPO(3, 2)
	ab := Dot(a, b)
	expected := tensor.MatMul(tensor.Zeros(1), a.ToMatrix(), b.ToMatrix())
	if err := ab.ToMatrix().Equal(expected, 1e-4); err != nil {
		t.Fatalf("%+v", err)
	}
	for i, r := range ab.Ranks() {
		if ra, rb := a.Ranks()[i], b.Ranks()[i]; r != ra*rb {
			t.Fatalf("%d %d %d %d", i, r, ra, rb)
		}
	}
}

func TestDotSelf(t *testing.T) {
	t.Parallel()
	a := randMPO(3, 2)
	aa := Dot(a, a)
	expected := tensor.MatMul(tensor.Zeros(1), a.ToMatrix(), a.ToMatrix())
	if err := aa.ToMatrix().Equal(expected, 1e-4); err != nil {
		t.Fatalf("%+v", err)
	}
}

func TestTraceNormAdjoint(t *testing.T) {
	t.Parallel()
	a := randMPO(3, 2)
	m := a.ToMatrix()

	var trace complex128
	for i := range m.Shape()[0] {
		trace += complex128(m.At(i, i))
	}
	if got := Trace(a); cmplx.Abs(got-trace) > 1e-4 {
		t.Fatalf("%v, expected %v", got, trace)
	}

	if got, expected := Norm(a), float64(m.FrobeniusNorm()); math.Abs(got-expected) > 1e-4 {
		t.Fatalf("%v, expected %v", got, expected)
	}

	adj := a.Copy().Adjoint().ToMatrix()
	if err := adj.Equal(m.H(), 1e-5); err != nil {
		t.Fatalf("%+v", err)
	}
}

func TestChainEye(t *testing.T) {
	t.Parallel()
	a := Chain(Eye(2), Eye(3))
	if err := a.ToMatrix().Equal(tensor.Zeros(1).Eye(6, 0), 0); err != nil {
		t.Fatalf("%+v", err)
	}
	if got := Trace(a); got != 6 {
		t.Fatalf("%v", got)
	}
}

func TestCompress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		opt CompressOptions
		// lossless is true if the compression must not change the array.
		lossless bool
		maxRank  int
	}{
		{opt: NewCompressOptions(), lossless: true},
		{opt: NewCompressOptions().RelErr(1e-20), lossless: true},
		{opt: NewCompressOptions().Rank(2), maxRank: 2},
		{opt: NewCompressOptions().RelErr(0.3)},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.opt), func(t *testing.T) {
			t.Parallel()
			// A product of random operators has redundant ranks.
			a := Dot(randMPO(4, 2), randMPO(4, 2))
			orig := a.Copy()
			fidelity, err := a.Compress(test.opt)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			if fidelity <= 0 || fidelity > 1 {
				t.Fatalf("%f", fidelity)
			}
			if test.lossless {
				if math.Abs(fidelity-1) > 1e-5 {
					t.Fatalf("%f", fidelity)
				}
				if err := a.ToMatrix().Equal(orig.ToMatrix(), 1e-3); err != nil {
					t.Fatalf("%+v", err)
				}
			}
			for i, r := range a.Ranks() {
				if r > orig.Ranks()[i] {
					t.Fatalf("%v %v", a.Ranks(), orig.Ranks())
				}
				if test.maxRank > 0 && r > test.maxRank {
					t.Fatalf("%v", a.Ranks())
				}
			}
		})
	}
}

func TestCompressProductState(t *testing.T) {
	t.Parallel()
	// The identity padded with zero bond channels.
	sites := make([]*tensor.Dense, 0, 3)
	for i := range 3 {
		left, right := 2, 2
		if i == 0 {
			left = 1
		}
		if i == 2 {
			right = 1
		}
		s := tensor.Zeros(left, 2, 2, right)
		s.SetAt([]int{0, 0, 0, 0}, 1)
		s.SetAt([]int{0, 1, 1, 0}, 1)
		sites = append(sites, s)
	}
	a, err := New(sites)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	fidelity, err := a.Compress(NewCompressOptions())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(fidelity-1) > 1e-6 {
		t.Fatalf("%f", fidelity)
	}
	if !slices.Equal(a.Ranks(), []int{1, 1}) {
		t.Fatalf("%v", a.Ranks())
	}
	if got := Trace(a); cmplx.Abs(got-8) > 1e-5 {
		t.Fatalf("%v", got)
	}
}

func TestInnerProduct(t *testing.T) {
	t.Parallel()
	x, y := randMPO(3, 2), randMPO(3, 2)
	xa, ya := x.ToArray(), y.ToArray()
	var expected complex128
	for ijk, v := range xa.All() {
		expected += cmplx.Conj(complex128(v)) * complex128(ya.At(ijk...))
	}
	if got := InnerProduct(x, y); cmplx.Abs(got-expected) > 1e-4 {
		t.Fatalf("%v, expected %v", got, expected)
	}
}

func TestLocalOperator(t *testing.T) {
	t.Parallel()
	z := tensor.T2([][]complex64{
		{1, 0},
		{0, -1},
	})
	a := LocalOperator([]int{2, 2}, 1, z)
	expected := tensor.T2([][]complex64{
		{1, 0, 0, 0},
		{0, -1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, -1},
	})
	if err := a.ToMatrix().Equal(expected, 0); err != nil {
		t.Fatalf("%+v", err)
	}
}

func TestNewCopiesSites(t *testing.T) {
	t.Parallel()
	s := tensor.Zeros(1, 2, 1)
	s.SetAt([]int{0, 0, 0}, 1)
	a, err := New([]*tensor.Dense{s})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	s.SetAt([]int{0, 0, 0}, 5)
	if v := a.Sites[0].At(0, 0, 0); v != 1 {
		t.Fatalf("%v", v)
	}
}

func randMPO(numSites, d int) *MPArray {
	sites := make([]*tensor.Dense, 0, numSites)
	for i := range numSites {
		left, right := 2, 2
		if i == 0 {
			left = 1
		}
		if i == numSites-1 {
			right = 1
		}
		sites = append(sites, randTensor(left, d, d, right))
	}
	a, err := New(sites)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return a
}

func randTensor(shape ...int) *tensor.Dense {
	t := tensor.Zeros(shape...)
	for ijk := range t.All() {
		v := complex(rand.Float32()*2-1, rand.Float32()*2-1)
		t.SetAt(ijk, v)
	}
	return t
}
