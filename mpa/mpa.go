// Package mpa implements matrix product arrays, the chain form of tensor networks used for states and operators.
//
// Each site tensor has axes {left, leg_0, ..., leg_{k-1}, right}, where left and right are the bonds to the neighboring sites.
// Matrix product operators have two legs {out, in} per site.
// Site tensors are single precision and are never transposed or sliced views.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package mpa

import (
	"fmt"
	"math/cmplx"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

const (
	leftAxis = 0

	// mpoOutAxis is the axis of sigma_l in Figure 35.
	mpoOutAxis = 1
	mpoInAxis  = 2
)

// MPArray is a chain of site tensors.
// Operations that change an MPArray modify it in place; use Copy to keep the original.
type MPArray struct {
	Sites []*tensor.Dense
}

// New returns an MPArray from site tensors.
func New(sites []*tensor.Dense) (*MPArray, error) {
	if len(sites) == 0 {
		return nil, errors.Errorf("no sites")
	}
	numLegs := len(sites[0].Shape()) - 2
	for i, s := range sites {
		shape := s.Shape()
		if len(shape)-2 != numLegs {
			return nil, errors.Errorf("%d %#v %d", i, shape, numLegs)
		}
		if i > 0 {
			if prev := sites[i-1].Shape(); prev[len(prev)-1] != shape[leftAxis] {
				return nil, errors.Errorf("%d %#v %#v", i, prev, shape)
			}
		}
	}
	if sites[0].Shape()[leftAxis] != 1 {
		return nil, errors.Errorf("%#v", sites[0].Shape())
	}
	if last := sites[len(sites)-1].Shape(); last[len(last)-1] != 1 {
		return nil, errors.Errorf("%#v", last)
	}

	owned := make([]*tensor.Dense, 0, len(sites))
	for _, s := range sites {
		owned = append(owned, resetCopy(tensor.Zeros(1), s))
	}
	return &MPArray{Sites: owned}, nil
}

// Len returns the number of sites.
func (a *MPArray) Len() int { return len(a.Sites) }

// NumLegs returns the number of physical legs per site.
func (a *MPArray) NumLegs() int { return len(a.Sites[0].Shape()) - 2 }

// Legs returns the physical leg dimensions of every site.
func (a *MPArray) Legs() [][]int {
	legs := make([][]int, 0, len(a.Sites))
	for _, s := range a.Sites {
		shape := s.Shape()
		legs = append(legs, slices.Clone(shape[1:len(shape)-1]))
	}
	return legs
}

// Ranks returns the bond dimensions between neighboring sites.
func (a *MPArray) Ranks() []int {
	ranks := make([]int, 0, len(a.Sites)-1)
	for _, s := range a.Sites[:len(a.Sites)-1] {
		shape := s.Shape()
		ranks = append(ranks, shape[len(shape)-1])
	}
	return ranks
}

// Copy returns a deep copy.
func (a *MPArray) Copy() *MPArray {
	sites := make([]*tensor.Dense, 0, len(a.Sites))
	for _, s := range a.Sites {
		sites = append(sites, resetCopy(tensor.Zeros(1), s))
	}
	return &MPArray{Sites: sites}
}

// Scale multiplies a by c in place.
func (a *MPArray) Scale(c complex128) *MPArray {
	a.Sites[0].Mul(complex64(c))
	return a
}

// Adjoint swaps the two legs of every site and conjugates, in place.
// For an operator this is the conjugate transpose.
func (a *MPArray) Adjoint() *MPArray {
	if a.NumLegs() != 2 {
		panic(fmt.Sprintf("%#v", a.Legs()))
	}
	for i, s := range a.Sites {
		a.Sites[i] = resetCopy(tensor.Zeros(1), s.Transpose(leftAxis, mpoInAxis, mpoOutAxis, 3).Conj())
	}
	return a
}

// Eye returns the one site identity operator on a physical dimension d.
func Eye(d int) *MPArray {
	return &MPArray{Sites: []*tensor.Dense{tensor.Zeros(1).Eye(d, 0).Reshape(1, d, d, 1)}}
}

// Chain concatenates arrays into one, in order.
func Chain(arrays ...*MPArray) *MPArray {
	sites := make([]*tensor.Dense, 0)
	for _, a := range arrays {
		sites = append(sites, a.Copy().Sites...)
	}
	if len(sites) == 0 {
		panic("empty chain")
	}
	numLegs := len(sites[0].Shape())
	for i, s := range sites {
		if len(s.Shape()) != numLegs {
			panic(fmt.Sprintf("%d %#v", i, s.Shape()))
		}
	}
	return &MPArray{Sites: sites}
}

// FromArray decomposes a tensor in local form into an MPArray with numLegs legs per site.
// Local form orders the axes site by site, {site0 leg0, site0 leg1, site1 leg0, site1 leg1, ...}.
// See Section 4.1.3 Decomposition of arbitrary quantum states into MPS, Ulrich Schollwock.
func FromArray(t *tensor.Dense, numLegs int) (*MPArray, error) {
	shape := slices.Clone(t.Shape())
	if numLegs <= 0 || len(shape) == 0 || len(shape)%numLegs != 0 {
		return nil, errors.Errorf("%#v %d", shape, numLegs)
	}
	numSites := len(shape) / numLegs

	sites := make([]*tensor.Dense, 0, numSites)
	rest := resetCopy(tensor.Zeros(1), t)
	leftD := 1
	for i := range numSites - 1 {
		legs := shape[i*numLegs : (i+1)*numLegs]
		physD := 1
		for _, d := range legs {
			physD *= d
		}

		u, s, vh, err := svd(rest.Reshape(leftD*physD, -1), rankOf)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		k := len(s)
		siteShape := append(append([]int{leftD}, legs...), k)
		sites = append(sites, u.Reshape(siteShape...))

		rest = scaleRows(vh, s)
		leftD = k
	}
	legs := shape[(numSites-1)*numLegs:]
	siteShape := append(append([]int{leftD}, legs...), 1)
	sites = append(sites, rest.Reshape(siteShape...))

	return &MPArray{Sites: sites}, nil
}

// FromArrayGlobal decomposes a tensor in global form into an MPArray with numLegs legs per site.
// Global form orders the axes leg by leg, {site0 leg0, site1 leg0, ..., site0 leg1, site1 leg1, ...},
// which is the form of a dense operator reshaped with its row and column indices split per site.
func FromArrayGlobal(t *tensor.Dense, numLegs int) (*MPArray, error) {
	shape := t.Shape()
	if numLegs <= 0 || len(shape) == 0 || len(shape)%numLegs != 0 {
		return nil, errors.Errorf("%#v %d", shape, numLegs)
	}
	numSites := len(shape) / numLegs
	perm := make([]int, 0, len(shape))
	for i := range numSites {
		for j := range numLegs {
			perm = append(perm, j*numSites+i)
		}
	}
	a, err := FromArray(t.Transpose(perm...), numLegs)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return a, nil
}

// ToArray contracts all sites into a tensor in local form.
func (a *MPArray) ToArray() *tensor.Dense {
	p := resetCopy(tensor.Zeros(1), a.Sites[0])
	for _, s := range a.Sites[1:] {
		axes := [][2]int{{len(p.Shape()) - 1, leftAxis}}
		p = contract(p, s, axes)
	}
	shape := slices.Clone(p.Shape())
	return p.Reshape(shape[1 : len(shape)-1]...)
}

// ToArrayGlobal contracts all sites into a tensor in global form.
func (a *MPArray) ToArrayGlobal() *tensor.Dense {
	numSites, numLegs := a.Len(), a.NumLegs()
	perm := make([]int, 0, numSites*numLegs)
	for j := range numLegs {
		for i := range numSites {
			perm = append(perm, i*numLegs+j)
		}
	}
	return resetCopy(tensor.Zeros(1), a.ToArray().Transpose(perm...))
}

// ToMatrix returns the dense matrix of an operator.
func (a *MPArray) ToMatrix() *tensor.Dense {
	if a.NumLegs() != 2 {
		panic(fmt.Sprintf("%#v", a.Legs()))
	}
	rows := 1
	for _, legs := range a.Legs() {
		rows *= legs[0]
	}
	return a.ToArrayGlobal().Reshape(rows, -1)
}

// Dot contracts the last leg of every site of a with the first leg of the corresponding site of b.
// For operators this is the matrix product a @ b.
func Dot(a, b *MPArray) *MPArray {
	if a.Len() != b.Len() {
		panic(fmt.Sprintf("%d %d", a.Len(), b.Len()))
	}
	na, nb := a.NumLegs(), b.NumLegs()
	// Axes of the contracted site are {aLeft, aLegs[:na-1]..., aRight, bLeft, bLegs[1:]..., bRight}.
	// Reorder them to {aLeft, bLeft, aLegs..., bLegs..., aRight, bRight}.
	perm := []int{0, na + 1}
	for i := 1; i < na; i++ {
		perm = append(perm, i)
	}
	for i := 1; i < nb; i++ {
		perm = append(perm, na+1+i)
	}
	perm = append(perm, na, na+nb+1)

	sites := make([]*tensor.Dense, 0, a.Len())
	for i, as := range a.Sites {
		bs := b.Sites[i]
		sa, sb := as.Shape(), bs.Shape()
		ab := contract(as, bs, [][2]int{{na, 1}})
		shape := []int{sa[0] * sb[0]}
		shape = append(shape, sa[1:na]...)
		shape = append(shape, sb[2:nb+1]...)
		shape = append(shape, sa[na+1]*sb[nb+1])
		sites = append(sites, resetCopy(tensor.Zeros(1), ab.Transpose(perm...)).Reshape(shape...))
	}
	return &MPArray{Sites: sites}
}

// InnerProduct computes <x|y>, conjugating x.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y *MPArray) complex128 {
	if x.Len() != y.Len() {
		panic(fmt.Sprintf("%d %d", x.Len(), y.Len()))
	}

	// f is of shape {fTop, fBottom}.
	f := tensor.T2([][]complex64{{1}})
	const fTopAxis, fBottomAxis = 0, 1
	for i, xi := range x.Sites {
		xm, ym := flatten(xi), flatten(y.Sites[i])
		// fy is of shape {fTop, yUp, yRight}.
		fy := contract(f, ym, [][2]int{{fBottomAxis, leftAxis}})
		f = contract(xm.Conj(), fy, [][2]int{{leftAxis, fTopAxis}, {1, 1}})
	}

	if !slices.Equal(f.Shape(), []int{1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return complex128(f.At(0, 0))
}

// Norm returns the Frobenius norm sqrt(<a|a>).
func Norm(a *MPArray) float64 {
	return cmplx.Abs(cmplx.Sqrt(InnerProduct(a, a)))
}

// Trace returns the trace of an operator.
func Trace(a *MPArray) complex128 {
	if a.NumLegs() != 2 {
		panic(fmt.Sprintf("%#v", a.Legs()))
	}

	f := tensor.T1([]complex64{1})
	for _, s := range a.Sites {
		shape := s.Shape()
		l, d, r := shape[0], shape[mpoOutAxis], shape[3]
		if shape[mpoInAxis] != d {
			panic(fmt.Sprintf("%#v", shape))
		}
		// m is the site with its legs traced out, of shape {left, right}.
		m := tensor.Zeros(l, r)
		for i := range l {
			for j := range r {
				var v complex64
				for k := range d {
					v += s.At(i, k, k, j)
				}
				m.SetAt([]int{i, j}, v)
			}
		}
		f = contract(f, m, [][2]int{{0, 0}})
	}
	return complex128(f.At(0))
}

// LocalOperator returns the operator that acts as op on site and as the identity elsewhere.
// dims are the physical dimensions of the chain.
func LocalOperator(dims []int, site int, op *tensor.Dense) *MPArray {
	shape := op.Shape()
	if site < 0 || site >= len(dims) || len(shape) != 2 || shape[0] != dims[site] || shape[1] != dims[site] {
		panic(fmt.Sprintf("%#v %d %#v", dims, site, shape))
	}
	sites := make([]*tensor.Dense, 0, len(dims))
	for i, d := range dims {
		m := tensor.Zeros(1).Eye(d, 0)
		if i == site {
			m = resetCopy(tensor.Zeros(1), op)
		}
		sites = append(sites, m.Reshape(1, d, d, 1))
	}
	return &MPArray{Sites: sites}
}

// flatten merges the physical legs of a site, returning a tensor of shape {left, phys, right}.
func flatten(s *tensor.Dense) *tensor.Dense {
	shape := s.Shape()
	return s.Reshape(shape[0], -1, shape[len(shape)-1])
}

// contract returns the contraction of a and b in a new tensor.
func contract(a, b *tensor.Dense, axes [][2]int) *tensor.Dense {
	// Contract iterates with the digits held by its operands, so they must be distinct tensors.
	if a == b {
		b = resetCopy(tensor.Zeros(1), b)
	}
	return tensor.Contract(tensor.Zeros(1), a, b, axes)
}

// resetCopy copies src into dst, dropping any transposition, slicing or conjugation of src.
func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}
