// Package exactdiag evolves density matrices of small chains exactly, by exponentiating the full Hamiltonian.
// It is the reference against which the tensor network evolution is checked.
package exactdiag

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
	gmat "gonum.org/v1/gonum/mat"

	"github.com/fumin/tmps/mat"
)

// Hamiltonian returns Σ_i sites[i] + Σ_i bonds[i] as an operator on the full chain,
// where sites[i] acts on site i and bonds[i] on sites i and i+1.
func Hamiltonian(sites, bonds []*mat.CDense) (*mat.CDense, error) {
	if len(sites) == 0 || len(bonds) != len(sites)-1 {
		return nil, errors.Errorf("%d sites %d bonds", len(sites), len(bonds))
	}
	dims := make([]int, 0, len(sites))
	for _, s := range sites {
		if !mat.IsSquare(s) {
			return nil, errors.Errorf("%d", len(dims))
		}
		d, _ := s.Dims()
		dims = append(dims, d)
	}

	size := product(dims)
	h := mat.Zeros(size, size)
	for i, s := range sites {
		h = mat.Add(h, 1, embed(dims, i, 1, s))
	}
	for i, b := range bonds {
		if d, _ := b.Dims(); !mat.IsSquare(b) || d != dims[i]*dims[i+1] {
			return nil, errors.Errorf("bond %d %d %d %d", i, d, dims[i], dims[i+1])
		}
		h = mat.Add(h, 1, embed(dims, i, 2, b))
	}
	return h, nil
}

// LocalOperator returns op acting on site of a chain with local dimensions dims.
func LocalOperator(dims []int, site int, op *mat.CDense) (*mat.CDense, error) {
	if site < 0 || site >= len(dims) {
		return nil, errors.Errorf("site %d of %d", site, len(dims))
	}
	if d, _ := op.Dims(); !mat.IsSquare(op) || d != dims[site] {
		return nil, errors.Errorf("operator %d, site %d", d, dims[site])
	}
	return embed(dims, site, 1, op), nil
}

// ProductState returns rhos[0] ⊗ rhos[1] ⊗ ....
func ProductState(rhos []*mat.CDense) *mat.CDense {
	rho := mat.Identity(1)
	for _, r := range rhos {
		rho = mat.Kron(rho, r)
	}
	return rho
}

// Propagator returns exp(-i t h).
func Propagator(h *mat.CDense, t float64) *mat.CDense {
	return mat.Expm(mat.Scale(complex(0, -t), h))
}

// Evolve returns the density matrices U(t) rho U(t)^† at times.
func Evolve(rho, h *mat.CDense, times []float64) []*mat.CDense {
	rhos := make([]*mat.CDense, 0, len(times))
	for _, t := range times {
		u := Propagator(h, t)
		rhos = append(rhos, mat.Mul(mat.Mul(u, rho), mat.H(u)))
	}
	return rhos
}

// Expectation returns tr(rho op) / tr(rho).
func Expectation(rho, op *mat.CDense) complex128 {
	return mat.Trace(mat.Mul(rho, op)) / mat.Trace(rho)
}

// GroundEnergy returns the smallest eigenvalue of a Hermitian h.
func GroundEnergy(h *mat.CDense) (float64, error) {
	if !mat.IsSquare(h) {
		rows, cols := h.Dims()
		return -1, errors.Errorf("%d %d", rows, cols)
	}
	n, _ := h.Dims()

	// The real representation {{re, -im}, {im, re}} of a Hermitian matrix is symmetric,
	// and has the same eigenvalues, each with twice the multiplicity.
	r := gmat.NewSymDense(2*n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			v := h.At(i, j)
			r.SetSym(i, j, real(v))
			r.SetSym(n+i, n+j, real(v))
			r.SetSym(i, n+j, -imag(v))
			r.SetSym(j, n+i, imag(v))
		}
	}
	var eig gmat.EigenSym
	if ok := eig.Factorize(r, false); !ok {
		return -1, errors.Errorf("eigen decomposition failed")
	}
	return slices.Min(eig.Values(nil)), nil
}

// embed returns I ⊗ op ⊗ I, where op acts on span consecutive sites starting from site.
func embed(dims []int, site, span int, op *mat.CDense) *mat.CDense {
	if site+span > len(dims) {
		panic(fmt.Sprintf("%#v %d %d", dims, site, span))
	}
	left := mat.Identity(product(dims[:site]))
	right := mat.Identity(product(dims[site+span:]))
	return mat.Kron(mat.Kron(left, op), right)
}

func product(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}
