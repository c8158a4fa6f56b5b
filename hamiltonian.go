package tmps

import (
	"fmt"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/tmps/mat"
	"github.com/fumin/tmps/mpa"
)

// Hamiltonians is a nearest neighbor Hamiltonian of a chain, given as terms acting on single sites and terms acting on bonds of adjacent sites.
// Either Site and Bond are set and repeated across the chain, or Sites and Bonds list the terms of every site and every bond.
type Hamiltonians struct {
	Site *mat.CDense
	Bond *mat.CDense

	Sites []*mat.CDense
	Bonds []*mat.CDense
}

// Uniform returns the Hamiltonian that repeats site on every site and bond on every bond.
func Uniform(site, bond *mat.CDense) Hamiltonians {
	return Hamiltonians{Site: site, Bond: bond}
}

// Explicit returns the Hamiltonian with the terms sites[i] on site i and bonds[i] on sites i and i+1.
func Explicit(sites, bonds []*mat.CDense) Hamiltonians {
	return Hamiltonians{Sites: sites, Bonds: bonds}
}

// lists returns the site terms and bond terms of a chain of numSites sites.
func (h Hamiltonians) lists(numSites int) ([]*mat.CDense, []*mat.CDense, error) {
	var sites, bonds []*mat.CDense
	switch {
	case h.Sites != nil || h.Bonds != nil:
		if len(h.Sites) != numSites || len(h.Bonds) != numSites-1 {
			return nil, nil, errors.Wrap(ErrConfig, fmt.Sprintf("number of hamiltonians %d %d does not match number of sites %d", len(h.Sites), len(h.Bonds), numSites))
		}
		sites, bonds = h.Sites, h.Bonds
	case h.Site != nil && h.Bond != nil:
		sites = slices.Repeat([]*mat.CDense{h.Site}, numSites)
		bonds = slices.Repeat([]*mat.CDense{h.Bond}, max(numSites-1, 0))
	default:
		return nil, nil, errors.Wrap(ErrConfig, "no hamiltonian")
	}

	if err := checkDims(sites, bonds); err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	return sites, bonds, nil
}

// checkDims checks that every term is square, and that every bond term acts on the joint space of its two sites.
func checkDims(sites, bonds []*mat.CDense) error {
	for i, h := range sites {
		if h == nil || !mat.IsSquare(h) {
			return errors.Wrap(ErrConfig, fmt.Sprintf("site hamiltonian %d is not square", i))
		}
	}
	for i, h := range bonds {
		if h == nil || !mat.IsSquare(h) {
			return errors.Wrap(ErrConfig, fmt.Sprintf("bond hamiltonian %d is not square", i))
		}
		d, _ := h.Dims()
		di, _ := sites[i].Dims()
		dj, _ := sites[i+1].Dims()
		if d != di*dj {
			return errors.Wrap(ErrConfig, fmt.Sprintf("bond hamiltonian %d has dimension %d, expected %d*%d", i, d, di, dj))
		}
	}
	return nil
}

// TransverseFieldIsing returns the Hamiltonian -j Σ Z_i Z_{i+1} - h Σ X_i.
func TransverseFieldIsing(j, h float64) Hamiltonians {
	site := mat.Scale(complex(-h, 0), mat.M(mat.PauliX))
	bond := mat.Scale(complex(-j, 0), mat.Kron(mat.M(mat.PauliZ), mat.M(mat.PauliZ)))
	return Uniform(site, bond)
}

// MPO returns the Hamiltonian on a chain of numSites sites as an MPO.
// Every site is a lower triangular matrix of operators with the channels {done, bond_0, ..., bond_r-1, pending},
// where the bond channels carry the operator Schmidt decomposition of a bond term.
// The first site is the pending row and the last site is the done column.
func (h Hamiltonians) MPO(numSites int) (*mpa.MPArray, error) {
	sites, bonds, err := h.lists(numSites)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	dims := make([]int, 0, len(sites))
	for _, s := range sites {
		d, _ := s.Dims()
		dims = append(dims, d)
	}

	// Decompose bond i into Σ_k lefts[i][k] ⊗ rights[i][k].
	lefts := make([][]*tensor.Dense, 0, len(bonds))
	rights := make([][]*tensor.Dense, 0, len(bonds))
	for i, b := range bonds {
		di, dj := dims[i], dims[i+1]
		a, err := matrixToMPO(b, [][]int{{di, di}, {dj, dj}})
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		// The bond between the two sites of a carries the decomposition.
		r := a.Ranks()[0]
		ls, rs := make([]*tensor.Dense, 0, r), make([]*tensor.Dense, 0, r)
		for k := range r {
			l, rt := tensor.Zeros(di, di), tensor.Zeros(dj, dj)
			for x := range di {
				for y := range di {
					l.SetAt([]int{x, y}, a.Sites[0].At(0, x, y, k))
				}
			}
			for x := range dj {
				for y := range dj {
					rt.SetAt([]int{x, y}, a.Sites[1].At(k, x, y, 0))
				}
			}
			ls, rs = append(ls, l), append(rs, rt)
		}
		lefts = append(lefts, ls)
		rights = append(rights, rs)
	}

	ws := make([]*tensor.Dense, 0, numSites)
	for i, d := range dims {
		var pending, finishing []*tensor.Dense
		if i < len(bonds) {
			pending = lefts[i]
		}
		if i > 0 {
			finishing = rights[i-1]
		}
		numLeft, numRight := 2+len(finishing), 2+len(pending)
		w := tensor.Zeros(numLeft, d, d, numRight)
		setOp := func(a, b int, op *tensor.Dense) {
			for ij, v := range op.All() {
				w.SetAt([]int{a, ij[0], ij[1], b}, v)
			}
		}
		setOp(0, 0, tensor.Zeros(1).Eye(d, 0))
		setOp(numLeft-1, numRight-1, tensor.Zeros(1).Eye(d, 0))
		setOp(numLeft-1, 0, mat.Tensor(sites[i]))
		for k, op := range pending {
			setOp(numLeft-1, 1+k, op)
		}
		for k, op := range finishing {
			setOp(1+k, 0, op)
		}

		// The first site is the pending row, and the last site is the done column.
		if i == 0 {
			w = slab(w, 0, numLeft-1)
		}
		if i == numSites-1 {
			w = slab(w, 3, 0)
		}
		ws = append(ws, w)
	}

	a, err := mpa.New(ws)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return a, nil
}

// slab returns the slice of t at index k of axis, keeping the axis with dimension 1.
func slab(t *tensor.Dense, axis, k int) *tensor.Dense {
	shape := slices.Clone(t.Shape())
	shape[axis] = 1
	s := tensor.Zeros(shape...)
	for ijk, v := range t.All() {
		if ijk[axis] != k {
			continue
		}
		idx := slices.Clone(ijk)
		idx[axis] = 0
		s.SetAt(idx, v)
	}
	return s
}
