package tmps

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fumin/tmps/mat"
	"github.com/fumin/tmps/mpa"
)

// bondPropagators exponentiates the terms of a chain for a slice of duration tau.
// uOdd[k] acts on sites 2k and 2k+1 and uEven[k] on sites 2k+1 and 2k+2.
// Since the odd bonds are applied twice per slice, their exponents carry half of tau,
// and the site terms are folded into them.
// For an odd number of sites, the last site is not covered by any odd bond,
// and its own exponential is appended to uOdd.
func bondPropagators(sites, bonds []*mat.CDense, tau float64) ([]int, []*mat.CDense, []*mat.CDense) {
	dims := make([]int, 0, len(sites))
	for _, h := range sites {
		d, _ := h.Dims()
		dims = append(dims, d)
	}

	uOdd := make([]*mat.CDense, 0, len(bonds)/2+2)
	for i := 0; i < len(bonds); i += 2 {
		left := mat.Kron(sites[i], mat.Identity(dims[i+1]))
		right := mat.Kron(mat.Identity(dims[i]), sites[i+1])
		twoSites := mat.Add(left, 1, right)
		uOdd = append(uOdd, expi(mat.Add(bonds[i], 1, twoSites), tau/2))
	}
	uEven := make([]*mat.CDense, 0, len(bonds)/2)
	for i := 1; i < len(bonds); i += 2 {
		uEven = append(uEven, expi(bonds[i], tau))
	}
	if len(uOdd) == len(uEven) {
		uOdd = append(uOdd, expi(sites[len(sites)-1], tau/2))
	}
	return dims, uOdd, uEven
}

// bondsToMPO chains the bond propagators into two operators on the full chain, one for the odd bonds and one for the even bonds.
// The even operator is padded with identities on the sites its bonds do not cover.
func bondsToMPO(dims []int, uOdd, uEven []*mat.CDense) (*mpa.MPArray, *mpa.MPArray, error) {
	var last *mat.CDense
	if len(dims)%2 == 1 {
		last = uOdd[len(uOdd)-1]
		uOdd = uOdd[:len(uOdd)-1]
	}

	odd := make([]*mpa.MPArray, 0, len(uOdd)+1)
	for k, u := range uOdd {
		di, dj := dims[2*k], dims[2*k+1]
		a, err := matrixToMPO(u, [][]int{{di, di}, {dj, dj}})
		if err != nil {
			return nil, nil, errors.Wrap(err, fmt.Sprintf("odd %d", k))
		}
		odd = append(odd, a)
	}

	even := make([]*mpa.MPArray, 0, len(uEven)+2)
	even = append(even, mpa.Eye(dims[0]))
	for k, u := range uEven {
		di, dj := dims[2*k+1], dims[2*k+2]
		a, err := matrixToMPO(u, [][]int{{di, di}, {dj, dj}})
		if err != nil {
			return nil, nil, errors.Wrap(err, fmt.Sprintf("even %d", k))
		}
		even = append(even, a)
	}

	switch {
	case len(uOdd) > len(uEven):
		even = append(even, mpa.Eye(dims[len(dims)-1]))
	case len(uOdd) == len(uEven):
		d := dims[len(dims)-1]
		a, err := matrixToMPO(last, [][]int{{d, d}})
		if err != nil {
			return nil, nil, errors.Wrap(err, "last")
		}
		odd = append(odd, a)
	}
	return mpa.Chain(odd...), mpa.Chain(even...), nil
}

// matrixToMPO converts a dense operator into an MPO.
// shape lists the leg dimensions of every site, for example {{3, 3}, {2, 2}} for an operator on a 3 and a 2 dimensional site.
// All sites must have the same number of legs.
func matrixToMPO(m *mat.CDense, shape [][]int) (*mpa.MPArray, error) {
	if len(shape) == 0 {
		return nil, errors.Wrap(ErrConstruction, "empty shape")
	}
	numLegs := len(shape[0])
	for _, s := range shape {
		if len(s) != numLegs {
			return nil, errors.Wrap(ErrConstruction, fmt.Sprintf("not all sites have the same number of legs %#v", shape))
		}
	}

	// The global shape lists the first leg of every site, then the second leg of every site, and so on.
	globalShape := make([]int, 0, numLegs*len(shape))
	size := 1
	for i := range numLegs {
		for _, s := range shape {
			globalShape = append(globalShape, s[i])
			size *= s[i]
		}
	}
	rows, cols := m.Dims()
	if rows*cols != size {
		return nil, errors.Wrap(ErrConstruction, fmt.Sprintf("%d %d %#v", rows, cols, shape))
	}

	a, err := mpa.FromArrayGlobal(mat.Tensor(m).Reshape(globalShape...), numLegs)
	if err != nil {
		return nil, errors.Wrap(ErrConstruction, err.Error())
	}
	if _, err := a.Compress(tightCompression); err != nil {
		return nil, errors.Wrap(ErrConstruction, err.Error())
	}
	return a, nil
}

// expi returns exp(-i*t*h).
func expi(h *mat.CDense, t float64) *mat.CDense {
	return mat.Expm(mat.Scale(complex(0, -t), h))
}
