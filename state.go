package tmps

import (
	"fmt"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/tmps/mat"
	"github.com/fumin/tmps/mpa"
)

// Method is the representation of a density matrix as a matrix product array.
type Method int

const (
	// MPO represents a density matrix as a matrix product operator with unit trace.
	MPO Method = iota
	// PMPS represents a density matrix by its purification, a matrix product state with legs {physical, ancilla} and unit norm.
	PMPS
)

func (m Method) String() string {
	switch m {
	case MPO:
		return "mpo"
	case PMPS:
		return "pmps"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses "mpo" or "pmps".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "mpo":
		return MPO, nil
	case "pmps":
		return PMPS, nil
	default:
		return -1, errors.Wrap(ErrConfig, fmt.Sprintf("unknown method %q", s))
	}
}

// normalize divides a state by its trace or norm, in place.
func normalize(state *mpa.MPArray, method Method) {
	state.Scale(1 / weight(state, method))
}

// weight returns the trace or the norm of a state, by which normalize divides.
func weight(state *mpa.MPArray, method Method) complex128 {
	switch method {
	case MPO:
		return mpa.Trace(state)
	case PMPS:
		return complex(mpa.Norm(state), 0)
	default:
		panic(fmt.Sprintf("%#v", method))
	}
}

// compress removes numerically negligible ranks from a state and normalizes it, in place.
func compress(state *mpa.MPArray, method Method) error {
	if _, err := state.Compress(tightCompression); err != nil {
		return errors.Wrap(err, "")
	}
	normalize(state, method)
	return nil
}

// ProductMPO returns the density matrix rhos[0] ⊗ rhos[1] ⊗ ... in the MPO representation.
func ProductMPO(rhos []*mat.CDense) (*mpa.MPArray, error) {
	sites := make([]*tensor.Dense, 0, len(rhos))
	for i, rho := range rhos {
		if !mat.IsSquare(rho) {
			return nil, errors.Wrap(ErrConfig, fmt.Sprintf("density matrix %d is not square", i))
		}
		d, _ := rho.Dims()
		sites = append(sites, mat.Tensor(rho).Reshape(1, d, d, 1))
	}
	state, err := mpa.New(sites)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return state, nil
}

// ProductPMPS returns the pure state psis[0] ⊗ psis[1] ⊗ ... in the PMPS representation, with one dimensional ancillas.
func ProductPMPS(psis [][]complex128) (*mpa.MPArray, error) {
	sites := make([]*tensor.Dense, 0, len(psis))
	for i, psi := range psis {
		if len(psi) == 0 {
			return nil, errors.Wrap(ErrConfig, fmt.Sprintf("empty state %d", i))
		}
		psi64 := make([]complex64, 0, len(psi))
		for _, v := range psi {
			psi64 = append(psi64, complex64(v))
		}
		sites = append(sites, tensor.T1(psi64).Reshape(1, len(psi), 1, 1))
	}
	state, err := mpa.New(sites)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return state, nil
}

// DensityMPO returns the density matrix of a purification, which is the purification contracted with its adjoint over the ancillas.
func DensityMPO(pmps *mpa.MPArray) *mpa.MPArray {
	return mpa.Dot(pmps, pmps.Copy().Adjoint())
}

// Expectation returns tr(rho O) / tr(rho), where O acts as op on site.
func Expectation(state *mpa.MPArray, method Method, op *mat.CDense, site int) (complex128, error) {
	rho := state
	if method == PMPS {
		rho = DensityMPO(state)
	}

	dims := make([]int, 0, rho.Len())
	for _, legs := range rho.Legs() {
		dims = append(dims, legs[0])
	}
	if site < 0 || site >= len(dims) {
		return 0, errors.Wrap(ErrConfig, fmt.Sprintf("site %d of %d", site, len(dims)))
	}
	if d, _ := op.Dims(); !mat.IsSquare(op) || d != dims[site] {
		return 0, errors.Wrap(ErrConfig, fmt.Sprintf("operator dimension %d, site dimension %d", d, dims[site]))
	}

	o := mpa.LocalOperator(dims, site, mat.Tensor(op))
	return mpa.Trace(mpa.Dot(o, rho)) / mpa.Trace(rho), nil
}

// Magnetization returns the expectation of op averaged over all sites.
func Magnetization(state *mpa.MPArray, method Method, op *mat.CDense) (complex128, error) {
	var m complex128
	for i := range state.Len() {
		v, err := Expectation(state, method, op, i)
		if err != nil {
			return 0, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		m += v
	}
	return m / complex(float64(state.Len()), 0), nil
}

// Energy returns tr(rho H) / tr(rho).
func Energy(state *mpa.MPArray, method Method, h Hamiltonians) (complex128, error) {
	rho := state
	if method == PMPS {
		rho = DensityMPO(state)
	}
	hm, err := h.MPO(rho.Len())
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	for i, legs := range rho.Legs() {
		if hl := hm.Legs()[i]; !slices.Equal(hl, legs) {
			return 0, errors.Wrap(ErrConfig, fmt.Sprintf("site %d has legs %v, hamiltonian %v", i, legs, hl))
		}
	}
	return mpa.Trace(mpa.Dot(hm, rho)) / mpa.Trace(rho), nil
}
