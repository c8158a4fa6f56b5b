// Package tmps computes the time evolution of one dimensional density matrices with the time evolving matrix product state algorithm.
// Nearest neighbor Hamiltonians are split into odd and even bonds by second or fourth order Trotter-Suzuki decompositions.
//
// References:
//   - Efficient simulation of one-dimensional quantum many-body systems, G. Vidal, Phys. Rev. Lett. 93, 040502 (2004)
//   - The density-matrix renormalization group in the age of matrix product states, Section 7, Ulrich Schollwock
package tmps

import (
	"fmt"
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/tmps/mpa"
)

var (
	// ErrConfig is the cause of errors due to invalid inputs.
	ErrConfig = errors.New("configuration error")
	// ErrConstruction is the cause of errors in building operators.
	ErrConstruction = errors.New("construction error")
)

// tightCompression removes numerically negligible ranks without losing information.
var tightCompression = mpa.NewCompressOptions().RelErr(1e-20)

// EvolveOptions are options for Evolve.
type EvolveOptions struct {
	trotterOrder int
	progress     func(step, total int)
}

// NewEvolveOptions returns the default options.
func NewEvolveOptions() EvolveOptions {
	opt := EvolveOptions{}
	opt.trotterOrder = 2
	return opt
}

// TrotterOrder sets the order of the Trotter-Suzuki decomposition, which is either 2 or 4.
func (opt EvolveOptions) TrotterOrder(order int) EvolveOptions {
	opt.trotterOrder = order
	return opt
}

// Progress sets a function that is called after every applied Trotter slice.
func (opt EvolveOptions) Progress(f func(step, total int)) EvolveOptions {
	opt.progress = f
	return opt
}

// Evolution is the result of Evolve, with one entry per requested time step in increasing order of time.
type Evolution struct {
	// Times are the requested times rounded to multiples of the slice duration.
	Times  []float64
	States []*mpa.MPArray
	// Fidelities are the products of the fidelities of all compressions so far.
	Fidelities []float64
	// TrotterErrors are the accumulated Trotter errors, estimated as tau^3 per slice.
	TrotterErrors []float64
}

// Len returns the number of entries.
func (ev Evolution) Len() int { return len(ev.Times) }

func (ev *Evolution) record(t float64, state *mpa.MPArray, fidelity, trotterError float64) {
	ev.Times = append(ev.Times, t)
	ev.States = append(ev.States, state.Copy())
	ev.Fidelities = append(ev.Fidelities, fidelity)
	ev.TrotterErrors = append(ev.TrotterErrors, trotterError)
}

// Evolve evolves state under the Hamiltonian h, and returns the states at times.
// The largest time is divided into numTrotterSlices slices, and the other times are rounded to multiples of a slice.
// compr configures the compression of the state after every slice.
// The state is not modified.
func Evolve(state *mpa.MPArray, h Hamiltonians, times []float64, numTrotterSlices int, method Method, compr mpa.CompressOptions, options ...EvolveOptions) (Evolution, error) {
	opt := NewEvolveOptions()
	if len(options) > 0 {
		opt = options[0]
	}

	if state.Len() < 3 {
		return Evolution{}, errors.Wrap(ErrConfig, fmt.Sprintf("state has too few sites %d", state.Len()))
	}
	if method != MPO && method != PMPS {
		return Evolution{}, errors.Wrap(ErrConfig, fmt.Sprintf("%v", method))
	}
	if state.NumLegs() != 2 {
		return Evolution{}, errors.Wrap(ErrConfig, fmt.Sprintf("%v state has %d legs per site", method, state.NumLegs()))
	}
	if opt.trotterOrder != 2 && opt.trotterOrder != 4 {
		return Evolution{}, errors.Wrap(ErrConfig, fmt.Sprintf("trotter order %d is not implemented", opt.trotterOrder))
	}
	tau, steps, err := timesToSteps(times, numTrotterSlices)
	if err != nil {
		return Evolution{}, errors.Wrap(err, "")
	}
	sites, bonds, err := h.lists(state.Len())
	if err != nil {
		return Evolution{}, errors.Wrap(err, "")
	}
	for i, legs := range state.Legs() {
		if d, _ := sites[i].Dims(); d != legs[0] {
			return Evolution{}, errors.Wrap(ErrConfig, fmt.Sprintf("site %d has dimension %d, hamiltonian %d", i, legs[0], d))
		}
	}

	state = state.Copy()
	if weight(state, method) == 0 {
		return Evolution{}, errors.Wrap(ErrConfig, fmt.Sprintf("%v state is zero", method))
	}
	if err := compress(state, method); err != nil {
		return Evolution{}, errors.Wrap(err, "")
	}

	u, err := trotterSlice(sites, bonds, tau, opt.trotterOrder)
	if err != nil {
		return Evolution{}, errors.Wrap(err, "")
	}
	if _, err := u.Compress(tightCompression); err != nil {
		return Evolution{}, errors.Wrap(err, "")
	}

	ev, err := timeEvolution(state, u, steps, tau, method, compr, opt.progress)
	if err != nil {
		return Evolution{}, errors.Wrap(err, "")
	}
	return ev, nil
}

// timesToSteps returns the slice duration tau, which is the largest time divided by numTrotterSlices,
// and the sorted times as numbers of slices.
func timesToSteps(times []float64, numTrotterSlices int) (float64, []int, error) {
	if numTrotterSlices <= 0 {
		return -1, nil, errors.Wrap(ErrConfig, fmt.Sprintf("number of trotter slices %d", numTrotterSlices))
	}
	sorted := slices.Sorted(slices.Values(times))
	for _, t := range sorted {
		if !(t >= 0) || math.IsInf(t, 0) {
			return -1, nil, errors.Wrap(ErrConfig, fmt.Sprintf("invalid time %f", t))
		}
	}
	if len(sorted) == 0 || sorted[len(sorted)-1] == 0 {
		return -1, nil, errors.Wrap(ErrConfig, fmt.Sprintf("no time evolution requested %#v", times))
	}

	tau := sorted[len(sorted)-1] / float64(numTrotterSlices)
	steps := make([]int, 0, len(sorted))
	for _, t := range sorted {
		steps = append(steps, int(math.Round(t/tau)))
	}
	return tau, steps, nil
}

// timeEvolution applies u to state up to the largest step, recording the states at steps.
func timeEvolution(state, u *mpa.MPArray, steps []int, tau float64, method Method, compr mpa.CompressOptions, progress func(int, int)) (Evolution, error) {
	var ev Evolution
	if steps[0] == 0 {
		ev.record(0, state, 1, 0)
	}

	var uDagger *mpa.MPArray
	if method == MPO {
		uDagger = u.Copy().Adjoint()
	}

	requested := make(map[int]bool, len(steps))
	for _, s := range steps {
		requested[s] = true
	}
	total := steps[len(steps)-1]
	fidelity, trotterError := 1.0, 0.0
	for i := 1; i <= total; i++ {
		var f float64
		var err error
		state, f, err = step(state, u, uDagger, method, compr)
		if err != nil {
			return Evolution{}, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		fidelity *= f
		trotterError += tau * tau * tau

		if requested[i] {
			ev.record(tau*float64(i), state, fidelity, trotterError)
		}
		if progress != nil {
			progress(i, total)
		}
	}
	return ev, nil
}

// step applies one Trotter slice to state, and returns the new state with the fidelity of its compression.
// uDagger is only used by the MPO method.
func step(state, u, uDagger *mpa.MPArray, method Method, compr mpa.CompressOptions) (*mpa.MPArray, float64, error) {
	state = mpa.Dot(u, state)
	if method == MPO {
		// Shrink the ranks of u @ rho before multiplying the second factor.
		if _, err := state.Compress(tightCompression); err != nil {
			return nil, -1, errors.Wrap(err, "")
		}
		state = mpa.Dot(state, uDagger)
	}
	normalize(state, method)
	fidelity, err := state.Compress(compr)
	if err != nil {
		return nil, -1, errors.Wrap(err, "")
	}
	return state, fidelity, nil
}
