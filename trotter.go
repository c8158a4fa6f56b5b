package tmps

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/tmps/mat"
	"github.com/fumin/tmps/mpa"
)

// trotterSlice returns the propagator of one Trotter slice of duration tau.
func trotterSlice(sites, bonds []*mat.CDense, tau float64, order int) (*mpa.MPArray, error) {
	if len(sites) < 2 {
		return nil, errors.Wrap(ErrConstruction, fmt.Sprintf("%d sites", len(sites)))
	}
	switch order {
	case 2:
		u, err := trotterTwo(sites, bonds, tau)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return u, nil
	case 4:
		u, err := trotterFour(sites, bonds, tau)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return u, nil
	default:
		return nil, errors.Wrap(ErrConfig, fmt.Sprintf("trotter order %d is not implemented", order))
	}
}

// trotterTwo returns the second order symmetric slice odd @ even @ odd.
func trotterTwo(sites, bonds []*mat.CDense, tau float64) (*mpa.MPArray, error) {
	dims, uOdd, uEven := bondPropagators(sites, bonds, tau)
	odd, even, err := bondsToMPO(dims, uOdd, uEven)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return mpa.Dot(mpa.Dot(odd, even), odd), nil
}

// trotterFour returns the fourth order slice U1 @ U1 @ U3 @ U1 @ U1, where U1 and U3 are second order slices of the Suzuki durations.
// See M. Suzuki, Fractal decomposition of exponential operators, Phys. Lett. A 146, 319 (1990).
func trotterFour(sites, bonds []*mat.CDense, tau float64) (*mpa.MPArray, error) {
	s1, s3 := suzukiTaus(tau)
	u1, err := trotterTwo(sites, bonds, s1)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	u3, err := trotterTwo(sites, bonds, s3)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	u, err := compose([]*mpa.MPArray{u1, u1, u3, u1, u1}, 2)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return u, nil
}

// suzukiTaus returns the durations of the outer and the middle sub-slices of a fourth order slice.
func suzukiTaus(tau float64) (float64, float64) {
	s1 := tau / (4 - math.Cbrt(4))
	return s1, tau - 4*s1
}

// compose multiplies parts from left to right,
// compressing the product once parts[compressAt] has been multiplied in.
func compose(parts []*mpa.MPArray, compressAt int) (*mpa.MPArray, error) {
	u := parts[0]
	for i := 1; i < len(parts); i++ {
		u = mpa.Dot(u, parts[i])
		if i == compressAt {
			if _, err := u.Compress(tightCompression); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%d", i))
			}
		}
	}
	return u, nil
}
