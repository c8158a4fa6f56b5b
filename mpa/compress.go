package mpa

import (
	"fmt"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// cutoff is the singular value, relative to the largest one at a bond, below which values are treated as numerical zeros.
// Site tensors are single precision, so values below a few machine epsilons are rounding noise.
const cutoff = 1e-6

// CompressOptions are options for compressing an MPArray.
type CompressOptions struct {
	relErr float64
	rank   int
}

// NewCompressOptions returns the default compression options, which only remove numerically zero singular values.
func NewCompressOptions() CompressOptions {
	return CompressOptions{}
}

// RelErr sets the relative error allowed at every bond,
// which is the sum of the discarded singular values divided by the sum of all singular values.
func (opt CompressOptions) RelErr(relErr float64) CompressOptions {
	opt.relErr = relErr
	return opt
}

// Rank sets the maximum bond dimension. Zero means unbounded.
func (opt CompressOptions) Rank(rank int) CompressOptions {
	opt.rank = rank
	return opt
}

func (opt CompressOptions) String() string {
	return fmt.Sprintf("relerr=%g rank=%d", opt.relErr, opt.rank)
}

// keep returns the number of singular values to keep.
func (opt CompressOptions) keep(s []float64) int {
	k := rankOf(s)
	var total float64
	for _, v := range s[:k] {
		total += v
	}

	var discarded float64
	for k > 1 && discarded+s[k-1] <= opt.relErr*total {
		discarded += s[k-1]
		k--
	}
	if opt.rank > 0 {
		k = min(k, opt.rank)
	}
	return k
}

// Compress reduces the bond dimensions of a in place.
// It returns the fidelity Re<compressed|a> / <a|a> of the compressed array with respect to the original.
// On error a is left partially compressed.
// See Section 4.5.1 Compressing a matrix product state by SVD, Ulrich Schollwock.
func (a *MPArray) Compress(opt CompressOptions) (float64, error) {
	orig := a.Copy()

	// Left normalize, so that the singular values at every bond of the right sweep are the Schmidt values.
	leftNormalizeAll(a.Sites)
	for i := len(a.Sites) - 1; i >= 1; i-- {
		if err := truncateRight(a.Sites, i, opt); err != nil {
			return -1, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}

	n2 := real(InnerProduct(orig, orig))
	if n2 == 0 {
		return 1, nil
	}
	// Rounding may push the overlap of a lossless compression above 1.
	return min(real(InnerProduct(a, orig))/n2, 1), nil
}

func leftNormalizeAll(sites []*tensor.Dense) {
	for i := range len(sites) - 1 {
		leftNormalize(sites, i)
	}
}

// leftNormalize normalizes a site from the left, and multiplies the remainder into the next site.
// See Section 4.4.1 Generation of a left-canonical MPS, Ulrich Schollwock.
func leftNormalize(sites []*tensor.Dense, i int) {
	shape := slices.Clone(sites[i].Shape())
	legs := shape[1 : len(shape)-1]

	// Decompose sites[i] = q @ r.
	mi := resetCopy(tensor.Zeros(1), sites[i]).Reshape(-1, shape[len(shape)-1])
	q, qrbufs := tensor.Zeros(1), [2]*tensor.Dense{tensor.Zeros(1), tensor.Zeros(1)}
	r := tensor.QR(q, mi, qrbufs)

	// sites[i+1] = r @ sites[i+1].
	sites[i+1] = contract(r, sites[i+1], [][2]int{{1, leftAxis}})

	// sites[i] = q.
	siteShape := append(append([]int{shape[leftAxis]}, legs...), q.Shape()[1])
	sites[i] = resetCopy(tensor.Zeros(1), q).Reshape(siteShape...)
}

// truncateRight truncates the bond on the left of a site, keeping the site right normalized.
// See Section 4.4.2 Generation of a right-canonical MPS, Ulrich Schollwock.
func truncateRight(sites []*tensor.Dense, i int, opt CompressOptions) error {
	shape := slices.Clone(sites[i].Shape())
	legs := shape[1 : len(shape)-1]

	// Decompose sites[i] = u @ s @ vh.
	u, s, vh, err := svd(sites[i].Reshape(shape[leftAxis], -1), opt.keep)
	if err != nil {
		return errors.Wrap(err, "")
	}

	// sites[i-1] = sites[i-1] @ u @ s.
	prev := sites[i-1]
	sites[i-1] = contract(prev, scaleCols(u, s), [][2]int{{len(prev.Shape()) - 1, 0}})

	// sites[i] = vh.
	siteShape := append(append([]int{len(s)}, legs...), shape[len(shape)-1])
	sites[i] = vh.Reshape(siteShape...)
	return nil
}

// svd decomposes the matrix m = u @ diag(s) @ vh, keeping the leading singular values whose number is chosen by keep.
// m is not modified.
func svd(m *tensor.Dense, keep func([]float64) int) (*tensor.Dense, []float64, *tensor.Dense, error) {
	shape := m.Shape()
	rows, cols := shape[0], shape[1]

	u, v := tensor.Zeros(1), tensor.Zeros(1)
	bufs := [3]*tensor.Dense{tensor.Zeros(1), tensor.Zeros(1), tensor.Zeros(1)}
	sm, err := tensor.SVD(u, v, resetCopy(tensor.Zeros(1), m), bufs)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, fmt.Sprintf("%d %d", rows, cols))
	}

	s := make([]float64, min(rows, cols))
	for i := range s {
		s[i] = float64(real(sm.At(i, i)))
	}
	k := keep(s)

	u = resetCopy(tensor.Zeros(1), u.Slice([][2]int{{0, rows}, {0, k}}))
	vh := resetCopy(tensor.Zeros(1), v.Slice([][2]int{{0, cols}, {0, k}}).H())
	return u, s[:k], vh, nil
}

// rankOf returns the number of numerically nonzero values in the descending singular values s.
func rankOf(s []float64) int {
	k := 0
	for _, v := range s {
		if v > cutoff*s[0] {
			k++
		}
	}
	return max(k, 1)
}

func scaleRows(m *tensor.Dense, s []float64) *tensor.Dense {
	cols := m.Shape()[1]
	for i, v := range s {
		m.Slice([][2]int{{i, i + 1}, {0, cols}}).Mul(complex(float32(v), 0))
	}
	return m
}

func scaleCols(m *tensor.Dense, s []float64) *tensor.Dense {
	rows := m.Shape()[0]
	for j, v := range s {
		m.Slice([][2]int{{0, rows}, {j, j + 1}}).Mul(complex(float32(v), 0))
	}
	return m
}
