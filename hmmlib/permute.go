package hmmlib

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ParamKind tells PermuteStates how the states index a parameter matrix.
type ParamKind uint8

// TransParam is indexed by state in both rows and columns, EmitParam only
// in rows.
const (
	TransParam ParamKind = iota
	EmitParam
)

// PermuteStates relabels the states of a parameter matrix.  Row i (and for
// TransParam also column i) of the result is row order[i] of m.  If order
// is nil it is computed from m, which must then be a transition matrix, by
// sorting the states by decreasing self-transition probability.  The order
// used is returned so that it can be applied to the other parameters of
// the same model.
func PermuteStates(m *Table, kind ParamKind, order []int) (*Table, []int, error) {

	r, c := m.Dims()

	if order == nil {
		if kind != TransParam {
			return nil, nil, errors.Wrap(ErrBadConfig, "an order is required to permute an emission matrix")
		}
		var err error
		if order, err = SelfTransitionOrder(m); err != nil {
			return nil, nil, err
		}
	}

	if err := checkOrder(order, r); err != nil {
		return nil, nil, err
	}

	switch kind {
	case TransParam:
		if r != c {
			return nil, nil, errors.Wrapf(ErrDimMismatch, "transition matrix is %dx%d", r, c)
		}
		x := make([]float64, r*r)
		for i, oi := range order {
			for j, oj := range order {
				x[i*r+j] = m.At(oi, oj)
			}
		}
		return &Table{m: mat.NewDense(r, r, x)}, order, nil
	case EmitParam:
		x := mat.NewDense(r, c, nil)
		for i, oi := range order {
			x.SetRow(i, m.row(oi))
		}
		return &Table{m: x}, order, nil
	default:
		return nil, nil, errors.Wrapf(ErrBadConfig, "unknown parameter kind %d", kind)
	}
}

// SelfTransitionOrder returns the states sorted by decreasing probability
// of remaining in the same state.  Ties keep the original order.
func SelfTransitionOrder(trans *Table) ([]int, error) {

	r, c := trans.Dims()
	if r != c {
		return nil, errors.Wrapf(ErrDimMismatch, "transition matrix is %dx%d", r, c)
	}

	order := make([]int, r)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return trans.At(order[i], order[i]) > trans.At(order[j], order[j])
	})

	return order, nil
}

// InvertOrder returns the permutation that undoes order.
func InvertOrder(order []int) []int {

	inv := make([]int, len(order))
	for i, o := range order {
		inv[o] = i
	}

	return inv
}

// PermuteVector returns v reordered so that position i holds v[order[i]].
func PermuteVector(v []float64, order []int) []float64 {

	if v == nil {
		return nil
	}

	x := make([]float64, len(order))
	for i, o := range order {
		x[i] = v[o]
	}

	return x
}

// Permute relabels all the parameters consistently.  If order is nil the
// self-transition order of the transition matrix is used.  The order used
// is returned.
func (p *Params) Permute(order []int) (*Params, []int, error) {

	trans, order, err := PermuteStates(p.Trans, TransParam, order)
	if err != nil {
		return nil, nil, err
	}

	emit, _, err := PermuteStates(p.Emit, EmitParam, order)
	if err != nil {
		return nil, nil, err
	}

	return &Params{Trans: trans, Emit: emit, Init: PermuteVector(p.Init, order)}, order, nil
}

// PermutePath relabels a state sequence so that it refers to states
// permuted by order.
func PermutePath(z []int, order []int) []int {

	inv := InvertOrder(order)
	x := make([]int, len(z))
	for t, st := range z {
		x[t] = inv[st]
	}

	return x
}

// checkOrder confirms that order is a permutation of 0..n-1.
func checkOrder(order []int, n int) error {

	if len(order) != n {
		return errors.Wrapf(ErrDimMismatch, "order has length %d, expected %d", len(order), n)
	}

	seen := make([]bool, n)
	for _, o := range order {
		if o < 0 || o >= n || seen[o] {
			return errors.Wrapf(ErrBadConfig, "%v is not a permutation", order)
		}
		seen[o] = true
	}

	return nil
}
