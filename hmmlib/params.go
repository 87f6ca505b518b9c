package hmmlib

import (
	"github.com/pkg/errors"
)

// Params holds the structural parameters of a categorical HMM.
type Params struct {

	// The transition probability matrix, NState x NState.  Row i is the
	// distribution of the next state given current state i.
	Trans *Table

	// The emission probability matrix, NState x NSymbol.  Row k is the
	// distribution of the observed symbol given state k.
	Emit *Table

	// The initial state distribution.  If nil, the initial state is
	// uniformly distributed.
	Init []float64
}

// NewParams returns validated parameters built from row slices.  init
// may be nil.
func NewParams(trans, emit [][]float64, init []float64) (*Params, error) {

	tr, err := NewTableFromRows(trans)
	if err != nil {
		return nil, errors.Wrap(err, "transition matrix")
	}

	em, err := NewTableFromRows(emit)
	if err != nil {
		return nil, errors.Wrap(err, "emission matrix")
	}

	var ini []float64
	if init != nil {
		ini = make([]float64, len(init))
		copy(ini, init)
	}

	p := &Params{Trans: tr, Emit: em, Init: ini}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// NState returns the number of latent states.
func (p *Params) NState() int {
	r, _ := p.Trans.Dims()
	return r
}

// NSymbol returns the number of observed symbols.
func (p *Params) NSymbol() int {
	_, c := p.Emit.Dims()
	return c
}

// Validate checks that the shapes of the parameters agree.  The tables
// themselves are stochastic by construction.
func (p *Params) Validate() error {

	if p == nil || p.Trans == nil || p.Emit == nil {
		return errors.Wrap(ErrBadShape, "missing parameters")
	}

	r, c := p.Trans.Dims()
	if r != c {
		return errors.Wrapf(ErrDimMismatch, "transition matrix is %dx%d", r, c)
	}

	if re, _ := p.Emit.Dims(); re != r {
		return errors.Wrapf(ErrDimMismatch, "emission matrix has %d rows, expected %d", re, r)
	}

	if p.Init != nil {
		if err := ValidateVector(p.Init, r); err != nil {
			return errors.Wrap(err, "initial distribution")
		}
	}

	return nil
}

// InitOrUniform returns a copy of the initial state distribution, or the
// uniform distribution if none is set.
func (p *Params) InitOrUniform() []float64 {

	k := p.NState()
	v := make([]float64, k)
	if p.Init == nil {
		for i := range v {
			v[i] = 1 / float64(k)
		}
		return v
	}

	copy(v, p.Init)
	return v
}

// Clone returns a deep copy of the parameters.
func (p *Params) Clone() *Params {

	q := &Params{
		Trans: p.Trans.Clone(),
		Emit:  p.Emit.Clone(),
	}

	if p.Init != nil {
		q.Init = make([]float64, len(p.Init))
		copy(q.Init, p.Init)
	}

	return q
}

// NumFree returns the number of free parameters.  The initial distribution
// is counted only when estimated.
func (p *Params) NumFree(fitInit bool) int {

	k, c := p.NState(), p.NSymbol()
	df := k*(k-1) + k*(c-1)
	if fitInit {
		df += k - 1
	}

	return df
}
