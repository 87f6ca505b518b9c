package hmmlib

import (
	"github.com/pkg/errors"
)

// OracleParams estimates the parameters from a known sequence of states.
// The initial distribution puts all its mass on the first state.  A state
// that never occurs gets uniform transition and emission rows.
func OracleParams(obs, state []int, nstate, nsymbol int) (*Params, error) {

	if len(obs) != len(state) {
		return nil, errors.Wrapf(ErrDimMismatch, "%d observations and %d states", len(obs), len(state))
	}
	if len(obs) == 0 {
		return nil, errors.Wrap(ErrBadShape, "no data")
	}
	if err := checkObs(obs, nsymbol); err != nil {
		return nil, err
	}
	if err := checkObs(state, nstate); err != nil {
		return nil, errors.Wrap(err, "state sequence")
	}

	tr := make([]float64, nstate*nstate)
	em := make([]float64, nstate*nsymbol)
	for t := range state {
		em[state[t]*nsymbol+obs[t]]++
		if t > 0 {
			tr[state[t-1]*nstate+state[t]]++
		}
	}

	for st := 0; st < nstate; st++ {
		normalizeSum(tr[st*nstate:(st+1)*nstate], 1/float64(nstate))
		normalizeSum(em[st*nsymbol:(st+1)*nsymbol], 1/float64(nsymbol))
	}

	init := make([]float64, nstate)
	init[state[0]] = 1

	trans, err := NewTable(nstate, nstate, tr)
	if err != nil {
		return nil, err
	}
	emit, err := NewTable(nstate, nsymbol, em)
	if err != nil {
		return nil, err
	}

	return &Params{Trans: trans, Emit: emit, Init: init}, nil
}
