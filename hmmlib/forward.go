package hmmlib

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Posterior holds the expected sufficient statistics of an observation
// sequence (or a collection of sequences) under fixed parameters.
type Posterior struct {

	// The log-likelihood of the data
	LLF float64

	// Gamma[t][k] is the posterior probability of state k at time t.  Only
	// set by Posteriors, which handles a single sequence.
	Gamma [][]float64

	// Expected number of transitions from state j to state k, summed over
	// time, stored at position j*NState+k.
	TransCount []float64

	// Expected number of times state k emits symbol c, stored at position
	// k*NSymbol+c.
	EmitCount []float64

	// Posterior distribution of the initial state, summed over sequences.
	InitCount []float64
}

// ForwardPass calculates the scaled forward probabilities of y.  Row t of
// alpha is the distribution of the state at time t given y[0..t], scale[t]
// is P(y[t] | y[0..t-1]), and the log-likelihood is the sum of the log
// scale factors.  If init is nil the initial state is uniform.  An empty
// sequence has log-likelihood 0.
func ForwardPass(y []int, trans, emit *Table, init []float64) (float64, [][]float64, []float64, error) {

	p := &Params{Trans: trans, Emit: emit, Init: init}
	if err := p.Validate(); err != nil {
		return 0, nil, nil, err
	}
	if err := checkObs(y, p.NSymbol()); err != nil {
		return 0, nil, nil, err
	}

	k := p.NState()
	alpha := makeFloatArray(len(y), k)
	scale := make([]float64, len(y))
	emitCol := emitColumns(p.Emit, nil)

	llf := forward(y, p.Trans, emitCol, p.InitOrUniform(), alpha, scale)

	return llf, alpha, scale, nil
}

// Loglike returns the log-likelihood of y under the parameters p.
func Loglike(y []int, p *Params) (float64, error) {

	llf, _, _, err := ForwardPass(y, p.Trans, p.Emit, p.Init)
	return llf, err
}

// BackwardPass calculates the backward probabilities of y, scaled with the
// factors returned by ForwardPass.
func BackwardPass(y []int, trans, emit *Table, scale []float64) ([][]float64, error) {

	p := &Params{Trans: trans, Emit: emit}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkObs(y, p.NSymbol()); err != nil {
		return nil, err
	}
	if len(scale) != len(y) {
		return nil, errors.Wrapf(ErrDimMismatch, "%d scale factors for %d observations", len(scale), len(y))
	}

	k := p.NState()
	beta := makeFloatArray(len(y), k)
	backward(y, p.Trans, emitColumns(p.Emit, nil), scale, beta, make([]float64, k))

	return beta, nil
}

// Posteriors runs the forward-backward recursions on y and returns the
// log-likelihood, the state posteriors and the expected counts needed to
// re-estimate the parameters.
func Posteriors(y []int, p *Params) (*Posterior, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkObs(y, p.NSymbol()); err != nil {
		return nil, err
	}

	ws := newWorkspace(len(y), p.NState(), p.NSymbol())
	ws.setParams(p)
	post := newPosterior(p.NState(), p.NSymbol())
	post.Gamma = makeFloatArray(len(y), p.NState())
	ws.accumulate(y, post, post.Gamma)

	return post, nil
}

func newPosterior(k, c int) *Posterior {
	return &Posterior{
		TransCount: make([]float64, k*k),
		EmitCount:  make([]float64, k*c),
		InitCount:  make([]float64, k),
	}
}

func (post *Posterior) reset() {
	post.LLF = 0
	zero(post.TransCount)
	zero(post.EmitCount)
	zero(post.InitCount)
}

// checkObs returns an error if any symbol is outside [0, nsymbol).
func checkObs(y []int, nsymbol int) error {

	for t, v := range y {
		if v < 0 || v >= nsymbol {
			return errors.Wrapf(ErrSymbolRange, "y[%d]=%d with %d symbols", t, v, nsymbol)
		}
	}

	return nil
}

// emitColumns returns the emission matrix by column, so that ecol[c][k] is
// the probability that state k emits symbol c.  The storage in ecol is
// reused if it has the right shape.
func emitColumns(emit *Table, ecol [][]float64) [][]float64 {

	k, c := emit.Dims()
	if len(ecol) != c {
		ecol = makeFloatArray(c, k)
	}

	for st := 0; st < k; st++ {
		row := emit.row(st)
		for j := 0; j < c; j++ {
			ecol[j][st] = row[j]
		}
	}

	return ecol
}

// forward fills alpha and scale for the sequence y and returns the
// log-likelihood.  A time point at which the data have probability zero
// leaves alpha zero from then on, and the log-likelihood is -Inf.
func forward(y []int, trans *Table, ecol [][]float64, init []float64, alpha [][]float64, scale []float64) float64 {

	var llf float64
	for t := range y {

		at := alpha[t]
		if t == 0 {
			copy(at, init)
		} else {
			zero(at)
			for j, a := range alpha[t-1] {
				if a != 0 {
					floats.AddScaled(at, a, trans.row(j))
				}
			}
		}

		// Condition on the observation at time t
		floats.Mul(at, ecol[y[t]])
		scale[t] = normalizeSum(at, 0)
		llf += math.Log(scale[t])
	}

	return llf
}

// backward fills beta using the scale factors from forward.  The workspace
// w must have length NState.
func backward(y []int, trans *Table, ecol [][]float64, scale []float64, beta [][]float64, w []float64) {

	n := len(y)
	if n == 0 {
		return
	}

	for st := range beta[n-1] {
		beta[n-1][st] = 1
	}

	for t := n - 2; t >= 0; t-- {
		floats.MulTo(w, ecol[y[t+1]], beta[t+1])
		c := scale[t+1]
		for st := range beta[t] {
			if c > 0 {
				beta[t][st] = floats.Dot(trans.row(st), w) / c
			} else {
				beta[t][st] = 0
			}
		}
	}
}

// workspace holds the arrays used for one E-step.  A workspace is not safe
// for concurrent use.
type workspace struct {
	nstate  int
	nsymbol int
	trans   *Table
	init    []float64
	ecol    [][]float64
	alpha   [][]float64
	beta    [][]float64
	scale   []float64
	gamma   []float64
	gtemp   []float64
	xi      []float64
	w       []float64

	// Annealing temperature applied to the state posteriors, 1 for
	// ordinary EM
	temp float64
}

func newWorkspace(ntime, nstate, nsymbol int) *workspace {
	return &workspace{
		nstate:  nstate,
		nsymbol: nsymbol,
		alpha:   makeFloatArray(ntime, nstate),
		beta:    makeFloatArray(ntime, nstate),
		scale:   make([]float64, ntime),
		gamma:   make([]float64, nstate),
		gtemp:   make([]float64, nstate),
		temp:    1,
		xi:      make([]float64, nstate*nstate),
		w:       make([]float64, nstate),
	}
}

func (ws *workspace) setParams(p *Params) {
	ws.trans = p.Trans
	ws.init = p.InitOrUniform()
	ws.ecol = emitColumns(p.Emit, ws.ecol)
}

// accumulate runs the forward-backward recursions on y and adds the log-
// likelihood and expected counts to post.  If gamma is not nil the state
// posteriors are also written there.
func (ws *workspace) accumulate(y []int, post *Posterior, gamma [][]float64) {

	n := len(y)
	if n == 0 {
		return
	}

	k := ws.nstate
	alpha, beta, scale := ws.alpha[0:n], ws.beta[0:n], ws.scale[0:n]

	post.LLF += forward(y, ws.trans, ws.ecol, ws.init, alpha, scale)
	backward(y, ws.trans, ws.ecol, scale, beta, ws.w)

	for t := 0; t < n; t++ {

		// State posterior, zero if the data are impossible
		g := ws.gamma
		floats.MulTo(g, alpha[t], beta[t])
		normalizeSum(g, 0)
		if gamma != nil {
			copy(gamma[t], g)
		}

		// Tempered posterior for the emission and initial state counts
		ge := g
		if ws.temp != 1 {
			ge = ws.gtemp
			for st, v := range g {
				ge[st] = math.Pow(v, ws.temp)
			}
			normalizeSum(ge, 0)
		}

		if t == 0 {
			floats.Add(post.InitCount, ge)
		}

		for st := 0; st < k; st++ {
			post.EmitCount[st*ws.nsymbol+y[t]] += ge[st]
		}

		if t == n-1 {
			continue
		}

		// Joint posterior of the states at t and t+1
		floats.MulTo(ws.w, ws.ecol[y[t+1]], beta[t+1])
		for st1 := 0; st1 < k; st1++ {
			a := alpha[t][st1]
			row := ws.trans.row(st1)
			for st2 := 0; st2 < k; st2++ {
				ws.xi[st1*k+st2] = a * row[st2] * ws.w[st2]
			}
		}
		if normalizeSum(ws.xi, 0) > 0 {
			floats.Add(post.TransCount, ws.xi)
		}
	}
}
