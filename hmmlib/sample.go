package hmmlib

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distmv"
)

// SampleMethod selects the distribution used to draw random rows.
type SampleMethod uint8

// SampleDirichlet draws rows from a Dirichlet distribution, SampleUniform
// draws independent uniform values and normalizes them.
const (
	SampleDirichlet SampleMethod = iota
	SampleUniform
)

// SampleOptions controls GenerateParams.
type SampleOptions struct {
	Method SampleMethod

	// Dirichlet concentration for every transition entry
	TransConc float64

	// Extra concentration added to the diagonal of the transition matrix.
	// Positive values favor states that persist.
	TransDiag float64

	// Dirichlet concentration for the emission entries
	EmitConc float64

	// If true the initial distribution is drawn at random, otherwise it is
	// uniform.
	RandomInit bool
}

// DefaultSampleOptions returns the options used when nil is passed to
// GenerateParams.
func DefaultSampleOptions() *SampleOptions {
	return &SampleOptions{
		Method:    SampleDirichlet,
		TransConc: 1,
		TransDiag: 5,
		EmitConc:  1,
	}
}

// GenerateParams draws random valid parameters with nstate states and
// nsymbol symbols.  They can serve as true parameters for simulation or as
// starting values for Fit.
func GenerateParams(nstate, nsymbol int, src rand.Source, opts *SampleOptions) (*Params, error) {

	if nstate < 1 || nsymbol < 1 {
		return nil, errors.Wrapf(ErrBadConfig, "nstate=%d, nsymbol=%d", nstate, nsymbol)
	}

	if opts == nil {
		opts = DefaultSampleOptions()
	}

	switch opts.Method {
	case SampleDirichlet:
		if opts.TransConc <= 0 || opts.TransDiag < 0 || opts.EmitConc <= 0 {
			return nil, errors.Wrapf(ErrBadConfig, "invalid concentrations %+v", *opts)
		}
	case SampleUniform:
	default:
		return nil, errors.Wrapf(ErrBadConfig, "unknown sample method %d", opts.Method)
	}

	rng := rand.New(src)

	trans := make([]float64, nstate*nstate)
	alpha := make([]float64, nstate)
	for i := 0; i < nstate; i++ {
		for j := range alpha {
			alpha[j] = opts.TransConc
		}
		alpha[i] += opts.TransDiag
		drawRow(trans[i*nstate:(i+1)*nstate], alpha, opts.Method, src, rng)
	}

	emit := make([]float64, nstate*nsymbol)
	alpha = make([]float64, nsymbol)
	for j := range alpha {
		alpha[j] = opts.EmitConc
	}
	for i := 0; i < nstate; i++ {
		drawRow(emit[i*nsymbol:(i+1)*nsymbol], alpha, opts.Method, src, rng)
	}

	var init []float64
	if opts.RandomInit {
		init = make([]float64, nstate)
		alpha = make([]float64, nstate)
		for j := range alpha {
			alpha[j] = 1
		}
		drawRow(init, alpha, opts.Method, src, rng)
	}

	tr, err := Normalize(nstate, nstate, trans)
	if err != nil {
		return nil, err
	}
	em, err := Normalize(nstate, nsymbol, emit)
	if err != nil {
		return nil, err
	}

	return &Params{Trans: tr, Emit: em, Init: init}, nil
}

// RandomStarts returns n independent random parameter sets.  Start i uses
// its own source derived from (seed, i), so the result does not depend on
// the order in which starts are consumed.  The sources differ from
// rand.NewPCG(seed, j) for any small j, which callers use to draw true
// parameters.
func RandomStarts(n, nstate, nsymbol int, seed uint64, opts *SampleOptions) ([]*Params, error) {

	starts := make([]*Params, n)
	for i := range starts {
		p, err := GenerateParams(nstate, nsymbol, startSource(seed, i), opts)
		if err != nil {
			return nil, err
		}
		starts[i] = p
	}

	return starts, nil
}

// drawRow fills x with a random probability vector.
func drawRow(x, alpha []float64, method SampleMethod, src rand.Source, rng *rand.Rand) {

	switch method {
	case SampleUniform:
		for j := range x {
			// Keep every entry positive
			x[j] = rng.Float64() + 1e-12
		}
	default:
		distmv.NewDirichlet(alpha, src).Rand(x)
	}

	// Rows that underflow for tiny concentrations become uniform
	normalizeSum(x, 1/float64(len(x)))
}

// restartTag separates the streams of the random starts from the streams
// seeded directly with the user's seed.
const restartTag = 0x9e3779b97f4a7c15

// startSource returns the source of random start i.
func startSource(seed uint64, i int) rand.Source {
	return rand.NewPCG(mix64(seed^restartTag), mix64(uint64(i)+restartTag))
}

// mix64 is the splitmix64 finalizer.
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
