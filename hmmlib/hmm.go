// Package hmmlib fits hidden Markov models with categorical emissions
// using the EM algorithm.
package hmmlib

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Config holds the size parameters of a categorical HMM.
type Config struct {

	// Default number of time points.  This is only used as the length of
	// simulated sequences, the estimation routines take the length from
	// the sequences they are given.
	NTime int

	// Dimension of exogenous inputs, reserved and not used.
	NInput int

	// Number of distinct observed symbols
	NSymbol int

	// Number of latent states
	NState int
}

// Validate returns an error if the configuration can not describe a model.
func (cfg Config) Validate() error {

	switch {
	case cfg.NState < 1:
		return errors.Wrapf(ErrBadConfig, "NState=%d", cfg.NState)
	case cfg.NSymbol < 1:
		return errors.Wrapf(ErrBadConfig, "NSymbol=%d", cfg.NSymbol)
	case cfg.NTime < 0:
		return errors.Wrapf(ErrBadConfig, "NTime=%d", cfg.NTime)
	case cfg.NInput < 0:
		return errors.Wrapf(ErrBadConfig, "NInput=%d", cfg.NInput)
	}

	return nil
}

// HMM fits hidden Markov models with categorical emissions.  The HMM
// value holds only the configuration and the logger, so one value can be
// used concurrently for independent fits.
type HMM struct {
	Config

	// Write log messages here
	msglogger *zap.SugaredLogger
}

// Option configures an HMM.
type Option func(*HMM)

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(hmm *HMM) {
		hmm.msglogger = logger
	}
}

// New returns an HMM value with the given size parameters.
func New(cfg Config, opts ...Option) (*HMM, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hmm := &HMM{
		Config: cfg,
	}

	for _, opt := range opts {
		opt(hmm)
	}

	if hmm.msglogger == nil {
		hmm.msglogger = zap.NewNop().Sugar()
	}

	return hmm, nil
}

// Logger returns the logger used by the HMM.
func (hmm *HMM) Logger() *zap.SugaredLogger {
	return hmm.msglogger
}

// checkParams confirms that the parameters match the configured sizes.
func (hmm *HMM) checkParams(p *Params) error {

	if err := p.Validate(); err != nil {
		return err
	}

	if p.NState() != hmm.NState || p.NSymbol() != hmm.NSymbol {
		return errors.Wrapf(ErrDimMismatch, "parameters are %dx%d, model is %dx%d",
			p.NState(), p.NSymbol(), hmm.NState, hmm.NSymbol)
	}

	return nil
}

// normalize the values in x to have a sum of 1.  If the sum is not
// positive all values are set to z.
func normalizeSum(x []float64, z float64) float64 {
	scale := floats.Sum(x)
	if !(scale > 0) {
		for j := range x {
			x[j] = z
		}
		return scale
	}
	floats.Scale(1/scale, x)
	return scale
}

func argmax(x []float64) int {
	j := 0
	v := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > v {
			v = x[i]
			j = i
		}
	}

	return j
}

// Zero the elements of x
func zero(x []float64) {
	for j := range x {
		x[j] = 0
	}
}

// makeIntArray makes a collection of r slices
// of length c, packed contiguously.
func makeIntArray(r, c int) [][]int {

	bka := make([]int, r*c)
	x := make([][]int, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}

// makeFloatArray makes a collection of r slices
// of length c, packed contiguously.
func makeFloatArray(r, c int) [][]float64 {

	bka := make([]float64, r*c)
	x := make([][]float64, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}
