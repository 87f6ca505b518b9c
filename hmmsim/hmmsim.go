// Package hmmsim simulates state and observation sequences from a
// categorical hidden Markov model.
package hmmsim

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kshedden/cathmm/hmmlib"
)

// GenerateData draws a latent state path z of length n from the Markov
// chain with initial distribution p.Init (uniform if nil) and transition
// matrix p.Trans, and an observation y[t] from the emission row of z[t] at
// every time point.  The results are determined by src.
func GenerateData(p *hmmlib.Params, n int, src rand.Source) ([]int, []int, error) {

	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if n < 0 {
		return nil, nil, errors.Wrapf(hmmlib.ErrBadConfig, "sequence length %d", n)
	}

	k := p.NState()
	init := genDiscrete(p.InitOrUniform(), src)
	trans := make([]distuv.Categorical, k)
	emit := make([]distuv.Categorical, k)
	for st := 0; st < k; st++ {
		trans[st] = genDiscrete(p.Trans.Row(st), src)
		emit[st] = genDiscrete(p.Emit.Row(st), src)
	}

	y := make([]int, n)
	z := make([]int, n)
	for t := 0; t < n; t++ {
		if t == 0 {
			z[t] = int(init.Rand())
		} else {
			z[t] = int(trans[z[t-1]].Rand())
		}
		y[t] = int(emit[z[t]].Rand())
	}

	return y, z, nil
}

// genDiscrete returns a distribution over 0..len(pr)-1 with the given
// probabilities, which must sum to 1.
func genDiscrete(pr []float64, src rand.Source) distuv.Categorical {
	return distuv.NewCategorical(pr, src)
}
