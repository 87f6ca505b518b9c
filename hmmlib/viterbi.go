package hmmlib

import (
	"math"

	"github.com/pkg/errors"
)

// ReconstructStates uses the Viterbi algorithm to predict the most likely
// sequence of states given the observations y.
func ReconstructStates(y []int, p *Params) ([]int, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkObs(y, p.NSymbol()); err != nil {
		return nil, err
	}

	k := p.NState()
	n := len(y)
	lpr := makeFloatArray(n, k)
	lpt := makeIntArray(n, k)

	reconstructionProbs(y, p, lpr, lpt)

	return traceback(lpr, lpt), nil
}

func reconstructionProbs(y []int, p *Params, lpr [][]float64, lpt [][]int) {

	k := p.NState()
	wk := make([]float64, k)

	ltr := make([]float64, k*k)
	for st1 := 0; st1 < k; st1++ {
		for st2 := 0; st2 < k; st2++ {
			ltr[st1*k+st2] = math.Log(p.Trans.At(st1, st2))
		}
	}

	init := p.InitOrUniform()
	for t := range y {

		// Beginning from initial conditions
		if t == 0 {
			for st := 0; st < k; st++ {
				lpr[0][st] = math.Log(init[st]) + math.Log(p.Emit.At(st, y[0]))
			}
			continue // First block of lpt is not used
		}

		// From st1 to st2
		for st2 := 0; st2 < k; st2++ {
			for st1 := 0; st1 < k; st1++ {
				wk[st1] = lpr[t-1][st1] + ltr[st1*k+st2]
			}

			// The best previous state
			jj := argmax(wk)
			lpt[t][st2] = jj
			lpr[t][st2] = wk[jj] + math.Log(p.Emit.At(st2, y[t]))
		}
	}
}

func traceback(lpr [][]float64, lpt [][]int) []int {

	n := len(lpr)
	z := make([]int, n)
	if n == 0 {
		return z
	}

	z[n-1] = argmax(lpr[n-1])
	for t := n - 2; t >= 0; t-- {
		z[t] = lpt[t+1][z[t+1]]
	}

	return z
}

// CompareStates returns the number of positions where the state sequences
// x and y disagree, and the number of positions compared.
func CompareStates(x, y []int) (int, int, error) {

	if len(x) != len(y) {
		return 0, 0, errors.Wrapf(ErrDimMismatch, "lengths %d and %d", len(x), len(y))
	}

	var e int
	for t := range x {
		if x[t] != y[t] {
			e++
		}
	}

	return e, len(x), nil
}
