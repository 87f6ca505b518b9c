// This is a series of tests to confirm that the log-likelihood is
// non-decreasing over the EM iterations.

package hmmlib

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

const (
	niter = 20
)

func gendat(t *testing.T, nseq, nst, nsym, ntm int, seed uint64) (*HMM, [][]int, *Params) {

	hmm, err := New(Config{NTime: ntm, NSymbol: nsym, NState: nst})
	require.NoError(t, err)

	seqs := make([][]int, nseq)
	for k := range seqs {
		seqs[k] = randomObs(ntm+k, nsym, seed+uint64(k))
	}

	start, err := GenerateParams(nst, nsym, rand.NewPCG(seed, 1), nil)
	require.NoError(t, err)

	return hmm, seqs, start
}

func TestLLFAscending(t *testing.T) {

	opts := &FitOptions{
		MaxIter: niter,
		Tol:     math.Inf(-1),
	}

	for _, nseq := range []int{1, 3} {
		for _, nst := range []int{1, 2, 4} {
			for _, nsym := range []int{1, 3, 6} {
				for _, ntm := range []int{1, 10, 50} {
					for _, fitinit := range []bool{false, true} {

						hmm, seqs, start := gendat(t, nseq, nst, nsym, ntm, uint64(nst*nsym+ntm))
						opts.FitInit = fitinit
						res, err := hmm.FitSequences(seqs, start, opts)
						require.NoError(t, err)
						require.Equal(t, MaxIterReached, res.Status)
						require.Len(t, res.LLF, niter)

						// Check that the log-likelihood values are ascending.
						for i := 1; i < len(res.LLF); i++ {
							tol := 1e-8 * (1 + math.Abs(res.LLF[i-1]))
							if res.LLF[i] < res.LLF[i-1]-tol {
								t.Errorf("nseq=%d nst=%d nsym=%d ntm=%d iter=%d: %f %f",
									nseq, nst, nsym, ntm, i, res.LLF[i-1], res.LLF[i])
							}
						}
						assert.Equal(t, 0, res.Warnings.LogLikeDecreased)
						require.NoError(t, res.Params.Validate())
					}
				}
			}
		}
	}
}

func TestFitStatus(t *testing.T) {

	hmm, seqs, start := gendat(t, 1, 2, 3, 200, 5)

	// A large tolerance stops after the first comparison
	res, err := hmm.Fit(seqs[0], start, &FitOptions{MaxIter: 10, Tol: 1e10})
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.LLF, 10)
	for i := 2; i < 10; i++ {
		assert.Equal(t, res.LLF[1], res.LLF[i])
	}

	res, err = hmm.Fit(seqs[0], start, &FitOptions{MaxIter: 1, Tol: 1e-3})
	require.NoError(t, err)
	assert.Equal(t, MaxIterReached, res.Status)
	assert.Equal(t, 1, res.Iterations)

	// The defaults are used when no options are given
	res, err = hmm.Fit(seqs[0], start, nil)
	require.NoError(t, err)
	assert.Len(t, res.LLF, 250)
	assert.Contains(t, []FitStatus{Converged, MaxIterReached}, res.Status)
	assert.Equal(t, res.FinalLLF()-float64(res.Params.NumFree(false)), res.AIC())
}

func TestFitDiverged(t *testing.T) {

	hmm, err := New(Config{NSymbol: 2, NState: 2})
	require.NoError(t, err)

	// Symbol 1 can never be emitted
	start, err := NewParams([][]float64{{0.5, 0.5}, {0.5, 0.5}}, [][]float64{{1, 0}, {1, 0}}, nil)
	require.NoError(t, err)

	res, err := hmm.Fit([]int{0, 1, 0}, start, &FitOptions{MaxIter: 5, Tol: 1e-3})
	require.NoError(t, err)
	assert.Equal(t, Diverged, res.Status)
	assert.Equal(t, 1, res.Iterations)
	for _, v := range res.LLF {
		assert.True(t, math.IsInf(v, -1))
	}
	assert.Equal(t, 0, FindBestFit([][]float64{res.LLF}))
}

func TestFitInit(t *testing.T) {

	hmm, seqs, start := gendat(t, 3, 3, 4, 30, 11)
	orig := start.Clone()

	res, err := hmm.FitSequences(seqs, start, &FitOptions{MaxIter: 5, Tol: 1e-6})
	require.NoError(t, err)
	assert.Nil(t, res.Params.Init)
	assert.False(t, res.FitInit)

	res, err = hmm.FitSequences(seqs, start, &FitOptions{MaxIter: 5, Tol: 1e-6, FitInit: true})
	require.NoError(t, err)
	require.Len(t, res.Params.Init, 3)
	assert.InDelta(t, 1, floats.Sum(res.Params.Init), 1e-10)
	assert.Equal(t, res.FinalLLF()-float64(res.Params.NumFree(true)), res.AIC())

	// A fixed initial distribution is carried through unchanged
	start.Init = []float64{0.2, 0.3, 0.5}
	res, err = hmm.FitSequences(seqs, start, &FitOptions{MaxIter: 5, Tol: 1e-6})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.3, 0.5}, res.Params.Init)

	// The starting values are not modified
	assert.Equal(t, orig.Trans.Rows(), start.Trans.Rows())
	assert.Equal(t, orig.Emit.Rows(), start.Emit.Rows())
}

func TestFitErrors(t *testing.T) {

	hmm, seqs, start := gendat(t, 1, 2, 3, 20, 2)

	_, err := hmm.Fit(seqs[0], start, &FitOptions{MaxIter: 0})
	require.ErrorIs(t, err, ErrBadConfig)

	_, err = hmm.Fit([]int{0, 5}, start, nil)
	require.ErrorIs(t, err, ErrSymbolRange)

	other, err := GenerateParams(3, 3, rand.NewPCG(1, 1), nil)
	require.NoError(t, err)
	_, err = hmm.Fit(seqs[0], other, nil)
	require.ErrorIs(t, err, ErrDimMismatch)

	_, err = hmm.Fit(seqs[0], nil, nil)
	require.ErrorIs(t, err, ErrBadShape)

	for _, temp := range []float64{-1, math.NaN()} {
		_, err = hmm.Fit(seqs[0], start, &FitOptions{MaxIter: 5, Temperature: temp})
		require.ErrorIs(t, err, ErrBadConfig)
	}

	_, err = New(Config{NState: 0, NSymbol: 2})
	require.ErrorIs(t, err, ErrBadConfig)
}

func TestFitRestarts(t *testing.T) {

	hmm, seqs, _ := gendat(t, 2, 2, 3, 100, 8)
	starts, err := RandomStarts(6, 2, 3, 17, nil)
	require.NoError(t, err)

	var ndone int64
	opts := &FitOptions{
		MaxIter:  30,
		Tol:      1e-6,
		Workers:  3,
		Progress: func() { atomic.AddInt64(&ndone, 1) },
	}

	results, err := hmm.FitRestarts(seqs, starts, opts)
	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.Equal(t, int64(6), atomic.LoadInt64(&ndone))

	// Concurrent restarts give the same results as sequential fits
	for i, start := range starts {
		res, err := hmm.FitSequences(seqs, start, opts)
		require.NoError(t, err)
		assert.Equal(t, res.LLF, results[i].LLF)
		assert.Equal(t, res.Params.Trans.Rows(), results[i].Params.Trans.Rows())
	}

	best := FindBestFit(LLFTable(results))
	for _, res := range results {
		assert.GreaterOrEqual(t, results[best].FinalLLF(), res.FinalLLF())
	}
}

func TestMstepEmptyState(t *testing.T) {

	start, err := NewParams(
		[][]float64{{0.5, 0.5}, {0.5, 0.5}},
		[][]float64{{0.5, 0.5}, {0.5, 0.5}},
		nil,
	)
	require.NoError(t, err)

	post := newPosterior(2, 2)
	post.TransCount = []float64{3, 1, 0, 0}
	post.EmitCount = []float64{1, 3, 0, 0}

	var warn Warnings
	next := mstep(start, post, false, &warn)
	assert.Equal(t, 1, warn.EmptyState)
	assert.Equal(t, []float64{0.75, 0.25}, next.Trans.Row(0))
	assert.Equal(t, []float64{0.25, 0.75}, next.Emit.Row(0))

	// A state without mass keeps its previous rows
	assert.Equal(t, []float64{0.5, 0.5}, next.Trans.Row(1))
	assert.Equal(t, []float64{0.5, 0.5}, next.Emit.Row(1))
}

func TestFitStatusString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "max-iterations-reached", MaxIterReached.String())
	assert.Equal(t, "diverged", Diverged.String())
}

func TestFitTemperature(t *testing.T) {

	hmm, seqs, start := gendat(t, 2, 3, 4, 80, 11)

	// A temperature of 1 (or the zero value) is ordinary EM
	base, err := hmm.FitSequences(seqs, start, &FitOptions{MaxIter: 15, Tol: 1e-8})
	require.NoError(t, err)
	one, err := hmm.FitSequences(seqs, start, &FitOptions{MaxIter: 15, Tol: 1e-8, Temperature: 1})
	require.NoError(t, err)
	assert.Equal(t, base.LLF, one.LLF)
	assert.Equal(t, base.Params.Emit.Rows(), one.Params.Emit.Rows())

	// A lower temperature gives different, valid, estimates.  The
	// log-likelihood is not monotone so no decreases are recorded.
	cool, err := hmm.FitSequences(seqs, start, &FitOptions{MaxIter: 15, Tol: math.Inf(-1), Temperature: 0.5})
	require.NoError(t, err)
	require.NoError(t, cool.Params.Validate())
	assert.Equal(t, 0, cool.Warnings.LogLikeDecreased)
	assert.NotEqual(t, base.Params.Emit.Rows(), cool.Params.Emit.Rows())

	// The first E-step is evaluated at the starting values either way
	assert.Equal(t, base.LLF[0], cool.LLF[0])
}

func TestTemperedCounts(t *testing.T) {

	p := testParams(t)
	y := randomObs(60, 3, 4)

	post, err := Posteriors(y, p)
	require.NoError(t, err)

	for _, temp := range []float64{0.25, 1, 4} {
		ws := newWorkspace(len(y), p.NState(), p.NSymbol())
		ws.temp = temp
		ws.setParams(p)
		tp := newPosterior(p.NState(), p.NSymbol())
		ws.accumulate(y, tp, nil)

		// Each time point contributes one unit of emission mass, and
		// the transition counts and likelihood are unaffected.
		assert.InDelta(t, float64(len(y)), floats.Sum(tp.EmitCount), 1e-8)
		assert.InDelta(t, 1, floats.Sum(tp.InitCount), 1e-10)
		assert.InDeltaSlice(t, post.TransCount, tp.TransCount, 1e-10)
		assert.InDelta(t, post.LLF, tp.LLF, 1e-10)
		if temp == 1 {
			assert.InDeltaSlice(t, post.EmitCount, tp.EmitCount, 1e-10)
		} else {
			assert.NotEqual(t, post.EmitCount, tp.EmitCount)
		}
	}
}
