// Package xval implements contiguous k-fold cross-validation of
// categorical hidden Markov models.
package xval

import (
	"math"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/kshedden/cathmm/hmmlib"
)

// Range is the half-open index range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Fold is one train/test split.  The training data are the one or two
// ranges on either side of the test block, kept separate so that no
// transition is assumed across the gap.
type Fold struct {
	Test  Range
	Train []Range
}

// KFold partitions [0, n) into folds contiguous test blocks, in order.
// Block sizes differ by at most one.  The data are never shuffled since
// they are ordered in time.
func KFold(n, folds int) ([]Fold, error) {

	if folds < 2 || folds > n {
		return nil, errors.Wrapf(hmmlib.ErrBadConfig, "%d folds for %d time points", folds, n)
	}

	q, r := n/folds, n%folds
	fl := make([]Fold, folds)
	start := 0
	for f := range fl {
		size := q
		if f < r {
			size++
		}
		end := start + size

		fl[f].Test = Range{start, end}
		if start > 0 {
			fl[f].Train = append(fl[f].Train, Range{0, start})
		}
		if end < n {
			fl[f].Train = append(fl[f].Train, Range{end, n})
		}
		start = end
	}

	return fl, nil
}

// Segments returns the subsequences of y covered by the ranges.
func Segments(y []int, ranges []Range) [][]int {

	seqs := make([][]int, len(ranges))
	for i, r := range ranges {
		seqs[i] = y[r.Start:r.End]
	}

	return seqs
}

// Options controls CrossValidate.
type Options struct {

	// Number of folds
	Folds int

	// Number of random starting values fit on each training set
	Restarts int

	// Seed for the random starting values
	Seed uint64

	// Distribution of the random starting values, defaults are used if nil
	Sample *hmmlib.SampleOptions

	// EM settings, defaults are used if nil
	Fit *hmmlib.FitOptions

	// Maximum number of folds processed concurrently.  If zero, GOMAXPROCS
	// is used.
	Workers int

	// If not nil, called when a fold completes.  It may be called
	// concurrently.
	Progress func()
}

// FoldResult summarizes one fold.
type FoldResult struct {
	Fold Fold

	// Index of the selected restart
	Best int

	// The selected fit
	Fit *hmmlib.FitResult

	// Log-likelihood of the training data under the selected fit
	TrainLLF float64

	// Log-likelihood of the test data under the selected fit
	TestLLF float64

	// Log-likelihood of the test data under the true parameters, NaN if
	// the true parameters are not known.
	TestLLFTrue float64
}

// CrossValidate fits the model on each training split and evaluates the
// forward log-likelihood of the held-out block.  If truth is not nil the
// held-out block is also scored with the true parameters.
func CrossValidate(hmm *hmmlib.HMM, y []int, truth *hmmlib.Params, opts *Options) ([]*FoldResult, error) {

	if opts == nil || opts.Restarts < 1 {
		return nil, errors.Wrap(hmmlib.ErrBadConfig, "at least one restart is required")
	}

	folds, err := KFold(len(y), opts.Folds)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*FoldResult, len(folds))
	p := pool.New().WithErrors().WithMaxGoroutines(workers)
	for f, fold := range folds {
		p.Go(func() error {
			res, err := runFold(hmm, y, truth, fold, opts, opts.Seed+uint64(f)+1)
			if err != nil {
				return errors.Wrapf(err, "fold %d", f)
			}
			hmm.Logger().Infof("Fold %d: test llf=%f (true %f)", f, res.TestLLF, res.TestLLFTrue)
			results[f] = res
			if opts.Progress != nil {
				opts.Progress()
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func runFold(hmm *hmmlib.HMM, y []int, truth *hmmlib.Params, fold Fold, opts *Options, seed uint64) (*FoldResult, error) {

	starts, err := hmmlib.RandomStarts(opts.Restarts, hmm.NState, hmm.NSymbol, seed, opts.Sample)
	if err != nil {
		return nil, err
	}

	train := Segments(y, fold.Train)
	fits, err := hmm.FitRestarts(train, starts, opts.Fit)
	if err != nil {
		return nil, err
	}

	best := hmmlib.FindBestFit(hmmlib.LLFTable(fits))
	res := &FoldResult{
		Fold:        fold,
		Best:        best,
		Fit:         fits[best],
		TestLLFTrue: math.NaN(),
	}

	for _, seq := range train {
		llf, err := hmmlib.Loglike(seq, res.Fit.Params)
		if err != nil {
			return nil, err
		}
		res.TrainLLF += llf
	}

	test := y[fold.Test.Start:fold.Test.End]
	if res.TestLLF, err = hmmlib.Loglike(test, res.Fit.Params); err != nil {
		return nil, err
	}

	if truth != nil {
		if res.TestLLFTrue, err = hmmlib.Loglike(test, truth); err != nil {
			return nil, errors.Wrap(err, "true parameters")
		}
	}

	return res, nil
}

// Summary adds up the held-out log-likelihoods over the folds.
func Summary(results []*FoldResult) (testLLF, testLLFTrue float64) {

	for _, res := range results {
		testLLF += res.TestLLF
		testLLFTrue += res.TestLLFTrue
	}

	return testLLF, testLLFTrue
}
