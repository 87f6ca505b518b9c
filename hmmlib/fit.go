package hmmlib

import (
	"math"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"
)

// FitStatus is the state of an EM run.
type FitStatus uint8

// Initialized, etc. are the states of an EM run.  Converged,
// MaxIterReached and Diverged are terminal.
const (
	Initialized FitStatus = iota
	Iterating
	Converged
	MaxIterReached
	Diverged
)

func (s FitStatus) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterReached:
		return "max-iterations-reached"
	case Diverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// FitOptions controls the EM iterations.
type FitOptions struct {

	// Maximum number of EM iterations
	MaxIter int

	// Stop when the log-likelihood increases by less than this amount
	Tol float64

	// If true the initial state distribution is re-estimated, otherwise
	// the starting value (uniform if nil) is kept.
	FitInit bool

	// Temperature for deterministic annealing EM (Ueda and Nakano, 1998).
	// The state posteriors used to update the emission and initial
	// probabilities are raised to this power and renormalized.  Zero is
	// treated as 1, which gives ordinary EM.  Values below 1 flatten the
	// posteriors, and the log-likelihood need not increase monotonically.
	Temperature float64

	// Maximum number of restarts fit concurrently by FitRestarts.  If
	// zero, GOMAXPROCS is used.
	Workers int

	// If not nil, called by FitRestarts when a restart completes.  It may
	// be called concurrently.
	Progress func()
}

// DefaultFitOptions returns the options used when nil is passed to Fit.
func DefaultFitOptions() *FitOptions {
	return &FitOptions{
		MaxIter:     250,
		Tol:         1e-3,
		Temperature: 1,
	}
}

// Warnings counts recoverable numerical events during a fit.
type Warnings struct {
	LogLikeDecreased int
	EmptyState       int
}

// FitResult is the outcome of one EM run.
type FitResult struct {

	// The log-likelihood at each iteration.  The length is always
	// MaxIter, entries after the last iteration repeat the final value.
	LLF []float64

	// The estimated parameters
	Params *Params

	// Number of iterations performed
	Iterations int

	Status FitStatus

	// True if the initial distribution was estimated
	FitInit bool

	Warnings Warnings
}

// FinalLLF returns the last log-likelihood value of the fit.
func (res *FitResult) FinalLLF() float64 {
	if len(res.LLF) == 0 {
		return math.NaN()
	}
	return res.LLF[len(res.LLF)-1]
}

// AIC returns the final log-likelihood penalized by the number of free
// parameters (the AIC scaled by -1/2), so larger values are better.
func (res *FitResult) AIC() float64 {
	return res.FinalLLF() - float64(res.Params.NumFree(res.FitInit))
}

// Fit uses the EM algorithm to estimate the parameters of the HMM from the
// observation sequence y, starting from start.  The starting parameters are
// not modified.
func (hmm *HMM) Fit(y []int, start *Params, opts *FitOptions) (*FitResult, error) {
	return hmm.FitSequences([][]int{y}, start, opts)
}

// FitSequences uses the EM algorithm to estimate parameters shared by
// several independent observation sequences.
func (hmm *HMM) FitSequences(seqs [][]int, start *Params, opts *FitOptions) (*FitResult, error) {

	if opts == nil {
		opts = DefaultFitOptions()
	}
	if opts.MaxIter < 1 {
		return nil, errors.Wrapf(ErrBadConfig, "MaxIter=%d", opts.MaxIter)
	}
	if opts.Temperature < 0 || math.IsNaN(opts.Temperature) {
		return nil, errors.Wrapf(ErrBadConfig, "Temperature=%v", opts.Temperature)
	}
	if err := hmm.checkParams(start); err != nil {
		return nil, errors.Wrap(err, "starting values")
	}

	var maxt int
	for i, y := range seqs {
		if err := checkObs(y, hmm.NSymbol); err != nil {
			return nil, errors.Wrapf(err, "sequence %d", i)
		}
		if len(y) > maxt {
			maxt = len(y)
		}
	}

	ws := newWorkspace(maxt, hmm.NState, hmm.NSymbol)
	if opts.Temperature > 0 {
		ws.temp = opts.Temperature
	}
	post := newPosterior(hmm.NState, hmm.NSymbol)
	cur := start.Clone()

	res := &FitResult{
		LLF:     make([]float64, opts.MaxIter),
		Status:  Initialized,
		FitInit: opts.FitInit,
	}

	var llf float64
	for i := 0; i < opts.MaxIter; i++ {

		res.Status = Iterating

		// E-step
		post.reset()
		ws.setParams(cur)
		for _, y := range seqs {
			ws.accumulate(y, post, nil)
		}

		llfnew := post.LLF
		res.LLF[i] = llfnew
		res.Iterations = i + 1
		hmm.msglogger.Debugf("iteration %d llf=%f", i, llfnew)

		if math.IsNaN(llfnew) || math.IsInf(llfnew, 0) {
			hmm.msglogger.Warnf("Non-finite log-likelihood %f at iteration %d", llfnew, i)
			res.Status = Diverged
			break
		}

		// M-step
		cur = mstep(cur, post, opts.FitInit, &res.Warnings)

		if i > 0 {
			if llfnew < llf-1e-8*(1+math.Abs(llf)) && ws.temp == 1 {
				hmm.msglogger.Warnf("Log-likelihood decreased by %g", llf-llfnew)
				res.Warnings.LogLikeDecreased++
			}
			if llfnew-llf < opts.Tol {
				hmm.msglogger.Infof("Converged at iteration %d, llf=%f", i, llfnew)
				res.Status = Converged
				break
			}
		}

		llf = llfnew
	}

	if res.Status == Iterating {
		hmm.msglogger.Infof("Reached %d iterations without converging, llf=%f", opts.MaxIter, res.LLF[opts.MaxIter-1])
		res.Status = MaxIterReached
	}

	// Flat tail so that all trajectories have the same length
	for i := res.Iterations; i < len(res.LLF); i++ {
		res.LLF[i] = res.LLF[res.Iterations-1]
	}

	res.Params = cur

	return res, nil
}

// mstep returns the parameters maximizing the expected complete data
// log-likelihood given the expected counts in post.
func mstep(cur *Params, post *Posterior, fitInit bool, warn *Warnings) *Params {

	k, c := cur.NState(), cur.NSymbol()

	for st := 0; st < k; st++ {
		if !(floats.Sum(post.EmitCount[st*c:(st+1)*c]) > 0) {
			warn.EmptyState++
		}
	}

	trans := make([]float64, k*k)
	copy(trans, post.TransCount)
	emit := make([]float64, k*c)
	copy(emit, post.EmitCount)

	next := &Params{
		Trans: renormalize(k, k, trans, cur.Trans),
		Emit:  renormalize(k, c, emit, cur.Emit),
	}

	if fitInit {
		init := make([]float64, k)
		copy(init, post.InitCount)
		if normalizeSum(init, 0) > 0 {
			next.Init = init
			return next
		}
	}

	if cur.Init != nil {
		next.Init = make([]float64, k)
		copy(next.Init, cur.Init)
	}

	return next
}

// FitRestarts runs Fit from each of the starting values.  The runs are
// independent and are carried out concurrently.  The results are in the
// same order as starts.
func (hmm *HMM) FitRestarts(seqs [][]int, starts []*Params, opts *FitOptions) ([]*FitResult, error) {

	if opts == nil {
		opts = DefaultFitOptions()
	}

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*FitResult, len(starts))
	p := pool.New().WithErrors().WithMaxGoroutines(workers)

	for i, start := range starts {
		p.Go(func() error {
			res, err := hmm.FitSequences(seqs, start, opts)
			if err != nil {
				return errors.Wrapf(err, "restart %d", i)
			}
			hmm.msglogger.Infof("Restart %d: %s after %d iterations, llf=%f", i, res.Status, res.Iterations, res.FinalLLF())
			results[i] = res
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

// LLFTable returns the log-likelihood trajectories of the results as rows
// of a table, suitable for FindBestFit.
func LLFTable(results []*FitResult) [][]float64 {

	llfs := make([][]float64, len(results))
	for i, res := range results {
		llfs[i] = res.LLF
	}

	return llfs
}
