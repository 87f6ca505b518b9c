// Repeatedly simulate and estimate categorical hidden Markov models, and
// write the accuracy of each replication to a CSV file.
package main

import (
	"encoding/csv"
	"math"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kshedden/cathmm/config"
	"github.com/kshedden/cathmm/hmmlib"
	"github.com/kshedden/cathmm/hmmlog"
	"github.com/kshedden/cathmm/hmmsim"
	"github.com/kshedden/cathmm/xval"
)

var header = []string{
	"rep", "status", "iterations", "llf", "llf_true", "aic",
	"trans_err", "emit_err", "state_err", "cv_llf", "cv_llf_true",
}

func main() {

	cmd := &cobra.Command{
		Use:           "simstudy",
		Short:         "Simulation study of EM estimation for categorical HMMs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.Flags().Int("nrep", 10, "Number of replications")
	cmd.Flags().String("outname", "simstudy.csv", "Output CSV file")
	cmd.Flags().String("config", "", "Configuration file")
	config.AddModelFlags(cmd.Flags())
	config.AddFitFlags(cmd.Flags())
	config.AddLogFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		logger, _ := hmmlog.New("simstudy", nil)
		logger.Errorf("%+v", err)
		os.Exit(1)
	}
}

// maxAbsDiff returns the largest absolute difference between corresponding
// entries of two tables with the same shape.
func maxAbsDiff(a, b *hmmlib.Table) float64 {

	r, c := a.Dims()
	var d float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d = math.Max(d, math.Abs(a.At(i, j)-b.At(i, j)))
		}
	}

	return d
}

func ftoa(x float64) string {
	return strconv.FormatFloat(x, 'g', 8, 64)
}

// replicate simulates one dataset, fits it and returns one CSV record.
func replicate(hmm *hmmlib.HMM, cfg *config.Settings, rep int) ([]string, error) {

	seed := cfg.Seed + uint64(rep)*1000003
	src := rand.NewPCG(seed, 0)

	truth, err := hmmlib.GenerateParams(hmm.NState, hmm.NSymbol, src, nil)
	if err != nil {
		return nil, err
	}
	obs, state, err := hmmsim.GenerateData(truth, hmm.NTime, src)
	if err != nil {
		return nil, err
	}

	starts, err := hmmlib.RandomStarts(cfg.Restarts, hmm.NState, hmm.NSymbol, seed, nil)
	if err != nil {
		return nil, err
	}
	fits, err := hmm.FitRestarts([][]int{obs}, starts, cfg.FitOptions())
	if err != nil {
		return nil, err
	}
	res := fits[hmmlib.FindBestFit(hmmlib.LLFTable(fits))]

	// Compare in the self-transition order of each model.
	truth, order, err := truth.Permute(nil)
	if err != nil {
		return nil, err
	}
	state = hmmlib.PermutePath(state, order)
	est, _, err := res.Params.Permute(nil)
	if err != nil {
		return nil, err
	}

	llf, err := hmmlib.Loglike(obs, est)
	if err != nil {
		return nil, err
	}
	llft, err := hmmlib.Loglike(obs, truth)
	if err != nil {
		return nil, err
	}

	pstate, err := hmmlib.ReconstructStates(obs, est)
	if err != nil {
		return nil, err
	}
	nerr, n, err := hmmlib.CompareStates(pstate, state)
	if err != nil {
		return nil, err
	}
	var serr float64
	if n > 0 {
		serr = float64(nerr) / float64(n)
	}

	cvllf, cvllft := math.NaN(), math.NaN()
	if cfg.Folds > 0 {
		results, err := xval.CrossValidate(hmm, obs, truth, &xval.Options{
			Folds:    cfg.Folds,
			Restarts: cfg.Restarts,
			Seed:     seed,
			Fit:      cfg.FitOptions(),
			Workers:  1,
		})
		if err != nil {
			return nil, err
		}
		cvllf, cvllft = xval.Summary(results)
	}

	return []string{
		strconv.Itoa(rep),
		res.Status.String(),
		strconv.Itoa(res.Iterations),
		ftoa(llf),
		ftoa(llft),
		ftoa(res.AIC()),
		ftoa(maxAbsDiff(est.Trans, truth.Trans)),
		ftoa(maxAbsDiff(est.Emit, truth.Emit)),
		ftoa(serr),
		ftoa(cvllf),
		ftoa(cvllft),
	}, nil
}

func run(cmd *cobra.Command, _ []string) error {

	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.NRep < 1 {
		return errors.Wrapf(hmmlib.ErrBadConfig, "nrep=%d", cfg.NRep)
	}

	logcfg, err := cfg.LogConfig()
	if err != nil {
		return err
	}
	logger, err := hmmlog.New("simstudy", logcfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	hmm, err := hmmlib.New(cfg.ModelConfig(), hmmlib.WithLogger(logger.Desugar().Named("em").Sugar()))
	if err != nil {
		return err
	}

	fid, err := os.Create(cfg.OutName)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	defer fid.Close()

	w := csv.NewWriter(fid)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	bar := progressbar.Default(int64(cfg.NRep), "replications")
	for rep := 0; rep < cfg.NRep; rep++ {
		rec, err := replicate(hmm, cfg, rep)
		if err != nil {
			return errors.Wrapf(err, "replication %d", rep)
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrap(err, "writing record")
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "writing csv")
	}
	logger.Infof("Wrote %d replications to %s", cfg.NRep, cfg.OutName)

	return fid.Close()
}
