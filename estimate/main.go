// Estimate the parameters of a categorical hidden Markov model from a
// dataset written by generate, using EM from several random starting
// values.
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kshedden/cathmm/config"
	"github.com/kshedden/cathmm/hmmlib"
	"github.com/kshedden/cathmm/hmmlog"
	"github.com/kshedden/cathmm/xval"
)

func main() {

	cmd := &cobra.Command{
		Use:           "estimate",
		Short:         "Fit a categorical HMM to a simulated dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.Flags().String("gobfile", "", "The data file")
	cmd.Flags().Uint64("seed", 1, "Random seed for the starting values")
	cmd.Flags().String("config", "", "Configuration file")
	config.AddFitFlags(cmd.Flags())
	config.AddLogFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		logger, _ := hmmlog.New("estimate", nil)
		logger.Errorf("%+v", err)
		os.Exit(1)
	}
}

// report logs the number of misclassified states.
func report(logger *zap.SugaredLogger, pstate, state []int) error {

	q, n, err := hmmlib.CompareStates(pstate, state)
	if err != nil {
		return err
	}
	logger.Infof("%d/%d reconstruction errors", q, n)

	return nil
}

func run(cmd *cobra.Command, _ []string) error {

	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	if cfg.GobFile == "" {
		return errors.New("'gobfile' is a required argument")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logcfg, err := cfg.LogConfig()
	if err != nil {
		return err
	}
	logger, err := hmmlog.New("estimate", logcfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ds, err := hmmlib.ReadDataset(cfg.GobFile)
	if err != nil {
		return err
	}
	logger.Infof("Read dataset %s: %d time points, %d states, %d symbols",
		ds.ID, len(ds.Obs), ds.Config.NState, ds.Config.NSymbol)

	hmm, err := hmmlib.New(ds.Config, hmmlib.WithLogger(logger))
	if err != nil {
		return err
	}

	parlog, err := os.Create(cfg.LogName + "_par.log")
	if err != nil {
		return errors.Wrap(err, "creating parameter log")
	}
	defer parlog.Close()

	// Align the true parameters so that they can be compared to the
	// estimates.
	var truth *hmmlib.Params
	var state []int
	if ds.Truth != nil {
		var order []int
		if truth, order, err = ds.Truth.Permute(nil); err != nil {
			return err
		}
		if err := hmmlib.WriteSummary(parlog, truth, "True parameters:", nil, nil); err != nil {
			return err
		}
		if ds.State != nil {
			state = hmmlib.PermutePath(ds.State, order)
			oracle, err := hmmlib.OracleParams(ds.Obs, state, hmm.NState, hmm.NSymbol)
			if err != nil {
				return err
			}
			if err := hmmlib.WriteSummary(parlog, oracle, "Oracle parameters:", nil, nil); err != nil {
				return err
			}
		}
	}

	starts, err := hmmlib.RandomStarts(cfg.Restarts, hmm.NState, hmm.NSymbol, cfg.Seed, nil)
	if err != nil {
		return err
	}

	opts := cfg.FitOptions()
	bar := progressbar.Default(int64(cfg.Restarts), "restarts")
	opts.Progress = func() { _ = bar.Add(1) }

	fits, err := hmm.FitRestarts([][]int{ds.Obs}, starts, opts)
	if err != nil {
		return err
	}
	_ = bar.Finish()

	best := hmmlib.FindBestFit(hmmlib.LLFTable(fits))
	res := fits[best]
	logger.Infof("Selected restart %d: %s after %d iterations", best, res.Status, res.Iterations)

	est, _, err := res.Params.Permute(nil)
	if err != nil {
		return err
	}
	res.Params = est

	if err := hmmlib.WriteSummary(parlog, est, "Estimated parameters:", nil, nil); err != nil {
		return err
	}

	// Standard errors are reported when the information matrix can be
	// inverted.
	pv, err := hmmlib.Variance(ds.Obs, est)
	switch {
	case errors.Is(err, hmmlib.ErrSingular):
		logger.Warnf("No standard errors: %v", err)
	case err != nil:
		return err
	default:
		if err := hmmlib.WriteStdErrors(parlog, pv, "Estimated standard errors:"); err != nil {
			return err
		}
	}

	llf, err := hmmlib.Loglike(ds.Obs, est)
	if err != nil {
		return err
	}
	logger.Infof("Final log-likelihood: %f", llf)
	logger.Infof("Final AIC: %f", res.AIC())
	if truth != nil {
		llft, err := hmmlib.Loglike(ds.Obs, truth)
		if err != nil {
			return err
		}
		logger.Infof("Log-likelihood at the true parameters: %f", llft)
	}

	if state != nil {
		pstate, err := hmmlib.ReconstructStates(ds.Obs, est)
		if err != nil {
			return err
		}
		if err := report(logger, pstate, state); err != nil {
			return err
		}
	}

	if err := hmmlib.WriteFit(cfg.LogName+"_fit.gob.gz", res); err != nil {
		return err
	}

	if cfg.Folds == 0 {
		return nil
	}

	xopts := &xval.Options{
		Folds:    cfg.Folds,
		Restarts: cfg.Restarts,
		Seed:     cfg.Seed,
		Fit:      cfg.FitOptions(),
		Workers:  cfg.Workers,
	}
	results, err := xval.CrossValidate(hmm, ds.Obs, truth, xopts)
	if err != nil {
		return err
	}
	testLLF, testLLFTrue := xval.Summary(results)
	logger.Infof("Cross-validated log-likelihood: %f (true parameters %f)", testLLF, testLLFTrue)

	return nil
}
