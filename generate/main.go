// Simulate data from a categorical hidden Markov model with randomly
// drawn parameters, and save the dataset as a gzip-compressed gob file.
package main

import (
	"math/rand/v2"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kshedden/cathmm/config"
	"github.com/kshedden/cathmm/hmmlib"
	"github.com/kshedden/cathmm/hmmlog"
	"github.com/kshedden/cathmm/hmmsim"
)

func main() {

	cmd := &cobra.Command{
		Use:           "generate",
		Short:         "Simulate a categorical HMM dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	config.AddModelFlags(cmd.Flags())
	cmd.Flags().String("outname", "", "Output file name")
	cmd.Flags().String("config", "", "Configuration file")

	if err := cmd.Execute(); err != nil {
		logger, _ := hmmlog.New("generate", nil)
		logger.Errorf("%+v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {

	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	if cfg.OutName == "" {
		return errors.New("'outname' is a required argument")
	}

	logger, err := hmmlog.New("generate", nil)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	hmm, err := hmmlib.New(cfg.ModelConfig(), hmmlib.WithLogger(logger))
	if err != nil {
		return err
	}

	src := rand.NewPCG(cfg.Seed, 0)
	truth, err := hmmlib.GenerateParams(hmm.NState, hmm.NSymbol, src, nil)
	if err != nil {
		return err
	}

	obs, state, err := hmmsim.GenerateData(truth, hmm.NTime, src)
	if err != nil {
		return err
	}

	ds := &hmmlib.Dataset{
		ID:     uuid.New().String(),
		Config: hmm.Config,
		Truth:  truth,
		Obs:    obs,
		State:  state,
	}

	if err := hmmlib.WriteDataset(cfg.OutName, ds); err != nil {
		return err
	}
	logger.Infof("Wrote dataset %s with %d time points to %s", ds.ID, len(obs), cfg.OutName)

	return hmmlib.WriteSummary(os.Stdout, truth, "True parameters:", nil, nil)
}
