// Package config collects the settings of the command line programs from
// flags, environment variables and an optional configuration file.
package config

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kshedden/cathmm/hmmlib"
	"github.com/kshedden/cathmm/hmmlog"
)

// Settings holds every option used by the programs.  Each program only
// registers the flags it needs, the other fields keep their defaults.
type Settings struct {
	NState  int
	NSymbol int
	NTime   int
	Seed    uint64

	GobFile  string
	OutName  string
	LogName  string
	LogLevel string

	Restarts int
	MaxIter  int
	Tol      float64
	Temp     float64
	FitInit  bool
	Folds    int
	Workers  int
	NRep     int
}

// AddModelFlags registers the flags that describe the model size.
func AddModelFlags(fs *pflag.FlagSet) {
	fs.Int("nstate", 2, "Number of latent states")
	fs.Int("nsymbol", 2, "Number of observed symbols")
	fs.Int("ntime", 20000, "Number of time points")
	fs.Uint64("seed", 1, "Random seed")
}

// AddFitFlags registers the flags that control estimation.
func AddFitFlags(fs *pflag.FlagSet) {
	fs.Int("restarts", 2, "Number of random starting values")
	fs.Int("maxiter", 250, "Maximum number of EM iterations")
	fs.Float64("tol", 1e-3, "Convergence tolerance for the log-likelihood, negative to always run maxiter iterations")
	fs.Float64("temperature", 1, "Annealing temperature for the state posteriors")
	fs.Bool("fitinit", false, "Estimate the initial state distribution")
	fs.Int("folds", 0, "Number of cross-validation folds, 0 to skip")
	fs.Int("workers", 0, "Number of concurrent fits, 0 for GOMAXPROCS")
}

// AddLogFlags registers the logging flags.
func AddLogFlags(fs *pflag.FlagSet) {
	fs.String("logname", "hmm", "Prefix of log files")
	fs.String("loglevel", "info", "Log level")
}

// Load reads the settings for cmd.  Values are taken, in decreasing
// priority, from the command line, CATHMM_* environment variables, the
// file named by --config (or cathmm.yaml in the working directory) and the
// flag defaults.
func Load(cmd *cobra.Command) (*Settings, error) {

	v := viper.New()
	v.SetEnvPrefix("cathmm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}

	if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("cathmm")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "reading config file")
			}
		}
	}

	s := &Settings{
		NState:   v.GetInt("nstate"),
		NSymbol:  v.GetInt("nsymbol"),
		NTime:    v.GetInt("ntime"),
		Seed:     v.GetUint64("seed"),
		GobFile:  v.GetString("gobfile"),
		OutName:  v.GetString("outname"),
		LogName:  v.GetString("logname"),
		LogLevel: v.GetString("loglevel"),
		Restarts: v.GetInt("restarts"),
		MaxIter:  v.GetInt("maxiter"),
		Tol:      v.GetFloat64("tol"),
		Temp:     v.GetFloat64("temperature"),
		FitInit:  v.GetBool("fitinit"),
		Folds:    v.GetInt("folds"),
		Workers:  v.GetInt("workers"),
		NRep:     v.GetInt("nrep"),
	}

	return s, nil
}

// Validate checks the estimation settings.
func (s *Settings) Validate() error {

	switch {
	case s.Restarts < 1:
		return errors.Wrapf(hmmlib.ErrBadConfig, "restarts=%d", s.Restarts)
	case s.MaxIter < 1:
		return errors.Wrapf(hmmlib.ErrBadConfig, "maxiter=%d", s.MaxIter)
	case math.IsNaN(s.Tol):
		return errors.Wrapf(hmmlib.ErrBadConfig, "tol=%g", s.Tol)
	case !(s.Temp > 0) || math.IsInf(s.Temp, 1):
		return errors.Wrapf(hmmlib.ErrBadConfig, "temperature=%g", s.Temp)
	case s.Folds == 1 || s.Folds < 0:
		return errors.Wrapf(hmmlib.ErrBadConfig, "folds=%d", s.Folds)
	}

	return nil
}

// ModelConfig returns the model size settings.
func (s *Settings) ModelConfig() hmmlib.Config {
	return hmmlib.Config{
		NTime:   s.NTime,
		NSymbol: s.NSymbol,
		NState:  s.NState,
	}
}

// FitOptions returns the EM settings.
func (s *Settings) FitOptions() *hmmlib.FitOptions {
	return &hmmlib.FitOptions{
		MaxIter:     s.MaxIter,
		Tol:         s.Tol,
		Temperature: s.Temp,
		FitInit:     s.FitInit,
		Workers:     s.Workers,
	}
}

// LogConfig returns the logging settings.  Messages go to the console and
// to <logname>_msg.log.
func (s *Settings) LogConfig() (*hmmlog.Config, error) {

	cfg := hmmlog.DefaultConfig(false)
	cfg.LogPath = s.LogName

	lev, err := hmmlog.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = lev

	return cfg, nil
}
