package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kshedden/cathmm/hmmlib"
	"github.com/kshedden/cathmm/hmmlog"
)

func newCommand(args ...string) (*cobra.Command, error) {

	cmd := &cobra.Command{Use: "test"}
	AddModelFlags(cmd.Flags())
	AddFitFlags(cmd.Flags())
	AddLogFlags(cmd.Flags())
	cmd.Flags().String("gobfile", "", "")
	cmd.Flags().String("config", "", "")

	return cmd, cmd.Flags().Parse(args)
}

func TestDefaults(t *testing.T) {

	cmd, err := newCommand()
	require.NoError(t, err)

	s, err := Load(cmd)
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, 2, s.NState)
	assert.Equal(t, 250, s.MaxIter)
	assert.Equal(t, 1e-3, s.Tol)
	assert.Equal(t, 1.0, s.Temp)
	assert.False(t, s.FitInit)
	assert.Equal(t, 0, s.Folds)
	assert.Equal(t, uint64(1), s.Seed)

	fo := s.FitOptions()
	assert.Equal(t, 250, fo.MaxIter)
	assert.Equal(t, 1.0, fo.Temperature)
	assert.Equal(t, hmmlib.Config{NTime: 20000, NSymbol: 2, NState: 2}, s.ModelConfig())
}

func TestPrecedence(t *testing.T) {

	fname := filepath.Join(t.TempDir(), "cathmm.yaml")
	yaml := "restarts: 5\nmaxiter: 40\ntol: 0.5\nnsymbol: 7\n"
	require.NoError(t, os.WriteFile(fname, []byte(yaml), 0o600))

	t.Setenv("CATHMM_MAXITER", "60")

	cmd, err := newCommand("--config", fname, "--tol", "0.01", "--fitinit")
	require.NoError(t, err)

	s, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, 5, s.Restarts)
	assert.Equal(t, 60, s.MaxIter)
	assert.Equal(t, 0.01, s.Tol)
	assert.Equal(t, 7, s.NSymbol)
	assert.True(t, s.FitInit)
}

func TestMissingConfigFile(t *testing.T) {

	cmd, err := newCommand("--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	_, err = Load(cmd)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {

	for _, args := range [][]string{
		{"--restarts", "0"},
		{"--maxiter", "0"},
		{"--tol=NaN"},
		{"--temperature=0"},
		{"--temperature=-2"},
		{"--folds", "1"},
	} {
		cmd, err := newCommand(args...)
		require.NoError(t, err)
		s, err := Load(cmd)
		require.NoError(t, err)
		require.ErrorIs(t, s.Validate(), hmmlib.ErrBadConfig, args[0])
	}
}

func TestNegativeTol(t *testing.T) {

	// A negative tolerance is accepted and turns off early stopping
	cmd, err := newCommand("--tol=-1", "--maxiter", "3")
	require.NoError(t, err)
	s, err := Load(cmd)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Equal(t, -1.0, s.Tol)

	hmm, err := hmmlib.New(hmmlib.Config{NSymbol: 2, NState: 2})
	require.NoError(t, err)
	start, err := hmmlib.NewParams([][]float64{{0.8, 0.2}, {0.3, 0.7}}, [][]float64{{0.6, 0.4}, {0.2, 0.8}}, nil)
	require.NoError(t, err)
	res, err := hmm.Fit([]int{0, 0, 1, 1, 0, 1, 1, 1, 0, 0}, start, s.FitOptions())
	require.NoError(t, err)
	assert.Equal(t, hmmlib.MaxIterReached, res.Status)
	assert.Equal(t, 3, res.Iterations)
}

func TestLogConfig(t *testing.T) {

	cmd, err := newCommand("--logname", "run1", "--loglevel", "debug")
	require.NoError(t, err)
	s, err := Load(cmd)
	require.NoError(t, err)

	cfg, err := s.LogConfig()
	require.NoError(t, err)
	assert.Equal(t, "run1", cfg.LogPath)
	assert.Equal(t, hmmlog.LevelDebug, cfg.Level)

	s.LogLevel = "loud"
	_, err = s.LogConfig()
	require.Error(t, err)
}
