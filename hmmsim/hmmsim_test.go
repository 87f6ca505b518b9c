package hmmsim

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kshedden/cathmm/hmmlib"
)

func truth(t *testing.T) *hmmlib.Params {

	p, err := hmmlib.NewParams(
		[][]float64{{0.95, 0.05}, {0.1, 0.9}},
		[][]float64{{0.8, 0.2}, {0.25, 0.75}},
		nil,
	)
	require.NoError(t, err)

	return p
}

func TestGenerateDataDeterministic(t *testing.T) {

	p := truth(t)

	y1, z1, err := GenerateData(p, 500, rand.NewPCG(1, 2))
	require.NoError(t, err)
	y2, z2, err := GenerateData(p, 500, rand.NewPCG(1, 2))
	require.NoError(t, err)
	y3, _, err := GenerateData(p, 500, rand.NewPCG(1, 3))
	require.NoError(t, err)

	assert.Equal(t, y1, y2)
	assert.Equal(t, z1, z2)
	assert.NotEqual(t, y1, y3)
	assert.Len(t, y1, 500)
	assert.Len(t, z1, 500)
}

func TestGenerateDataLengths(t *testing.T) {

	p := truth(t)

	y, z, err := GenerateData(p, 0, rand.NewPCG(1, 1))
	require.NoError(t, err)
	assert.Empty(t, y)
	assert.Empty(t, z)

	_, _, err = GenerateData(p, -1, rand.NewPCG(1, 1))
	require.ErrorIs(t, err, hmmlib.ErrBadConfig)

	_, _, err = GenerateData(nil, 10, rand.NewPCG(1, 1))
	require.ErrorIs(t, err, hmmlib.ErrBadShape)
}

func TestGenerateDataFrequencies(t *testing.T) {

	p := truth(t)
	n := 100000
	y, z, err := GenerateData(p, n, rand.NewPCG(5, 6))
	require.NoError(t, err)

	// The empirical transition and emission frequencies are the oracle
	// estimates.
	est, err := hmmlib.OracleParams(y, z, 2, 2)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		assert.InDeltaSlice(t, p.Trans.Row(i), est.Trans.Row(i), 0.01)
		assert.InDeltaSlice(t, p.Emit.Row(i), est.Emit.Row(i), 0.01)
	}

	// The stationary distribution is (2/3, 1/3)
	var n0 int
	for _, st := range z {
		if st == 0 {
			n0++
		}
	}
	assert.InDelta(t, 2.0/3, float64(n0)/float64(n), 0.02)
}

func TestTruthBeatsRandom(t *testing.T) {

	p := truth(t)
	y, _, err := GenerateData(p, 5000, rand.NewPCG(8, 9))
	require.NoError(t, err)

	llt, err := hmmlib.Loglike(y, p)
	require.NoError(t, err)

	starts, err := hmmlib.RandomStarts(10, 2, 2, 3, &hmmlib.SampleOptions{Method: hmmlib.SampleUniform})
	require.NoError(t, err)
	for _, st := range starts {
		ll, err := hmmlib.Loglike(y, st)
		require.NoError(t, err)
		assert.Less(t, ll, llt)
	}
}
