package hmmlib

import (
	"math"
)

// FindBestFit returns the index of the row of llfs (one row per restart,
// one column per iteration) with the largest final log-likelihood.  The
// last finite value of each row is used, and a row with no finite values
// ranks below every row that has one.  Ties go to the lowest index.  If
// llfs is empty, -1 is returned.
func FindBestFit(llfs [][]float64) int {

	if len(llfs) == 0 {
		return -1
	}

	best := 0
	bestv := math.Inf(-1)
	found := false
	for i, row := range llfs {
		v, ok := lastFinite(row)
		if !ok {
			continue
		}
		if !found || v > bestv {
			best, bestv, found = i, v, true
		}
	}

	return best
}

// lastFinite returns the last finite value in x.
func lastFinite(x []float64) (float64, bool) {

	for i := len(x) - 1; i >= 0; i-- {
		if !math.IsNaN(x[i]) && !math.IsInf(x[i], 0) {
			return x[i], true
		}
	}

	return 0, false
}
