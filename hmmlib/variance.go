package hmmlib

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// ParamVariance holds the large sample covariance of the free transition
// and emission parameters.  Each row of a stochastic matrix has one entry
// fewer free parameters than columns, the last entry of every row being one
// minus the sum of the others.  The free parameters are ordered as the
// transition rows followed by the emission rows, row-major within each.
type ParamVariance struct {

	// Covariance of the free parameters, the inverse of the observed
	// information.
	Cov *mat.Dense

	// Standard errors, TransSE is NState x (NState-1) and EmitSE is
	// NState x (NSymbol-1).
	TransSE [][]float64
	EmitSE  [][]float64
}

// Variance estimates the covariance of the parameter estimates p, fit to y,
// from the numerically differentiated Hessian of the log-likelihood.  The
// initial state distribution is treated as known.  Standard errors of
// estimates on the boundary of the parameter space are NaN.
func Variance(y []int, p *Params) (*ParamVariance, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkObs(y, p.NSymbol()); err != nil {
		return nil, err
	}

	k, c := p.NState(), p.NSymbol()
	ntrans := k * (k - 1)
	x := make([]float64, 0, ntrans+k*(c-1))
	x = appendFree(x, p.Trans)
	x = appendFree(x, p.Emit)

	pv := &ParamVariance{
		TransSE: makeFloatArray(k, k-1),
		EmitSE:  makeFloatArray(k, c-1),
	}
	if len(x) == 0 {
		return pv, nil
	}

	init := p.InitOrUniform()
	negllf := func(x []float64) float64 {
		trans := fromFree(x[0:ntrans], k, k)
		emit := fromFree(x[ntrans:], k, c)
		alpha := makeFloatArray(len(y), k)
		scale := make([]float64, len(y))
		return -forward(y, trans, emitColumns(emit, nil), init, alpha, scale)
	}

	n := len(x)
	hess := mat.NewSymDense(n, nil)
	fd.Hessian(hess, negllf, x, &fd.Settings{Formula: fd.Central, Concurrent: true})

	var cov mat.Dense
	if err := cov.Inverse(hess); err != nil {
		return nil, errors.Wrap(ErrSingular, err.Error())
	}
	pv.Cov = &cov

	for i := 0; i < n; i++ {
		// NaN if the information is not positive definite
		se := math.Sqrt(cov.At(i, i))
		if i < ntrans {
			pv.TransSE[i/(k-1)][i%(k-1)] = se
		} else {
			j := i - ntrans
			pv.EmitSE[j/(c-1)][j%(c-1)] = se
		}
	}

	return pv, nil
}

// appendFree appends all but the last entry of each row of tab to x.
func appendFree(x []float64, tab *Table) []float64 {

	r, _ := tab.Dims()
	for i := 0; i < r; i++ {
		row := tab.row(i)
		x = append(x, row[0:len(row)-1]...)
	}

	return x
}

// fromFree builds a rows x cols matrix from its free parameters.  The result
// is not checked, entries may fall outside [0, 1] when differentiating at the
// boundary.
func fromFree(x []float64, rows, cols int) *Table {

	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		row := x[i*(cols-1) : (i+1)*(cols-1)]
		last := 1.0
		for _, v := range row {
			last -= v
		}
		data = append(data, row...)
		data = append(data, last)
	}

	return &Table{m: mat.NewDense(rows, cols, data)}
}
