package hmmlib

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// StochasticTol is the allowed deviation of a row sum from 1.
const StochasticTol = 1e-8

// Table is an immutable row-stochastic matrix.  Every entry is in [0, 1]
// and every row sums to 1.  Tables hold the transition matrix (NState x
// NState) and the emission matrix (NState x NSymbol).
type Table struct {
	m *mat.Dense
}

// NewTable returns a Table with the given shape, holding a copy of data in
// row-major order.  An error is returned if data is not row-stochastic.
func NewTable(rows, cols int, data []float64) (*Table, error) {

	if rows < 1 || cols < 1 {
		return nil, errors.Wrapf(ErrBadShape, "table shape %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, errors.Wrapf(ErrBadShape, "%d values for a %dx%d table", len(data), rows, cols)
	}

	x := make([]float64, len(data))
	copy(x, data)
	for i := 0; i < rows; i++ {
		if err := checkStochastic(x[i*cols : (i+1)*cols]); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
	}

	return &Table{m: mat.NewDense(rows, cols, x)}, nil
}

// NewTableFromRows returns a Table built from the given rows, which must
// all have the same length.
func NewTableFromRows(rows [][]float64) (*Table, error) {

	if len(rows) == 0 {
		return nil, errors.Wrap(ErrBadShape, "no rows")
	}

	ncol := len(rows[0])
	data := make([]float64, 0, len(rows)*ncol)
	for i, r := range rows {
		if len(r) != ncol {
			return nil, errors.Wrapf(ErrBadShape, "row %d has length %d, expected %d", i, len(r), ncol)
		}
		data = append(data, r...)
	}

	return NewTable(len(rows), ncol, data)
}

// Normalize scales each row of the non-negative matrix in data to sum to 1
// and returns the result as a Table.  Rows that sum to zero are an error.
func Normalize(rows, cols int, data []float64) (*Table, error) {

	if rows < 1 || cols < 1 || len(data) != rows*cols {
		return nil, errors.Wrapf(ErrBadShape, "%d values for a %dx%d table", len(data), rows, cols)
	}

	x := make([]float64, len(data))
	copy(x, data)
	for i := 0; i < rows; i++ {
		row := x[i*cols : (i+1)*cols]
		for _, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Wrapf(ErrNotStochastic, "row %d has invalid value %v", i, v)
			}
		}
		s := floats.Sum(row)
		if s <= 0 {
			return nil, errors.Wrapf(ErrNotStochastic, "row %d sums to zero", i)
		}
		floats.Scale(1/s, row)
	}

	return &Table{m: mat.NewDense(rows, cols, x)}, nil
}

// ValidateVector returns an error unless v is a probability vector of
// length n.
func ValidateVector(v []float64, n int) error {

	if len(v) != n {
		return errors.Wrapf(ErrDimMismatch, "vector has length %d, expected %d", len(v), n)
	}

	return checkStochastic(v)
}

func checkStochastic(x []float64) error {

	for _, v := range x {
		if v < 0 || v > 1+StochasticTol || math.IsNaN(v) {
			return errors.Wrapf(ErrNotStochastic, "invalid probability %v", v)
		}
	}

	if s := floats.Sum(x); math.Abs(s-1) > StochasticTol {
		return errors.Wrapf(ErrNotStochastic, "sums to %v", s)
	}

	return nil
}

// Dims returns the number of rows and columns.
func (tab *Table) Dims() (int, int) {
	return tab.m.Dims()
}

// At returns the value in row i and column j.
func (tab *Table) At(i, j int) float64 {
	return tab.m.At(i, j)
}

// Row returns a copy of row i.
func (tab *Table) Row(i int) []float64 {
	r := tab.m.RawRowView(i)
	x := make([]float64, len(r))
	copy(x, r)
	return x
}

// Rows returns a copy of the table as a slice of rows.
func (tab *Table) Rows() [][]float64 {

	r, c := tab.m.Dims()
	x := makeFloatArray(r, c)
	for i := range x {
		copy(x[i], tab.m.RawRowView(i))
	}

	return x
}

// Dense returns a copy of the table as a gonum matrix.
func (tab *Table) Dense() *mat.Dense {
	return mat.DenseCopyOf(tab.m)
}

// Clone returns a deep copy of the table.
func (tab *Table) Clone() *Table {
	return &Table{m: mat.DenseCopyOf(tab.m)}
}

// row returns a view of row i, which must not be modified.
func (tab *Table) row(i int) []float64 {
	return tab.m.RawRowView(i)
}

// MarshalBinary encodes the table using the gonum binary matrix format.
func (tab *Table) MarshalBinary() ([]byte, error) {
	return tab.m.MarshalBinary()
}

// UnmarshalBinary decodes a table written by MarshalBinary.  The decoded
// values are validated.
func (tab *Table) UnmarshalBinary(data []byte) error {

	var m mat.Dense
	if err := m.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "decoding table")
	}

	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		if err := checkStochastic(m.RawRowView(i)); err != nil {
			return errors.Wrapf(err, "row %d", i)
		}
	}

	tab.m = &m
	return nil
}

// renormalize returns a Table whose rows are the rows of x scaled to sum to
// 1.  This absorbs floating point drift after an M-step.  A row with no mass
// keeps the corresponding row of prev.
func renormalize(rows, cols int, x []float64, prev *Table) *Table {

	for i := 0; i < rows; i++ {
		row := x[i*cols : (i+1)*cols]
		s := floats.Sum(row)
		if !(s > 0) || math.IsInf(s, 0) {
			copy(row, prev.row(i))
			continue
		}
		floats.Scale(1/s, row)
	}

	return &Table{m: mat.NewDense(rows, cols, x)}
}
