package hmmlib

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// WriteSummary writes the parameters as text tables to w.  The optional
// state and symbol labels are used if provided.
func WriteSummary(w io.Writer, p *Params, title string, stateLabels, symbolLabels []string) error {

	var buf bytes.Buffer

	buf.WriteString(title)
	buf.WriteString("\n")

	buf.WriteString("Initial states distribution:\n")
	writeMatrix(&buf, p.InitOrUniform(), p.NState(), 1, stateLabels, nil)
	buf.WriteString("\n")

	buf.WriteString("Transition matrix:\n")
	writeMatrix(&buf, flatten(p.Trans), p.NState(), p.NState(), stateLabels, stateLabels)
	buf.WriteString("\n")

	buf.WriteString("Emission probabilities:\n")
	writeMatrix(&buf, flatten(p.Emit), p.NState(), p.NSymbol(), stateLabels, symbolLabels)
	buf.WriteString("\n")

	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "writing summary")
}

// WriteStdErrors writes the standard errors in pv as text tables to w.  The
// last column of each matrix is determined by the others and is omitted.
func WriteStdErrors(w io.Writer, pv *ParamVariance, title string) error {

	var buf bytes.Buffer

	buf.WriteString(title)
	buf.WriteString("\n")

	k := len(pv.TransSE)
	buf.WriteString("Transition matrix standard errors:\n")
	writeMatrix(&buf, flattenRows(pv.TransSE), k, k-1, nil, nil)
	buf.WriteString("\n")

	if k > 0 {
		c := len(pv.EmitSE[0])
		buf.WriteString("Emission probability standard errors:\n")
		writeMatrix(&buf, flattenRows(pv.EmitSE), k, c, nil, nil)
		buf.WriteString("\n")
	}

	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "writing standard errors")
}

// writeMatrix writes a matrix in text format.  Labels with the wrong
// length are ignored.
func writeMatrix(buf *bytes.Buffer, x []float64, nrow, ncol int, rowlabels, collabels []string) {

	if len(rowlabels) != nrow {
		rowlabels = nil
	}
	if len(collabels) != ncol {
		collabels = nil
	}

	if collabels != nil {
		if rowlabels != nil {
			fmt.Fprintf(buf, "%20s", "")
		}
		for _, c := range collabels {
			fmt.Fprintf(buf, "%20s", c)
		}
		buf.WriteString("\n")
	}

	for i := 0; i < nrow; i++ {
		if rowlabels != nil {
			fmt.Fprintf(buf, "%-20s", rowlabels[i])
		}
		for j := 0; j < ncol; j++ {
			fmt.Fprintf(buf, "%20.4f", x[i*ncol+j])
		}
		buf.WriteString("\n")
	}
}

func flatten(tab *Table) []float64 {

	r, c := tab.Dims()
	x := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		x = append(x, tab.row(i)...)
	}

	return x
}

func flattenRows(x [][]float64) []float64 {

	var y []float64
	for _, r := range x {
		y = append(y, r...)
	}

	return y
}
