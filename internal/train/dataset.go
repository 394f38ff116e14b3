// Package train fits a variant QC classifier on an extracted feature table.
package train

import (
	"github.com/inodb/variantqc/internal/features"
)

// FeatureColumns are the model inputs, in matrix column order.
var FeatureColumns = []string{"QUAL", "DP", "MQ", "QD", "FS", "SOR", "ReadPosRankSum", "MQRankSum"}

// Label returns 1 if the row passed all filters, else 0.
// The comparison is exact: "pass" or "PASS;q10" are labelled 0.
func Label(r *features.Row) int {
	if r.IsPass() {
		return 1
	}
	return 0
}

// Labels returns the label of every row.
func Labels(rows []features.Row) []int {
	y := make([]int, len(rows))
	for i := range rows {
		y[i] = Label(&rows[i])
	}
	return y
}

// Matrix returns the FeatureColumns of every row, with NaN for absent values.
func Matrix(rows []features.Row) [][]float64 {
	x := make([][]float64, len(rows))
	for i := range rows {
		x[i] = make([]float64, len(FeatureColumns))
		for j, col := range FeatureColumns {
			v, _ := rows[i].Numeric(col)
			x[i][j] = v.OrNaN()
		}
	}
	return x
}

// subset selects rows of x and y by index.
func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}
