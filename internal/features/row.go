// Package features extracts per-variant annotation features from VCF records.
package features

import (
	"math"
	"strconv"
	"strings"
)

// PassFilter is the FILTER value of a variant that passed all filters.
const PassFilter = "PASS"

// Columns is the feature table layout, in output order.
var Columns = []string{
	"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER",
	"DP", "MQ", "QD", "FS", "SOR", "ReadPosRankSum", "MQRankSum",
}

// AnnotationKeys are the INFO keys copied into each row.
var AnnotationKeys = []string{"DP", "MQ", "QD", "FS", "SOR", "ReadPosRankSum", "MQRankSum"}

// Value is an optional numeric cell. Integer cells keep their exact value
// in N; Float holds the same value as a float64 for model input.
type Value struct {
	Float   float64
	N       int64
	Integer bool // render without a fractional part
	Valid   bool
}

// Float returns a present floating-point value.
func Float(f float64) Value {
	return Value{Float: f, Valid: true}
}

// Int returns a present integer value.
func Int(n int64) Value {
	return Value{Float: float64(n), N: n, Integer: true, Valid: true}
}

// OrNaN returns the value, or NaN when absent.
func (v Value) OrNaN() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float
}

// String formats the value for the feature table. Absent values are empty.
// Floats always carry a decimal point so "50" and "50.0" stay distinguishable.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	if v.Integer {
		return strconv.FormatInt(v.N, 10)
	}
	switch {
	case math.IsNaN(v.Float):
		return "nan"
	case math.IsInf(v.Float, 1):
		return "inf"
	case math.IsInf(v.Float, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v.Float, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Row is one line of the feature table.
type Row struct {
	Chrom          string
	Pos            int64
	ID             string // empty when the record has no identifier
	Ref            string
	Alt            string // first alternate allele, empty when absent
	Qual           Value
	Filter         string
	DP             Value
	MQ             Value
	QD             Value
	FS             Value
	SOR            Value
	ReadPosRankSum Value
	MQRankSum      Value
}

// Annotation returns the annotation value for one of AnnotationKeys.
func (r *Row) Annotation(key string) (Value, bool) {
	switch key {
	case "DP":
		return r.DP, true
	case "MQ":
		return r.MQ, true
	case "QD":
		return r.QD, true
	case "FS":
		return r.FS, true
	case "SOR":
		return r.SOR, true
	case "ReadPosRankSum":
		return r.ReadPosRankSum, true
	case "MQRankSum":
		return r.MQRankSum, true
	}
	return Value{}, false
}

// Numeric returns a numeric column by name (QUAL or an annotation key).
func (r *Row) Numeric(column string) (Value, bool) {
	if column == "QUAL" {
		return r.Qual, true
	}
	return r.Annotation(column)
}

// setAnnotation stores an annotation value by key.
func (r *Row) setAnnotation(key string, v Value) {
	switch key {
	case "DP":
		r.DP = v
	case "MQ":
		r.MQ = v
	case "QD":
		r.QD = v
	case "FS":
		r.FS = v
	case "SOR":
		r.SOR = v
	case "ReadPosRankSum":
		r.ReadPosRankSum = v
	case "MQRankSum":
		r.MQRankSum = v
	}
}

// Record returns the row's cells in Columns order.
func (r *Row) Record() []string {
	return []string{
		r.Chrom,
		strconv.FormatInt(r.Pos, 10),
		r.ID,
		r.Ref,
		r.Alt,
		r.Qual.String(),
		r.Filter,
		r.DP.String(),
		r.MQ.String(),
		r.QD.String(),
		r.FS.String(),
		r.SOR.String(),
		r.ReadPosRankSum.String(),
		r.MQRankSum.String(),
	}
}

// IsPass reports whether the row's FILTER is exactly PASS.
func (r *Row) IsPass() bool {
	return r.Filter == PassFilter
}
