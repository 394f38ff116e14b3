package train

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC returns the area under the ROC curve of scores for binary labels.
// Both classes must be present.
func AUC(labels []int, scores []float64) (float64, error) {
	if len(labels) != len(scores) {
		return 0, fmt.Errorf("%d labels but %d scores", len(labels), len(scores))
	}

	y := slices.Clone(scores)
	classes := make([]bool, len(labels))
	pos := 0
	for i, label := range labels {
		classes[i] = label == 1
		pos += label
	}
	if pos == 0 || pos == len(labels) {
		return 0, fmt.Errorf("only one class present in labels; ROC AUC is not defined")
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// ClassMetrics holds precision, recall and F1 for one class or average.
type ClassMetrics struct {
	Name      string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a per-class classification report.
type Report struct {
	Classes     []ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Support     int
}

// ClassificationReport compares predicted with true binary labels.
// Undefined ratios (no predicted or no true members) are reported as 0.
func ClassificationReport(truth, pred []int) (Report, error) {
	if len(truth) != len(pred) {
		return Report{}, fmt.Errorf("%d labels but %d predictions", len(truth), len(pred))
	}
	if len(truth) == 0 {
		return Report{}, fmt.Errorf("no samples to evaluate")
	}

	var r Report
	r.Support = len(truth)
	correct := 0
	for i := range truth {
		if truth[i] == pred[i] {
			correct++
		}
	}
	r.Accuracy = float64(correct) / float64(len(truth))

	for _, class := range []int{0, 1} {
		tp, fp, fn := 0, 0, 0
		for i := range truth {
			switch {
			case pred[i] == class && truth[i] == class:
				tp++
			case pred[i] == class:
				fp++
			case truth[i] == class:
				fn++
			}
		}
		m := ClassMetrics{
			Name:      fmt.Sprint(class),
			Precision: ratio(tp, tp+fp),
			Recall:    ratio(tp, tp+fn),
			Support:   tp + fn,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, m)
	}

	r.MacroAvg = ClassMetrics{Name: "macro avg", Support: r.Support}
	r.WeightedAvg = ClassMetrics{Name: "weighted avg", Support: r.Support}
	for _, m := range r.Classes {
		k := float64(len(r.Classes))
		r.MacroAvg.Precision += m.Precision / k
		r.MacroAvg.Recall += m.Recall / k
		r.MacroAvg.F1 += m.F1 / k

		w := float64(m.Support) / float64(r.Support)
		r.WeightedAvg.Precision += m.Precision * w
		r.WeightedAvg.Recall += m.Recall * w
		r.WeightedAvg.F1 += m.F1 * w
	}

	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// String renders the report as an aligned text table.
func (r Report) String() string {
	width := len("weighted avg")

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(m ClassMetrics) {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, m.Name, m.Precision, m.Recall, m.F1, m.Support)
	}
	for _, m := range r.Classes {
		row(m)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Support)
	row(r.MacroAvg)
	row(r.WeightedAvg)
	return b.String()
}
