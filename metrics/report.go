package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	scierrors "github.com/YuminosukeSato/tabforest/pkg/errors"
)

// ClassScores holds the metrics of one row of a classification report.
type ClassScores struct {
	Label     int     `json:"label"`
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// ClassificationReport mirrors sklearn.metrics.classification_report.
type ClassificationReport struct {
	Classes     []ClassScores `json:"classes"`
	Accuracy    float64       `json:"accuracy"`
	MacroAvg    ClassScores   `json:"macro_avg"`
	WeightedAvg ClassScores   `json:"weighted_avg"`
	Total       int           `json:"total"`
}

// NewClassificationReport builds a report over the union of labels in yTrue
// and yPred. names maps a label to its display name; nil prints the label.
func NewClassificationReport(yTrue, yPred *mat.VecDense, names func(int) string) (*ClassificationReport, error) {
	labels := UniqueLabels(yTrue, yPred)
	precision, recall, f1, support, err := PrecisionRecallFScoreSupport(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	accuracy, err := AccuracyScore(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = func(l int) string { return fmt.Sprint(l) }
	}

	r := &ClassificationReport{Accuracy: accuracy, Total: yTrue.Len()}
	r.MacroAvg = ClassScores{Label: -1, Name: "macro avg", Support: r.Total}
	r.WeightedAvg = ClassScores{Label: -1, Name: "weighted avg", Support: r.Total}

	k := float64(len(labels))
	total := float64(r.Total)
	for i, l := range labels {
		r.Classes = append(r.Classes, ClassScores{
			Label:     l,
			Name:      names(l),
			Precision: precision[i],
			Recall:    recall[i],
			F1:        f1[i],
			Support:   support[i],
		})

		r.MacroAvg.Precision += precision[i] / k
		r.MacroAvg.Recall += recall[i] / k
		r.MacroAvg.F1 += f1[i] / k

		w := scierrors.SafeDivide(float64(support[i]), total)
		r.WeightedAvg.Precision += precision[i] * w
		r.WeightedAvg.Recall += recall[i] * w
		r.WeightedAvg.F1 += f1[i] * w
	}
	return r, nil
}

// String renders the report as scikit-learn's text table with two decimals.
func (r *ClassificationReport) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		if len(c.Name) > width {
			width = len(c.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(c ClassScores) {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	for _, c := range r.Classes {
		row(c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	row(r.MacroAvg)
	row(r.WeightedAvg)
	return b.String()
}
