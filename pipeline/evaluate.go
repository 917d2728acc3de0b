package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/core/model"
	"github.com/YuminosukeSato/tabforest/metrics"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
	"github.com/YuminosukeSato/tabforest/sklearn/ensemble"
)

// FeatureImportance pairs a feature name with its forest importance.
type FeatureImportance struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// Evaluation holds the held-out metrics of a trained forest.
type Evaluation struct {
	Accuracy        float64
	Report          *metrics.ClassificationReport
	Labels          []int
	ConfusionMatrix *mat.Dense
	// Importances are sorted by decreasing importance.
	Importances []FeatureImportance
	Predictions *mat.VecDense
}

// Evaluate predicts the test split and scores the predictions.
func Evaluate(forest *ensemble.RandomForestClassifier, p *Prepared) (*Evaluation, error) {
	yPred, err := predictCodes(forest, p.XTest)
	if err != nil {
		return nil, errors.Wrap(err, "predict test split")
	}

	acc, err := metrics.AccuracyScore(p.YTest, yPred)
	if err != nil {
		return nil, err
	}
	report, err := metrics.NewClassificationReport(p.YTest, yPred, p.LabelEncoder.ClassName)
	if err != nil {
		return nil, err
	}
	labels := metrics.UniqueLabels(p.YTest, yPred)
	cm, err := metrics.ConfusionMatrix(p.YTest, yPred, labels)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		Accuracy:        acc,
		Report:          report,
		Labels:          labels,
		ConfusionMatrix: cm,
		Importances:     rankImportances(p.Schema.FeatureNames, forest.GetFeatureImportances()),
		Predictions:     yPred,
	}

	log.GetLoggerWithName("pipeline").Info("Model evaluated",
		log.PhaseKey, log.PhaseEvaluation,
		log.OperationKey, log.OperationScore,
		log.AccuracyKey, acc,
		log.SamplesKey, yPred.Len(),
	)
	return ev, nil
}

// predictCodes returns the label codes predicted by m as a vector.
func predictCodes(m model.Predictor, X mat.Matrix) (*mat.VecDense, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	rows, _ := pred.Dims()
	return mat.NewVecDense(rows, mat.Col(nil, 0, pred)), nil
}

func rankImportances(names []string, importances []float64) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(importances))
	for i, v := range importances {
		name := fmt.Sprintf("x%d", i)
		if i < len(names) {
			name = names[i]
		}
		out = append(out, FeatureImportance{Name: name, Importance: v})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Importance > out[b].Importance
	})
	return out
}

// String renders accuracy and the classification report the way the
// training command prints them.
func (e *Evaluation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy: %.4f\n", e.Accuracy)
	b.WriteString("Classification Report:\n")
	b.WriteString(e.Report.String())
	return b.String()
}
