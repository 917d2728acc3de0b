// Package pipeline wires the CSV dataset, the preprocessing estimators and
// the random forest into the load, preprocess, train, evaluate, save flow.
package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/dataset"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
	"github.com/YuminosukeSato/tabforest/preprocessing"
	"github.com/YuminosukeSato/tabforest/sklearn/model_selection"
)

// Defaults of PreprocessConfig.
const (
	DefaultMaxRows             = 5000
	DefaultRandomState         = 42
	DefaultTestSize            = 0.2
	DefaultMaxCategories       = 10
	DefaultMaxNumericFeatures  = 5
	DefaultMaxExtraCategorical = 2
)

// MissingLabel is the label given to rows whose target cell is missing.
const MissingLabel = "nan"

// PreprocessConfig controls row capping, column selection and splitting.
type PreprocessConfig struct {
	MaxRows             int
	RandomState         uint64
	TestSize            float64
	MaxCategories       int
	MaxNumericFeatures  int
	MaxExtraCategorical int
	// Target overrides the heuristic target column when non-empty.
	Target string
}

// DefaultPreprocessConfig returns the fixed configuration used by the CLI.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		MaxRows:             DefaultMaxRows,
		RandomState:         DefaultRandomState,
		TestSize:            DefaultTestSize,
		MaxCategories:       DefaultMaxCategories,
		MaxNumericFeatures:  DefaultMaxNumericFeatures,
		MaxExtraCategorical: DefaultMaxExtraCategorical,
	}
}

// WithDefaults fills every zero field of c from DefaultPreprocessConfig.
// Negative MaxRows, MaxCategories and feature counts mean no limit. A zero
// RandomState is kept as a valid seed unless c is entirely zero.
func (c PreprocessConfig) WithDefaults() PreprocessConfig {
	d := DefaultPreprocessConfig()
	if c == (PreprocessConfig{}) {
		return d
	}
	if c.MaxRows == 0 {
		c.MaxRows = d.MaxRows
	}
	if c.TestSize == 0 {
		c.TestSize = d.TestSize
	}
	if c.MaxCategories == 0 {
		c.MaxCategories = d.MaxCategories
	}
	if c.MaxNumericFeatures == 0 {
		c.MaxNumericFeatures = d.MaxNumericFeatures
	}
	if c.MaxExtraCategorical == 0 {
		c.MaxExtraCategorical = d.MaxExtraCategorical
	}
	return c
}

// Prepared is the output of Preprocess.
type Prepared struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.VecDense

	Scaler       *preprocessing.StandardScaler
	LabelEncoder *preprocessing.LabelEncoder
	Schema       *FeatureSchema

	// Frame is the (possibly sampled) frame the matrices were built from;
	// TrainIndex and TestIndex are row positions in it.
	Frame      *dataset.Frame
	TrainIndex []int
	TestIndex  []int
}

// Preprocess caps the rows, selects target and features, encodes and splits
// the frame, and scales the features with statistics of the training split.
func Preprocess(frame *dataset.Frame, cfg PreprocessConfig) (*Prepared, error) {
	logger := log.GetLoggerWithName("pipeline").With(log.PhaseKey, log.PhasePreprocessing)

	if frame == nil || frame.NRows() == 0 {
		return nil, errors.NewModelError("Preprocess", "empty data", errors.ErrEmptyData)
	}
	if cfg.MaxRows > 0 && frame.NRows() > cfg.MaxRows {
		logger.Info("Limiting dataset rows",
			log.SamplesKey, frame.NRows(),
			"data.max_rows", cfg.MaxRows,
		)
		frame = frame.Sample(cfg.MaxRows, cfg.RandomState)
	}

	target, features, err := selectColumns(frame, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Columns selected",
		log.TargetKey, target,
		"data.text_columns", len(frame.CategoricalColumns()),
		"data.numeric_columns", len(frame.NumericColumns()),
		"data.feature_columns", features,
	)

	// Target
	targetCol := frame.Column(target)
	if targetCol.Kind != dataset.Categorical {
		errors.Warn(errors.NewDataConversionWarning(targetCol.Kind.String(), "string",
			fmt.Sprintf("target column %q is not categorical; its text is label encoded", target)))
	}
	labels := targetLabels(targetCol)
	le := preprocessing.NewLabelEncoder()
	codes, err := le.FitTransform(labels)
	if err != nil {
		return nil, errors.Wrap(err, "encode target")
	}

	// Features
	schema := &FeatureSchema{Target: target}
	for _, name := range features {
		col := frame.Column(name)
		spec := FeatureSpec{Column: name, Kind: col.Kind.String()}
		if col.Kind != dataset.Numeric {
			spec.Encoder = preprocessing.NewOneHotEncoder(name, cfg.MaxCategories)
			if err := spec.Encoder.Fit(categoryValues(col, spec.Kind), col.Missing); err != nil {
				return nil, errors.Wrapf(err, "fit encoder for %q", name)
			}
		}
		schema.Features = append(schema.Features, spec)
	}
	schema.FeatureNames = schema.names()
	if len(schema.FeatureNames) == 0 {
		return nil, errors.NewValueError("Preprocess", "no feature columns")
	}

	X, err := schema.Transform(frame)
	if err != nil {
		return nil, err
	}

	split, err := model_selection.ShuffleSplitIndices(frame.NRows(), cfg.TestSize, cfg.RandomState)
	if err != nil {
		return nil, err
	}

	y := mat.NewVecDense(len(codes), nil)
	for i, c := range codes {
		y.SetVec(i, float64(c))
	}

	scaler := preprocessing.NewStandardScalerDefault()
	xTrain, err := scaler.FitTransform(model_selection.TakeRows(X, split.TrainIndices))
	if err != nil {
		return nil, errors.Wrap(err, "scale training features")
	}
	xTest, err := scaler.Transform(model_selection.TakeRows(X, split.TestIndices))
	if err != nil {
		return nil, errors.Wrap(err, "scale test features")
	}

	logger.Info("Preprocessing completed",
		log.OperationKey, log.OperationFitTransform,
		log.FeaturesKey, len(schema.FeatureNames),
		log.ClassesKey, le.NClasses(),
		"data.n_train", len(split.TrainIndices),
		"data.n_test", len(split.TestIndices),
	)

	return &Prepared{
		XTrain:       mat.DenseCopyOf(xTrain),
		XTest:        mat.DenseCopyOf(xTest),
		YTrain:       model_selection.TakeVec(y, split.TrainIndices),
		YTest:        model_selection.TakeVec(y, split.TestIndices),
		Scaler:       scaler,
		LabelEncoder: le,
		Schema:       schema,
		Frame:        frame,
		TrainIndex:   split.TrainIndices,
		TestIndex:    split.TestIndices,
	}, nil
}

// selectColumns picks the target and the feature columns.
//
// With categorical columns present the target is the first of them and the
// features are the next MaxExtraCategorical categorical columns followed by
// the first MaxNumericFeatures numeric columns. Otherwise the target is the
// first column and the features are the next MaxNumericFeatures columns.
func selectColumns(frame *dataset.Frame, cfg PreprocessConfig) (string, []string, error) {
	text := frame.CategoricalColumns()
	num := frame.NumericColumns()

	target := cfg.Target
	switch {
	case target != "":
		if frame.Column(target) == nil {
			return "", nil, errors.NewValueError("Preprocess",
				fmt.Sprintf("target column %q not found", target))
		}
	case len(text) > 0:
		target = text[0]
	default:
		target = frame.Names()[0]
	}

	var features []string
	if len(text) > 0 {
		features = append(features, head(without(text, target), cfg.MaxExtraCategorical)...)
		features = append(features, head(without(num, target), cfg.MaxNumericFeatures)...)
	} else {
		features = head(without(frame.Names(), target), cfg.MaxNumericFeatures)
	}
	if len(features) == 0 {
		return "", nil, errors.NewValueError("Preprocess", "no feature columns")
	}
	return target, features, nil
}

func targetLabels(col *dataset.Column) []string {
	labels := make([]string, col.Len())
	for i, v := range col.Raw {
		if col.Missing[i] {
			labels[i] = MissingLabel
			continue
		}
		labels[i] = v
	}
	return labels
}

func without(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}

func head(names []string, n int) []string {
	if n >= 0 && len(names) > n {
		return names[:n]
	}
	return names
}
