// Package ensemble implements tree ensembles in the style of
// scikit-learn's sklearn.ensemble.
package ensemble

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/core/model"
	"github.com/YuminosukeSato/tabforest/core/parallel"
	scierrors "github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
	"github.com/YuminosukeSato/tabforest/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of decision trees
// grown on bootstrap samples with random feature subsets.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	nJobs           int
	randomState     uint64

	// Fitted attributes
	estimators_         []*tree.DecisionTreeClassifier
	classes_            []float64
	nFeatures_          int
	featureImportances_ []float64
}

var (
	_ model.Classifier         = (*RandomForestClassifier)(nil)
	_ model.FeatureImportancer = (*RandomForestClassifier)(nil)
	_ model.ParameterGetter    = (*RandomForestClassifier)(nil)
	_ model.ParameterSetter    = (*RandomForestClassifier)(nil)
)

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestClassifier) { f.nEstimators = n }
}

// WithRandomState seeds the forest. The same seed gives the same forest
// regardless of WithNJobs.
func WithRandomState(seed uint64) Option {
	return func(f *RandomForestClassifier) { f.randomState = seed }
}

// WithCriterion sets the tree impurity measure, "gini" or "entropy".
func WithCriterion(criterion string) Option {
	return func(f *RandomForestClassifier) { f.criterion = criterion }
}

// WithMaxDepth limits tree depth. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestClassifier) { f.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestClassifier) { f.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestClassifier) { f.minSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature budget: "sqrt", "log2" or "all".
func WithMaxFeatures(mode string) Option {
	return func(f *RandomForestClassifier) { f.maxFeatures = mode }
}

// WithBootstrap toggles bootstrap sampling. Without it every tree sees all rows.
func WithBootstrap(bootstrap bool) Option {
	return func(f *RandomForestClassifier) { f.bootstrap = bootstrap }
}

// WithNJobs sets the number of worker goroutines. n <= 0 uses every CPU.
func WithNJobs(n int) Option {
	return func(f *RandomForestClassifier) { f.nJobs = n }
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults:
// 100 trees, gini, max_features="sqrt", bootstrap.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	f := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		nJobs:           -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RandomForestClassifier) validateParams() error {
	if f.nEstimators < 1 {
		return scierrors.NewValidationError("n_estimators", "must be >= 1", f.nEstimators)
	}
	if _, err := resolveMaxFeatures(f.maxFeatures, 1); err != nil {
		return err
	}
	return nil
}

// resolveMaxFeatures turns the max_features mode into a per-split count.
// 0 means every feature.
func resolveMaxFeatures(mode string, nFeatures int) (int, error) {
	switch mode {
	case "sqrt":
		return max(1, int(math.Sqrt(float64(nFeatures)))), nil
	case "log2":
		return max(1, int(math.Log2(float64(nFeatures)))), nil
	case "all", "":
		return 0, nil
	default:
		return 0, scierrors.NewValidationError("max_features", "must be 'sqrt', 'log2' or 'all'", mode)
	}
}

// Fit grows the forest on X (n_samples x n_features) and y (n_samples x 1).
func (f *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	start := time.Now()
	if err := f.validateParams(); err != nil {
		return err
	}

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return scierrors.NewModelError("RandomForestClassifier.Fit", "empty data", scierrors.ErrEmptyData)
	}
	if rows != yRows {
		return scierrors.NewDimensionError("RandomForestClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return scierrors.NewDimensionError("RandomForestClassifier.Fit", 1, yCols, 1)
	}

	classes, codes, err := encodeClasses(y, rows)
	if err != nil {
		return err
	}
	maxFeatures, _ := resolveMaxFeatures(f.maxFeatures, cols)

	// Seeds are drawn before the fan-out so the result does not depend on scheduling.
	rng := rand.New(rand.NewPCG(f.randomState, f.randomState))
	sampleSeeds := make([]uint64, f.nEstimators)
	treeSeeds := make([]uint64, f.nEstimators)
	for i := range sampleSeeds {
		sampleSeeds[i] = rng.Uint64()
		treeSeeds[i] = rng.Uint64()
	}

	estimators := make([]*tree.DecisionTreeClassifier, f.nEstimators)
	errs := make([]error, f.nEstimators)
	parallel.ParallelizeWorkers(f.nEstimators, f.nJobs, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			errs[i] = scierrors.SafeExecute(fmt.Sprintf("RandomForestClassifier.Fit tree %d", i), func() error {
				sample := f.drawSample(rows, sampleSeeds[i])
				t := tree.NewDecisionTreeClassifier(
					tree.WithCriterion(f.criterion),
					tree.WithMaxDepth(f.maxDepth),
					tree.WithMinSamplesSplit(f.minSamplesSplit),
					tree.WithMinSamplesLeaf(f.minSamplesLeaf),
					tree.WithMaxFeatures(maxFeatures),
					tree.WithRandomState(treeSeeds[i]),
					tree.WithNClasses(len(classes)),
				)
				if err := t.FitSample(X, codes, sample); err != nil {
					return err
				}
				estimators[i] = t
				return nil
			})
		}
	})
	for _, err := range errs {
		if err != nil {
			return scierrors.NewModelError("RandomForestClassifier.Fit", "tree fitting failed", err)
		}
	}

	importances := make([]float64, cols)
	for _, t := range estimators {
		for j, v := range t.GetFeatureImportances() {
			importances[j] += v
		}
	}
	normalize(importances)

	f.estimators_ = estimators
	f.classes_ = classes
	f.nFeatures_ = cols
	f.featureImportances_ = importances
	if f.state == nil {
		f.state = model.NewStateManager()
	}
	f.state.SetDimensions(cols, rows)
	f.state.SetFitted()

	log.GetLoggerWithName("ensemble").Info("Random forest fitted",
		log.ModelNameKey, "RandomForestClassifier",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(classes),
		log.TreesKey, f.nEstimators,
		log.RandomSeedKey, f.randomState,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// drawSample returns the row indices a tree is fitted on.
func (f *RandomForestClassifier) drawSample(rows int, seed uint64) []int {
	sample := make([]int, rows)
	if !f.bootstrap {
		for i := range sample {
			sample[i] = i
		}
		return sample
	}
	r := rand.New(rand.NewPCG(seed, seed))
	for i := range sample {
		sample[i] = r.IntN(rows)
	}
	return sample
}

// encodeClasses maps y to codes 0..k-1 over its sorted distinct values.
func encodeClasses(y mat.Matrix, rows int) ([]float64, *mat.VecDense, error) {
	seen := make(map[float64]struct{})
	var classes []float64
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, scierrors.NewValueError("RandomForestClassifier.Fit", "y contains NaN or infinity")
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)

	index := make(map[float64]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	codes := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		codes.SetVec(i, float64(index[y.At(i, 0)]))
	}
	return classes, codes, nil
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

func (f *RandomForestClassifier) checkPredict(X mat.Matrix, method string) error {
	if f.state == nil {
		return scierrors.NewNotFittedError("RandomForestClassifier", method)
	}
	if err := f.state.RequireFitted("RandomForestClassifier", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	if cols != f.nFeatures_ {
		return scierrors.NewDimensionError("RandomForestClassifier."+method, f.nFeatures_, cols, 1)
	}
	return nil
}

// PredictProba returns the mean of the trees' class probabilities as an
// n_samples x n_classes matrix.
func (f *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := f.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	perTree := make([]mat.Matrix, len(f.estimators_))
	errs := make([]error, len(f.estimators_))
	parallel.ParallelizeWorkers(len(f.estimators_), f.nJobs, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			perTree[i], errs[i] = f.estimators_[i].PredictProba(X)
		}
	})

	rows, _ := X.Dims()
	sum := mat.NewDense(rows, len(f.classes_), nil)
	for i, p := range perTree {
		if errs[i] != nil {
			return nil, errs[i]
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(perTree)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability for each
// sample as an n_samples x 1 matrix. Ties go to the lowest class.
func (f *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}

	rows, k := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, f.classes_[best])
	}
	return out, nil
}

// Score returns the mean accuracy on X and y. It returns 0 if prediction fails.
func (f *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := f.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	if rows == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// Classes returns the class labels in the order of the PredictProba columns.
func (f *RandomForestClassifier) Classes() []float64 {
	return append([]float64(nil), f.classes_...)
}

// GetFeatureImportances returns the mean of the trees' importances, renormalized.
func (f *RandomForestClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), f.featureImportances_...)
}

// NEstimators returns the configured number of trees.
func (f *RandomForestClassifier) NEstimators() int {
	return f.nEstimators
}

// Estimators returns the fitted trees.
func (f *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return f.estimators_
}

// IsFitted reports whether Fit has completed.
func (f *RandomForestClassifier) IsFitted() bool {
	return f.state != nil && f.state.IsFitted()
}

// GetParams returns the hyperparameters.
func (f *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"criterion":         f.criterion,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures,
		"bootstrap":         f.bootstrap,
		"n_jobs":            f.nJobs,
		"random_state":      f.randomState,
	}
}

// SetParams updates hyperparameters by name. Numbers may be int or float64.
func (f *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion", "max_features":
			s, ok := value.(string)
			if !ok {
				return scierrors.NewValidationError(key, "must be a string", value)
			}
			if key == "criterion" {
				f.criterion = s
			} else {
				f.maxFeatures = s
			}
		case "bootstrap":
			b, ok := value.(bool)
			if !ok {
				return scierrors.NewValidationError(key, "must be a bool", value)
			}
			f.bootstrap = b
		case "n_estimators", "max_depth", "min_samples_split", "min_samples_leaf", "n_jobs", "random_state":
			n, err := tree.ToInt(key, value)
			if err != nil {
				return err
			}
			switch key {
			case "n_estimators":
				f.nEstimators = n
			case "max_depth":
				f.maxDepth = n
			case "min_samples_split":
				f.minSamplesSplit = n
			case "min_samples_leaf":
				f.minSamplesLeaf = n
			case "n_jobs":
				f.nJobs = n
			case "random_state":
				f.randomState = uint64(n)
			}
		default:
			return scierrors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return f.validateParams()
}

// forestSnapshot is the gob form of a RandomForestClassifier.
type forestSnapshot struct {
	State           model.ModelState
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	NJobs           int
	RandomState     uint64
	Trees           []*tree.DecisionTreeClassifier
	Classes         []float64
	NFeatures       int
	Importances     []float64
}

// GobEncode implements gob.GobEncoder.
func (f *RandomForestClassifier) GobEncode() ([]byte, error) {
	var state model.ModelState
	if f.state != nil {
		state = f.state.GetState()
	}
	snap := forestSnapshot{
		State:           state,
		NEstimators:     f.nEstimators,
		Criterion:       f.criterion,
		MaxDepth:        f.maxDepth,
		MinSamplesSplit: f.minSamplesSplit,
		MinSamplesLeaf:  f.minSamplesLeaf,
		MaxFeatures:     f.maxFeatures,
		Bootstrap:       f.bootstrap,
		NJobs:           f.nJobs,
		RandomState:     f.randomState,
		Trees:           f.estimators_,
		Classes:         f.classes_,
		NFeatures:       f.nFeatures_,
		Importances:     f.featureImportances_,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, scierrors.Wrap(err, "encode RandomForestClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (f *RandomForestClassifier) GobDecode(data []byte) error {
	var snap forestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return scierrors.Wrap(err, "decode RandomForestClassifier")
	}
	if f.state == nil {
		f.state = model.NewStateManager()
	}
	f.state.SetState(snap.State)
	f.nEstimators = snap.NEstimators
	f.criterion = snap.Criterion
	f.maxDepth = snap.MaxDepth
	f.minSamplesSplit = snap.MinSamplesSplit
	f.minSamplesLeaf = snap.MinSamplesLeaf
	f.maxFeatures = snap.MaxFeatures
	f.bootstrap = snap.Bootstrap
	f.nJobs = snap.NJobs
	f.randomState = snap.RandomState
	f.estimators_ = snap.Trees
	f.classes_ = snap.Classes
	f.nFeatures_ = snap.NFeatures
	f.featureImportances_ = snap.Importances
	return nil
}
