// Package tree implements a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/core/model"
	scierrors "github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
)

// featureThreshold is the minimum gap between two values for a split to be
// placed between them.
const featureThreshold = 1e-7

// leaf marks a node without children.
const leaf = -1

// Node is one node of a fitted tree, stored in a flat slice.
// Samples with X[Feature] <= Threshold go Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64 // class proportions of the training samples in the node
	NSamples  int
	Impurity  float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == leaf
}

// DecisionTreeClassifier is a CART classifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means all features
	randomState     uint64
	nClassesHint    int

	// Fitted attributes
	nodes               []Node
	classes_            []float64
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	depth               int
	nLeaves             int
}

var (
	_ model.Classifier         = (*DecisionTreeClassifier)(nil)
	_ model.FeatureImportancer = (*DecisionTreeClassifier)(nil)
	_ model.ParameterGetter    = (*DecisionTreeClassifier)(nil)
	_ model.ParameterSetter    = (*DecisionTreeClassifier)(nil)
)

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure, "gini" or "entropy".
func WithCriterion(criterion string) Option {
	return func(t *DecisionTreeClassifier) { t.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeClassifier) { t.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many non-constant features are examined per split.
// 0 examines all of them.
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeClassifier) { t.maxFeatures = n }
}

// WithRandomState seeds the feature permutation used at each split.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeClassifier) { t.randomState = seed }
}

// WithNClasses fixes the class set to the integer codes 0..n-1, so that
// trees fitted on a subsample of the data agree on the probability columns.
func WithNClasses(n int) Option {
	return func(t *DecisionTreeClassifier) { t.nClassesHint = n }
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults:
// gini, unlimited depth, min_samples_split=2, min_samples_leaf=1.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	t := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeClassifier) validateParams() error {
	if t.criterion != "gini" && t.criterion != "entropy" {
		return scierrors.NewValidationError("criterion", "must be 'gini' or 'entropy'", t.criterion)
	}
	if t.maxDepth < 0 {
		return scierrors.NewValidationError("max_depth", "must be >= 0", t.maxDepth)
	}
	if t.minSamplesSplit < 2 {
		return scierrors.NewValidationError("min_samples_split", "must be >= 2", t.minSamplesSplit)
	}
	if t.minSamplesLeaf < 1 {
		return scierrors.NewValidationError("min_samples_leaf", "must be >= 1", t.minSamplesLeaf)
	}
	if t.maxFeatures < 0 {
		return scierrors.NewValidationError("max_features", "must be >= 0", t.maxFeatures)
	}
	return nil
}

// Fit builds the tree from X (n_samples x n_features) and y (n_samples x 1).
func (t *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	rows, _ := X.Dims()
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	return t.FitSample(X, y, idx)
}

// FitSample builds the tree from the rows of X listed in sample. Rows may
// repeat, which is how bootstrap samples are passed in.
func (t *DecisionTreeClassifier) FitSample(X, y mat.Matrix, sample []int) error {
	if err := t.validateParams(); err != nil {
		return err
	}

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 || len(sample) == 0 {
		return scierrors.NewModelError("DecisionTreeClassifier.Fit", "empty data", scierrors.ErrEmptyData)
	}
	if rows != yRows {
		return scierrors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return scierrors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}
	if err := scierrors.CheckMatrix("DecisionTreeClassifier.Fit", X, rows, cols); err != nil {
		return err
	}
	for _, s := range sample {
		if s < 0 || s >= rows {
			return scierrors.NewValueError("DecisionTreeClassifier.Fit",
				fmt.Sprintf("sample index %d out of range [0, %d)", s, rows))
		}
	}

	labels, err := t.encodeLabels(y, rows)
	if err != nil {
		return err
	}

	colData := make([][]float64, cols)
	for j := range colData {
		colData[j] = mat.Col(nil, j, X)
	}

	if t.state == nil {
		t.state = model.NewStateManager()
	}
	t.state.Reset()
	t.nodes = t.nodes[:0]
	t.nFeatures_ = cols
	t.featureImportances_ = make([]float64, cols)
	t.depth = 0
	t.nLeaves = 0

	b := &builder{
		tree:   t,
		cols:   colData,
		labels: labels,
		rng:    rand.New(rand.NewPCG(t.randomState, t.randomState)),
		buf:    make([]int, len(sample)),
	}
	root := append([]int(nil), sample...)
	b.build(root, 0)

	normalize(t.featureImportances_)

	t.state.SetDimensions(cols, len(sample))
	t.state.SetFitted()

	log.GetLoggerWithName("tree").Debug("Decision tree fitted",
		log.ModelNameKey, "DecisionTreeClassifier",
		log.SamplesKey, len(sample),
		log.FeaturesKey, cols,
		"depth", t.depth,
		"leaves", t.nLeaves)
	return nil
}

// encodeLabels maps y to class indices and fills classes_.
func (t *DecisionTreeClassifier) encodeLabels(y mat.Matrix, rows int) ([]int, error) {
	labels := make([]int, rows)

	if t.nClassesHint > 0 {
		t.nClasses_ = t.nClassesHint
		t.classes_ = make([]float64, t.nClassesHint)
		for k := range t.classes_ {
			t.classes_[k] = float64(k)
		}
		for i := 0; i < rows; i++ {
			v := y.At(i, 0)
			k := int(v)
			if float64(k) != v || k < 0 || k >= t.nClassesHint {
				return nil, scierrors.NewValueError("DecisionTreeClassifier.Fit",
					fmt.Sprintf("label %v is not a class code in [0, %d)", v, t.nClassesHint))
			}
			labels[i] = k
		}
		return labels, nil
	}

	seen := make(map[float64]struct{})
	var classes []float64
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, scierrors.NewValueError("DecisionTreeClassifier.Fit", "y contains NaN or infinity")
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
	for i := 0; i < rows; i++ {
		labels[i] = index[y.At(i, 0)]
	}

	t.classes_ = classes
	t.nClasses_ = len(classes)
	return labels, nil
}

// builder grows a tree depth-first.
type builder struct {
	tree   *DecisionTreeClassifier
	cols   [][]float64
	labels []int
	rng    *rand.Rand
	buf    []int
}

type split struct {
	found       bool
	feature     int
	threshold   float64
	improvement float64
}

func (b *builder) build(idx []int, depth int) int {
	t := b.tree
	counts := make([]float64, t.nClasses_)
	for _, i := range idx {
		counts[b.labels[i]]++
	}
	n := len(idx)
	impurity := t.impurity(counts, float64(n))

	value := make([]float64, len(counts))
	for k, c := range counts {
		value[k] = c / float64(n)
	}

	id := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Feature:  leaf,
		Left:     leaf,
		Right:    leaf,
		Value:    value,
		NSamples: n,
		Impurity: impurity,
	})

	isLeaf := (t.maxDepth > 0 && depth >= t.maxDepth) ||
		n < t.minSamplesSplit ||
		n < 2*t.minSamplesLeaf ||
		impurity <= 0

	var best split
	if !isLeaf {
		best = b.bestSplit(idx, counts, impurity)
	}
	if !best.found {
		t.nLeaves++
		if depth > t.depth {
			t.depth = depth
		}
		return id
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	col := b.cols[best.feature]
	for _, i := range idx {
		if col[i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftID := b.build(left, depth+1)
	rightID := b.build(right, depth+1)

	lImp := t.nodes[leftID].Impurity
	rImp := t.nodes[rightID].Impurity
	t.featureImportances_[best.feature] += float64(n)*impurity -
		float64(len(left))*lImp - float64(len(right))*rImp

	node := &t.nodes[id]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = leftID
	node.Right = rightID
	return id
}

// bestSplit visits features in a random order and stops once maxFeatures
// non-constant features have been evaluated.
func (b *builder) bestSplit(idx []int, parentCounts []float64, parentImpurity float64) split {
	t := b.tree
	nFeatures := len(b.cols)
	features := make([]int, nFeatures)
	for j := range features {
		features[j] = j
	}
	if t.maxFeatures > 0 && t.maxFeatures < nFeatures {
		b.rng.Shuffle(nFeatures, func(i, j int) {
			features[i], features[j] = features[j], features[i]
		})
	}
	limit := nFeatures
	if t.maxFeatures > 0 && t.maxFeatures < nFeatures {
		limit = t.maxFeatures
	}

	n := len(idx)
	fn := float64(n)
	sorted := b.buf[:n]
	leftCounts := make([]float64, len(parentCounts))
	rightCounts := make([]float64, len(parentCounts))

	best := split{improvement: math.Inf(-1)}
	visited := 0
	for _, f := range features {
		if visited >= limit {
			break
		}
		col := b.cols[f]
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return col[sorted[a]] < col[sorted[c]] })
		if col[sorted[n-1]] <= col[sorted[0]]+featureThreshold {
			continue // constant in this node
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		copy(rightCounts, parentCounts)

		for i := 0; i < n-1; i++ {
			c := b.labels[sorted[i]]
			leftCounts[c]++
			rightCounts[c]--

			nL := i + 1
			nR := n - nL
			if col[sorted[i+1]] <= col[sorted[i]]+featureThreshold {
				continue
			}
			if nL < t.minSamplesLeaf || nR < t.minSamplesLeaf {
				continue
			}

			fl, fr := float64(nL), float64(nR)
			improvement := parentImpurity -
				fl/fn*t.impurity(leftCounts, fl) -
				fr/fn*t.impurity(rightCounts, fr)
			if improvement > best.improvement {
				lo, hi := col[sorted[i]], col[sorted[i+1]]
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{found: true, feature: f, threshold: threshold, improvement: improvement}
			}
		}
	}
	return best
}

func (t *DecisionTreeClassifier) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	switch t.criterion {
	case "entropy":
		var h float64
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / n
			g -= p * p
		}
		return g
	}
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

func (t *DecisionTreeClassifier) apply(row []float64) *Node {
	node := &t.nodes[0]
	for !node.IsLeaf() {
		if row[node.Feature] <= node.Threshold {
			node = &t.nodes[node.Left]
		} else {
			node = &t.nodes[node.Right]
		}
	}
	return node
}

func (t *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := t.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	if cols != t.nFeatures_ {
		return scierrors.NewDimensionError("DecisionTreeClassifier."+method, t.nFeatures_, cols, 1)
	}
	return nil
}

// PredictProba returns the class proportions of the leaf each sample falls
// into, as an n_samples x n_classes matrix.
func (t *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := t.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}
	return t.predictProba(X), nil
}

func (t *DecisionTreeClassifier) predictProba(X mat.Matrix) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, t.nClasses_, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, t.apply(row).Value)
	}
	return out
}

// Predict returns the most probable class for each sample as an
// n_samples x 1 matrix. Ties go to the lowest class.
func (t *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, t.classes_[argmax(t.apply(row).Value)])
	}
	return out, nil
}

// Score returns the mean accuracy on X and y. It returns 0 if prediction fails.
func (t *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := t.Predict(X)
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

func argmax(v []float64) int {
	best := 0
	for k := 1; k < len(v); k++ {
		if v[k] > v[best] {
			best = k
		}
	}
	return best
}

// Classes returns the class labels in the order of the PredictProba columns.
func (t *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), t.classes_...)
}

// GetFeatureImportances returns the normalized total impurity decrease
// contributed by each feature.
func (t *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), t.featureImportances_...)
}

// GetDepth returns the depth of the deepest leaf (root is depth 0).
func (t *DecisionTreeClassifier) GetDepth() int {
	return t.depth
}

// GetNLeaves returns the number of leaves.
func (t *DecisionTreeClassifier) GetNLeaves() int {
	return t.nLeaves
}

// Nodes returns the fitted nodes; the root is Nodes()[0].
func (t *DecisionTreeClassifier) Nodes() []Node {
	return t.nodes
}

// IsFitted reports whether Fit has completed.
func (t *DecisionTreeClassifier) IsFitted() bool {
	return t.state != nil && t.state.IsFitted()
}

// GetParams returns the hyperparameters.
func (t *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         t.criterion,
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"max_features":      t.maxFeatures,
		"random_state":      t.randomState,
	}
}

// SetParams updates hyperparameters by name. Numbers may be int or float64.
func (t *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := value.(string)
			if !ok {
				return scierrors.NewValidationError(key, "must be a string", value)
			}
			t.criterion = s
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			n, err := ToInt(key, value)
			if err != nil {
				return err
			}
			switch key {
			case "max_depth":
				t.maxDepth = n
			case "min_samples_split":
				t.minSamplesSplit = n
			case "min_samples_leaf":
				t.minSamplesLeaf = n
			case "max_features":
				t.maxFeatures = n
			}
		case "random_state":
			n, err := ToInt(key, value)
			if err != nil {
				return err
			}
			t.randomState = uint64(n)
		default:
			return scierrors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return t.validateParams()
}

// ToInt converts an integral parameter value given as any Go number.
func ToInt(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, scierrors.NewValidationError(name, "must be an integer", value)
		}
		return int(v), nil
	default:
		return 0, scierrors.NewValidationError(name, "must be an integer", value)
	}
}

// treeSnapshot is the gob form of a DecisionTreeClassifier.
type treeSnapshot struct {
	State           model.ModelState
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     uint64
	NClassesHint    int
	Nodes           []Node
	Classes         []float64
	NFeatures       int
	Importances     []float64
	Depth           int
	NLeaves         int
}

// GobEncode implements gob.GobEncoder.
func (t *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	snap := treeSnapshot{
		State:           t.state.GetState(),
		Criterion:       t.criterion,
		MaxDepth:        t.maxDepth,
		MinSamplesSplit: t.minSamplesSplit,
		MinSamplesLeaf:  t.minSamplesLeaf,
		MaxFeatures:     t.maxFeatures,
		RandomState:     t.randomState,
		NClassesHint:    t.nClassesHint,
		Nodes:           t.nodes,
		Classes:         t.classes_,
		NFeatures:       t.nFeatures_,
		Importances:     t.featureImportances_,
		Depth:           t.depth,
		NLeaves:         t.nLeaves,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, scierrors.Wrap(err, "encode DecisionTreeClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (t *DecisionTreeClassifier) GobDecode(data []byte) error {
	var snap treeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return scierrors.Wrap(err, "decode DecisionTreeClassifier")
	}
	if t.state == nil {
		t.state = model.NewStateManager()
	}
	t.state.SetState(snap.State)
	t.criterion = snap.Criterion
	t.maxDepth = snap.MaxDepth
	t.minSamplesSplit = snap.MinSamplesSplit
	t.minSamplesLeaf = snap.MinSamplesLeaf
	t.maxFeatures = snap.MaxFeatures
	t.randomState = snap.RandomState
	t.nClassesHint = snap.NClassesHint
	t.nodes = snap.Nodes
	t.classes_ = snap.Classes
	t.nClasses_ = len(snap.Classes)
	t.nFeatures_ = snap.NFeatures
	t.featureImportances_ = snap.Importances
	t.depth = snap.Depth
	t.nLeaves = snap.NLeaves
	return nil
}
