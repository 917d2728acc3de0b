package preprocessing

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/core/model"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

// OtherCategory collects rare, missing and unseen values of a categorical column.
const OtherCategory = "Other"

// OneHotEncoder encodes a single categorical column into indicator columns.
//
// Fit keeps the MaxCategories most frequent values (ties by first appearance)
// and maps everything else to OtherCategory. The resulting categories are
// sorted and, with DropFirst, the first one is represented by all zeros.
type OneHotEncoder struct {
	State *model.StateManager `json:"state"`

	Column        string `json:"column"`
	MaxCategories int    `json:"max_categories"`
	DropFirst     bool   `json:"drop_first"`

	// Kept は頻度上位のカテゴリ（頻度順）
	Kept []string `json:"kept"`

	// Categories は集約後のカテゴリ（辞書順）
	Categories []string `json:"categories"`
}

// NewOneHotEncoder creates an encoder for column keeping at most maxCategories
// distinct values. maxCategories <= 0 keeps all of them.
func NewOneHotEncoder(column string, maxCategories int) *OneHotEncoder {
	return &OneHotEncoder{
		State:         model.NewStateManager(),
		Column:        column,
		MaxCategories: maxCategories,
		DropFirst:     true,
	}
}

// TopCategories returns the k most frequent non-missing values, most frequent
// first. Equal counts keep the order of first appearance.
func TopCategories(values []string, missing []bool, k int) []string {
	counts := make(map[string]int)
	var order []string
	for i, v := range values {
		if isMissingAt(missing, i) {
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if k > 0 && len(order) > k {
		order = order[:k]
	}
	return order
}

// Fit learns the kept categories from values. missing may be nil.
func (e *OneHotEncoder) Fit(values []string, missing []bool) error {
	if len(values) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if missing != nil && len(missing) != len(values) {
		return errors.NewDimensionError("OneHotEncoder.Fit", len(values), len(missing), 0)
	}
	if e.State == nil {
		e.State = model.NewStateManager()
	}

	e.Kept = TopCategories(values, missing, e.MaxCategories)

	collapsed := e.collapse(values, missing)
	seen := make(map[string]struct{})
	var cats []string
	for _, v := range collapsed {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			cats = append(cats, v)
		}
	}
	sort.Strings(cats)
	e.Categories = cats

	e.State.SetDimensions(len(e.FeatureNames()), len(values))
	e.State.SetFitted()
	return nil
}

// Collapse maps each value to itself when kept and to OtherCategory otherwise.
func (e *OneHotEncoder) Collapse(values []string, missing []bool) ([]string, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Collapse"); err != nil {
		return nil, err
	}
	return e.collapse(values, missing), nil
}

func (e *OneHotEncoder) collapse(values []string, missing []bool) []string {
	kept := make(map[string]struct{}, len(e.Kept))
	for _, k := range e.Kept {
		kept[k] = struct{}{}
	}
	out := make([]string, len(values))
	for i, v := range values {
		if _, ok := kept[v]; ok && !isMissingAt(missing, i) {
			out[i] = v
			continue
		}
		out[i] = OtherCategory
	}
	return out
}

// Transform returns an n x len(FeatureNames()) indicator matrix.
// A category absent from the fitted set encodes as all zeros. The matrix is
// nil when there are no rows or no output columns.
func (e *OneHotEncoder) Transform(values []string, missing []bool) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if missing != nil && len(missing) != len(values) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(values), len(missing), 0)
	}

	outputs := e.outputCategories()
	if len(values) == 0 || len(outputs) == 0 {
		return nil, nil
	}
	col := make(map[string]int, len(outputs))
	for j, c := range outputs {
		col[c] = j
	}

	out := mat.NewDense(len(values), len(outputs), nil)
	for i, v := range e.collapse(values, missing) {
		if j, ok := col[v]; ok {
			out.Set(i, j, 1)
		}
	}
	return out, nil
}

// CountUnknown returns how many values fall outside the fitted categories.
// Without an OtherCategory, unseen and missing values count here and encode
// like the dropped first category.
func (e *OneHotEncoder) CountUnknown(values []string, missing []bool) int {
	known := make(map[string]struct{}, len(e.Categories))
	for _, c := range e.Categories {
		known[c] = struct{}{}
	}
	n := 0
	for _, v := range e.collapse(values, missing) {
		if _, ok := known[v]; !ok {
			n++
		}
	}
	return n
}

// FitTransform はFitとTransformを同時に実行する
func (e *OneHotEncoder) FitTransform(values []string, missing []bool) (*mat.Dense, error) {
	if err := e.Fit(values, missing); err != nil {
		return nil, err
	}
	return e.Transform(values, missing)
}

// FeatureNames returns "<column>_<category>" for each output column.
func (e *OneHotEncoder) FeatureNames() []string {
	outputs := e.outputCategories()
	names := make([]string, len(outputs))
	for i, c := range outputs {
		names[i] = e.Column + "_" + c
	}
	return names
}

func (e *OneHotEncoder) outputCategories() []string {
	if e.DropFirst && len(e.Categories) > 0 {
		return e.Categories[1:]
	}
	return e.Categories
}

func isMissingAt(missing []bool, i int) bool {
	return missing != nil && missing[i]
}
