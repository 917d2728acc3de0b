package pipeline

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/dataset"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
	"github.com/YuminosukeSato/tabforest/preprocessing"
)

// FeatureSpec describes how one input column becomes feature columns.
// Categorical and boolean columns carry a fitted one-hot encoder; numeric
// columns pass through.
type FeatureSpec struct {
	Column  string                       `json:"column"`
	Kind    string                       `json:"kind"`
	Encoder *preprocessing.OneHotEncoder `json:"encoder,omitempty"`
}

// Width returns the number of matrix columns this feature expands to.
func (s FeatureSpec) Width() int {
	if s.Encoder != nil {
		return len(s.Encoder.FeatureNames())
	}
	return 1
}

// FeatureSchema records the target and the ordered feature columns so that
// the feature matrix can be rebuilt from a new frame.
type FeatureSchema struct {
	Target       string        `json:"target"`
	Features     []FeatureSpec `json:"features"`
	FeatureNames []string      `json:"feature_names"`
}

func (s *FeatureSchema) names() []string {
	var names []string
	for _, f := range s.Features {
		if f.Encoder != nil {
			names = append(names, f.Encoder.FeatureNames()...)
			continue
		}
		names = append(names, f.Column)
	}
	return names
}

// NFeatures returns the width of the feature matrix.
func (s *FeatureSchema) NFeatures() int {
	n := 0
	for _, f := range s.Features {
		n += f.Width()
	}
	return n
}

// Transform builds the unscaled feature matrix for frame. Categories unseen
// during fitting fall into the "Other" bucket and missing numbers become 0.
// A column fitted without "Other" encodes unseen values as its reference
// category; Transform logs a warning with their count.
func (s *FeatureSchema) Transform(frame *dataset.Frame) (*mat.Dense, error) {
	rows := frame.NRows()
	if rows == 0 {
		return nil, errors.NewModelError("FeatureSchema.Transform", "empty data", errors.ErrEmptyData)
	}
	width := s.NFeatures()
	if width == 0 {
		return nil, errors.NewValueError("FeatureSchema.Transform", "no feature columns")
	}

	X := mat.NewDense(rows, width, nil)
	offset := 0
	for _, f := range s.Features {
		col := frame.Column(f.Column)
		if col == nil {
			return nil, errors.NewValueError("FeatureSchema.Transform",
				fmt.Sprintf("missing feature column %q", f.Column))
		}

		if f.Encoder == nil {
			if col.Kind == dataset.Categorical {
				return nil, errors.NewValueError("FeatureSchema.Transform",
					fmt.Sprintf("column %q is categorical, expected numeric", f.Column))
			}
			for i, v := range col.Values {
				if math.IsNaN(v) {
					v = 0
				}
				X.Set(i, offset, v)
			}
			offset++
			continue
		}

		values := categoryValues(col, f.Kind)
		enc, err := f.Encoder.Transform(values, col.Missing)
		if err != nil {
			return nil, errors.Wrapf(err, "encode column %q", f.Column)
		}
		if n := f.Encoder.CountUnknown(values, col.Missing); n > 0 {
			log.GetLoggerWithName("pipeline").Warn("Unseen categories encoded as reference category",
				log.OperationKey, log.OperationTransform,
				log.ColumnKey, f.Column,
				log.UnseenKey, n,
				log.SamplesKey, rows,
			)
		}
		if enc != nil {
			_, w := enc.Dims()
			X.Slice(0, rows, offset, offset+w).(*mat.Dense).Copy(enc)
			offset += w
		}
	}
	return X, nil
}

// categoryValues returns the cells of col as category strings. Boolean
// columns are lower-cased so that "True" and "true" are one category.
func categoryValues(col *dataset.Column, kind string) []string {
	if kind != dataset.Boolean.String() {
		return col.Raw
	}
	out := make([]string, len(col.Raw))
	for i, v := range col.Raw {
		out[i] = strings.ToLower(v)
	}
	return out
}
