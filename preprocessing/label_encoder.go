package preprocessing

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/tabforest/core/model"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

// LabelEncoder はscikit-learn互換のラベルエンコーダー
// 文字列ラベルを 0..n_classes-1 の整数コードに変換する。
// クラスは辞書順に並べられる。
type LabelEncoder struct {
	State *model.StateManager

	// Classes は学習したクラスラベル（辞書順）
	Classes []string
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{State: model.NewStateManager()}
}

// IsFitted はエンコーダーが学習済みかどうかを返す
func (e *LabelEncoder) IsFitted() bool {
	return e.State != nil && e.State.IsFitted()
}

// NClasses はクラス数を返す
func (e *LabelEncoder) NClasses() int {
	return len(e.Classes)
}

// Fit はラベルの一覧からクラスを学習する
func (e *LabelEncoder) Fit(y []string) error {
	if len(y) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if e.State == nil {
		e.State = model.NewStateManager()
	}

	seen := make(map[string]struct{}, len(y))
	classes := make([]string, 0)
	for _, v := range y {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e.Classes = classes
	e.State.SetDimensions(1, len(y))
	e.State.SetFitted()
	return nil
}

// Transform はラベルを整数コードに変換する
// 学習時に存在しなかったラベルはValueErrorになる
func (e *LabelEncoder) Transform(y []string) ([]int, error) {
	if err := e.State.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}

	idx := e.lookup()
	codes := make([]int, len(y))
	var unseen []string
	for i, v := range y {
		code, ok := idx[v]
		if !ok {
			unseen = append(unseen, v)
			continue
		}
		codes[i] = code
	}
	if len(unseen) > 0 {
		return nil, errors.NewValueError("LabelEncoder.Transform",
			fmt.Sprintf("y contains previously unseen labels: %v", unseen))
	}
	return codes, nil
}

// FitTransform はFitとTransformを同時に実行する
func (e *LabelEncoder) FitTransform(y []string) ([]int, error) {
	if err := e.Fit(y); err != nil {
		return nil, err
	}
	return e.Transform(y)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if err := e.State.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}

	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d out of range [0, %d)", c, len(e.Classes)))
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}

// ClassName returns the label for code, or the code itself when out of range.
func (e *LabelEncoder) ClassName(code int) string {
	if code >= 0 && code < len(e.Classes) {
		return e.Classes[code]
	}
	return fmt.Sprint(code)
}

func (e *LabelEncoder) lookup() map[string]int {
	idx := make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		idx[c] = i
	}
	return idx
}
