// Package metrics provides classification metrics compatible with
// scikit-learn's sklearn.metrics.
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// AccuracyScore は正解率（予測が一致したサンプルの割合）を計算する
func AccuracyScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// UniqueLabels は yTrue と yPred に現れるラベルの和集合を昇順で返す
func UniqueLabels(yTrue, yPred *mat.VecDense) []int {
	seen := make(map[int]struct{})
	var labels []int
	for _, v := range []*mat.VecDense{yTrue, yPred} {
		if v == nil {
			continue
		}
		for i := 0; i < v.Len(); i++ {
			l := int(v.AtVec(i))
			if _, ok := seen[l]; !ok {
				seen[l] = struct{}{}
				labels = append(labels, l)
			}
		}
	}
	sort.Ints(labels)
	return labels
}

// ConfusionMatrix は混同行列を計算する
// 行が真のラベル、列が予測ラベルで、並びは labels の順。
// labels が nil の場合は UniqueLabels を使う。
func ConfusionMatrix(yTrue, yPred *mat.VecDense, labels []int) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = UniqueLabels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "labels must not be empty")
	}

	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, okT := pos[int(yTrue.AtVec(i))]
		c, okP := pos[int(yPred.AtVec(i))]
		if okT && okP {
			cm.Set(r, c, cm.At(r, c)+1)
		}
	}
	return cm, nil
}

// PrecisionRecallFScoreSupport はラベルごとの適合率・再現率・F1・サポートを計算する
// 分母が0になる指標は0とし、UndefinedMetricWarning を発生させる。
func PrecisionRecallFScoreSupport(yTrue, yPred *mat.VecDense, labels []int) (
	precision, recall, f1 []float64, support []int, err error,
) {
	if labels == nil {
		labels = UniqueLabels(yTrue, yPred)
	}
	cm, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	k := len(labels)
	precision = make([]float64, k)
	recall = make([]float64, k)
	f1 = make([]float64, k)
	support = make([]int, k)

	var noPred, noTrue []int
	for i := 0; i < k; i++ {
		tp := cm.At(i, i)
		predicted := mat.Sum(cm.ColView(i))
		actual := mat.Sum(cm.RowView(i))
		support[i] = int(actual)

		if predicted > 0 {
			precision[i] = tp / predicted
		} else {
			noPred = append(noPred, labels[i])
		}
		if actual > 0 {
			recall[i] = tp / actual
		} else {
			noTrue = append(noTrue, labels[i])
		}
		if precision[i]+recall[i] > 0 {
			f1[i] = 2 * precision[i] * recall[i] / (precision[i] + recall[i])
		}
	}

	if len(noPred) > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision",
			fmt.Sprintf("no predicted samples for labels %v", noPred), 0))
	}
	if len(noTrue) > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall",
			fmt.Sprintf("no true samples for labels %v", noTrue), 0))
	}
	return precision, recall, f1, support, nil
}
