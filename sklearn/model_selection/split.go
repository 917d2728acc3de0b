// Package model_selection provides data splitting utilities in the style of
// scikit-learn's sklearn.model_selection.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

// Split holds the row indices of a train/test partition.
type Split struct {
	TrainIndices []int
	TestIndices  []int
}

// ShuffleSplitIndices permutes 0..nSamples-1 with a seeded PCG source and
// takes the first ceil(testSize*nSamples) rows as the test set and the rest
// as the training set. Both sets must be non-empty.
func ShuffleSplitIndices(nSamples int, testSize float64, randomState uint64) (Split, error) {
	if nSamples <= 0 {
		return Split{}, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if !(testSize > 0 && testSize < 1) {
		return Split{}, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(nSamples)))
	nTrain := nSamples - nTest
	if nTest < 1 || nTrain < 1 {
		return Split{}, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%v the resulting train set will be empty", nSamples, testSize))
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(randomState, randomState))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	test := make([]int, nTest)
	copy(test, indices[:nTest])
	train := make([]int, nTrain)
	copy(train, indices[nTest:])

	return Split{TrainIndices: train, TestIndices: test}, nil
}

// TrainTestSplit splits X and y into random train and test subsets.
//
// Example:
//
//	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(X, y, 0.2, 42)
func TrainTestSplit(X mat.Matrix, y mat.Vector, testSize float64, randomState uint64) (
	XTrain, XTest *mat.Dense, yTrain, yTest *mat.VecDense, err error,
) {
	rows, _ := X.Dims()
	if y.Len() != rows {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", rows, y.Len(), 0)
	}

	split, err := ShuffleSplitIndices(rows, testSize, randomState)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return TakeRows(X, split.TrainIndices), TakeRows(X, split.TestIndices),
		TakeVec(y, split.TrainIndices), TakeVec(y, split.TestIndices), nil
}

// TakeRows returns a new matrix made of the given rows of X, in order.
func TakeRows(X mat.Matrix, idx []int) *mat.Dense {
	_, cols := X.Dims()
	if len(idx) == 0 || cols == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

// TakeVec returns a new vector made of the given elements of y, in order.
func TakeVec(y mat.Vector, idx []int) *mat.VecDense {
	if len(idx) == 0 {
		return &mat.VecDense{}
	}
	out := mat.NewVecDense(len(idx), nil)
	for i, r := range idx {
		out.SetVec(i, y.AtVec(r))
	}
	return out
}
