// Package model defines the estimator interfaces shared by tabforest's
// classifiers and transformers, plus fitted-state tracking and gob persistence.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// Classifier combines interfaces for classification models.
// Labels are the integer codes produced by preprocessing.LabelEncoder.
type Classifier interface {
	Predictor

	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error

	// PredictProba returns probability estimates for each class.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Score returns the mean accuracy on the given test data and labels.
	Score(X, y mat.Matrix) float64
}

// FeatureImportancer is implemented by tree-based models.
type FeatureImportancer interface {
	// GetFeatureImportances returns impurity-based importances summing to 1.
	GetFeatureImportances() []float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}
