// Package tabforest trains random forest classifiers on arbitrary CSV files.
//
// tabforest reads a CSV (or the largest CSV in a directory tree), picks a
// target and a handful of feature columns, encodes and scales them, fits a
// random forest and writes the fitted model together with its preprocessing
// objects to a directory.
//
// # Features
//
//   - Dataset loading with pandas-like NA handling and non-UTF-8 encodings
//   - scikit-learn-like estimators: DecisionTreeClassifier,
//     RandomForestClassifier, StandardScaler, LabelEncoder, OneHotEncoder
//   - CPU-parallel forest fitting that gives the same forest for a seed
//     regardless of the number of workers
//   - Structured logging (zerolog) and typed errors with stack traces
//   - Artifacts with a JSON manifest, SQLite run ledger, importance charts
//
// # Quick Start
//
// Train from the command line:
//
//	tabforest train --dataset_path ./data --output_dir ./models
//	tabforest predict --model_dir ./models --input new.csv
//
// Or from Go:
//
//	res, err := pipeline.Run(ctx, pipeline.Options{
//	    DatasetPath: "./data",
//	    OutputDir:   "./models",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(res.Evaluation)
//
// # Packages
//
//   - dataset: CSV loading into typed columns
//   - pipeline: preprocess, train, evaluate, save and predict
//   - preprocessing: StandardScaler, LabelEncoder, OneHotEncoder
//   - sklearn/tree, sklearn/ensemble: decision tree and random forest
//   - sklearn/model_selection: train/test split
//   - metrics: accuracy, confusion matrix, classification report
//   - report: feature importance chart
//   - ledger: SQLite history of training runs
//   - config: YAML configuration of the run command
//   - core/model: estimator interfaces, fitted state, gob persistence
//   - core/parallel: parallel processing utilities
//   - pkg/errors, pkg/log: error types and structured logging
package tabforest
