// Standard attribute keys for tabforest log records.
//
// Keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") so runs can be filtered and aggregated from the JSON log.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or transformer.
	// Examples: "RandomForestClassifier", "StandardScaler", "LabelEncoder"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is emitting the record.
	// Set automatically by GetLoggerWithName.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline stage.
	// Examples: "load", "preprocessing", "training", "evaluation", "save"
	PhaseKey = "ml.phase"

	// RunIDKey carries the UUID assigned to a single training run.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct target classes.
	ClassesKey = "data.classes"

	// TargetKey names the target column chosen for a dataset.
	TargetKey = "data.target"

	// PathKey is a filesystem path (dataset, artifact directory, ledger).
	PathKey = "data.path"

	// ColumnKey names a single dataset column.
	ColumnKey = "data.column"

	// UnseenKey counts values absent from a fitted encoder's categories.
	UnseenKey = "data.unseen"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy in [0.0, 1.0].
	AccuracyKey = "metrics.accuracy"

	// TreesKey records the number of trees in an ensemble.
	TreesKey = "model.n_estimators"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// StacktraceKey contains stack trace information for debugging.
	// Automatically populated by Logger.Error for cockroachdb/errors values.
	StacktraceKey = "error.stacktrace"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Configuration
const (
	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute value constants.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseLoad          = "load"
	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseEvaluation    = "evaluation"
	PhaseSave          = "save"
	PhaseInference     = "inference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
)
