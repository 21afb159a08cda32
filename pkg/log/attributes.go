// Standard attribute keys for pipeline logging.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that log records from different stages can be filtered
// and aggregated consistently.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the model column in the comparison table.
	// Examples: "DT", "RF", "SVM"
	ModelNameKey = "model.name"

	// AlgorithmKey identifies the estimator type behind a model.
	// Examples: "DecisionTreeClassifier", "SVC"
	AlgorithmKey = "model.algorithm"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the pipeline.
	PhaseKey = "ml.phase"

	// RunIDKey tags every record of one pipeline run.
	RunIDKey = "run.id"
)

// Data shape and characteristics.
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ClassCountsKey holds per-class sample counts.
	ClassCountsKey = "data.class_counts"

	// SourceKey is the dataset location (URL or path).
	SourceKey = "data.source"

	// FeatureKey names a single feature column.
	FeatureKey = "data.feature"
)

// Performance and evaluation.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records test accuracy.
	AccuracyKey = "metrics.accuracy"

	// F1Key records the F1 score of the positive class.
	F1Key = "metrics.f1"

	// AUCKey records the area under the ROC curve.
	AUCKey = "metrics.auc"

	// ScoreKey records a cross-validation score.
	ScoreKey = "metrics.cv_score"

	// IterationKey records the current iteration of an iterative solver.
	IterationKey = "training.iteration"
)

// Error context.
const (
	// ErrorKey holds the error value.
	ErrorKey = "error"

	// StacktraceKey contains stack trace information extracted from the error.
	StacktraceKey = "error.stacktrace"

	// WarningKey holds a library warning (convergence, undefined metric, ...).
	WarningKey = "warning"
)

// Hyperparameters and configuration.
const (
	// HyperParamsKey contains model hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// CandidatesKey records the number of grid-search candidates.
	CandidatesKey = "tuning.candidates"

	// FoldsKey records the number of cross-validation folds.
	FoldsKey = "tuning.folds"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationLoad      = "load"
	OperationBalance   = "balance"
	OperationScale     = "scale"
	OperationSplit     = "split"
	OperationFit       = "fit"
	OperationTune      = "tune"
	OperationEvaluate  = "evaluate"
	OperationSweep     = "sweep"
	OperationPersist   = "persist"
	OperationReport    = "report"
	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
)
