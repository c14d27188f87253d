// Package log defines standard attribute keys for the hazard pipeline.
//
// Keys follow a hierarchical naming convention ("raster.label",
// "data.samples") so that log records from different stages can be filtered
// and joined on the same fields.

package log

// Raster and catalog context.
const (
	// LayerKey identifies a raster layer by its catalog label.
	// Examples: "dem", "perc_311", "MWMT"
	LayerKey = "raster.label"

	// PathKey is the file a layer was read from or written to.
	PathKey = "raster.path"

	// CatalogKey names the catalog kind: "topography", "vegetation", "climate".
	CatalogKey = "raster.catalog"

	// ShapeKey records grid dimensions as "rowsxcols".
	ShapeKey = "raster.shape"

	// ValidPixelsKey is the number of true cells in a validity mask.
	ValidPixelsKey = "raster.valid_pixels"

	// ScenarioKey identifies a climate period/scenario directory.
	ScenarioKey = "climate.scenario"
)

// Data shape and sampling.
const (
	// SamplesKey indicates the number of rows in a matrix or sample.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// PresenceKey is the number of fire presence rows.
	PresenceKey = "data.presence"

	// AbsenceKey is the number of pseudo-absence rows.
	AbsenceKey = "data.absence"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Model context and metrics.
const (
	// ModelNameKey identifies the classifier type.
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	AUCTrainKey = "metrics.auc_train"
	AUCTestKey  = "metrics.auc_test"
	MSEKey      = "metrics.mse"
	LogLossKey  = "metrics.log_loss"
	AccuracyKey = "metrics.accuracy"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// RunIDKey correlates the records of one pipeline run.
	RunIDKey = "run.id"
)

// Hazard classification.
const (
	ThresholdsKey = "hazard.thresholds"
	LevelsKey     = "hazard.levels"
	ClassCountKey = "hazard.classes"
)

// Standard operation values.
const (
	OperationRead     = "read"
	OperationWrite    = "write"
	OperationBuild    = "build"
	OperationSample   = "sample"
	OperationFit      = "fit"
	OperationEvaluate = "evaluate"
	OperationScore    = "score"
	OperationClassify = "classify"
)
