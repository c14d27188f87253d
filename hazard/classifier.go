package hazard

import (
	"log/slog"

	"github.com/YuminosukeSato/firehazard/landcover"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/raster"
)

// Result holds the rasters of one classification run.
type Result struct {
	Susceptibility *raster.Layer // classes 1..S, 0 outside the mask
	Fuel           *raster.Layer // classes 1..F, -1 unmapped, 0 invalid
	Hazard         *raster.Layer
	Unmapped       map[int]int // cells per unmapped land cover code
}

// Classifier derives hazard rasters with thresholds fixed by Fit, so a
// future scenario is classified against the present-day quantiles.
type Classifier struct {
	levels     []float64
	matrix     LookupMatrix
	fuel       landcover.FuelTable
	thresholds []float64
	logger     *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLevels sets the quantile levels. Defaults to DefaultLevels.
func WithLevels(levels []float64) Option {
	return func(c *Classifier) { c.levels = append([]float64(nil), levels...) }
}

// WithMatrix sets the lookup matrix. Defaults to DefaultLookupMatrix.
func WithMatrix(m LookupMatrix) Option {
	return func(c *Classifier) { c.matrix = m }
}

// WithThresholds fixes the thresholds, skipping Fit.
func WithThresholds(t []float64) Option {
	return func(c *Classifier) { c.thresholds = append([]float64(nil), t...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// NewClassifier returns a classifier using fuel to map land cover codes.
func NewClassifier(fuel landcover.FuelTable, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		levels: append([]float64(nil), DefaultLevels...),
		matrix: DefaultLookupMatrix(),
		fuel:   fuel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger)
	if err := CheckLevels(c.levels); err != nil {
		return nil, err
	}
	if s := len(c.levels) + 1; s != c.matrix.SusceptibilityClasses() {
		return nil, errors.NewValidationError("lookup_matrix",
			"row count must equal the number of susceptibility classes", s)
	}
	if fuel.MaxClass() > c.matrix.FuelClasses() {
		return nil, errors.NewClassificationRangeError("hazard.NewClassifier", AxisFuel, fuel.MaxClass(), 1, c.matrix.FuelClasses())
	}
	return c, nil
}

// Fit computes the thresholds from a susceptibility raster.
func (c *Classifier) Fit(susc *raster.Layer) error {
	t, err := Thresholds(susc, c.levels)
	if err != nil {
		return err
	}
	c.thresholds = t
	c.logger.Info("hazard thresholds computed",
		log.OperationKey, log.OperationFit,
		log.LevelsKey, c.levels,
		log.ThresholdsKey, t,
	)
	return nil
}

// Thresholds returns the fitted thresholds.
func (c *Classifier) Thresholds() []float64 { return append([]float64(nil), c.thresholds...) }

// Classify digitizes susc, quantizes landCover and combines both.
func (c *Classifier) Classify(susc, landCover *raster.Layer) (*Result, error) {
	if c.thresholds == nil {
		return nil, errors.NewNotFittedError("hazard.Classifier", "Classify")
	}
	if err := raster.CheckAligned("hazard.Classify", susc, landCover); err != nil {
		return nil, err
	}
	sc, err := Digitize(susc, c.thresholds)
	if err != nil {
		return nil, err
	}
	fc, unmapped, err := QuantizeFuel(landCover, c.fuel)
	if err != nil {
		return nil, err
	}
	hz, err := CombineHazardMatrix(sc, fc, c.matrix)
	if err != nil {
		return nil, err
	}

	unmappedCells := 0
	for _, n := range unmapped {
		unmappedCells += n
	}
	c.logger.Info("hazard classified",
		log.OperationKey, log.OperationClassify,
		log.ThresholdsKey, c.thresholds,
		log.ClassCountKey, Counts(hz),
		"fuel.unmapped_codes", len(unmapped),
		"fuel.unmapped_cells", unmappedCells,
	)
	return &Result{Susceptibility: sc, Fuel: fc, Hazard: hz, Unmapped: unmapped}, nil
}
