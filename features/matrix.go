// Package features flattens aligned catalogs into the per-pixel feature
// matrix consumed by the sampler and the susceptibility model.
//
// Row k of the matrix is the k-th valid cell of the mask in row-major order,
// and column j is the j-th layer of the merged catalog (topography, then
// vegetation, then climate).
package features

import (
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/firehazard/catalog"
	"github.com/YuminosukeSato/firehazard/core/parallel"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/raster"
)

// Matrix is the feature matrix of the valid cells of a grid.
type Matrix struct {
	X       *mat.Dense
	Y       []float64 // nil when built without a target
	Columns []string
	Mask    raster.Mask
	Georef  raster.Georef

	// number of trailing climate columns
	nClimate int
	fire     *raster.Layer
}

// Rows returns the grid height.
func (m *Matrix) Rows() int { return m.Mask.Rows }

// Cols returns the grid width.
func (m *Matrix) Cols() int { return m.Mask.Cols }

// Samples returns the number of matrix rows.
func (m *Matrix) Samples() int {
	r, _ := m.X.Dims()
	return r
}

type options struct {
	logger  *slog.Logger
	workers int
}

// Option configures Build and WithClimate.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWorkers bounds the goroutines used to fill columns.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = log.OrDefault(o.logger)
	return o
}

// Build merges cats with catalog.Merge and copies every layer at the true
// cells of mask into one column of X. fire, when not nil, supplies Y; its
// invalid cells inside the mask become 0 (absence).
func Build(mask raster.Mask, fire *raster.Layer, cats []*catalog.Catalog, opts ...Option) (*Matrix, error) {
	o := newOptions(opts)

	merged, err := catalog.Merge(cats...)
	if err != nil {
		return nil, err
	}
	layers := merged.Layers()
	if len(layers) == 0 {
		return nil, errors.NewValueError("features.Build", "no layers")
	}
	ref := layers[0]
	if err := raster.CheckMask("features.Build", ref, mask); err != nil {
		return nil, err
	}
	if fire != nil {
		if err := raster.CheckAligned("features.Build", ref, fire); err != nil {
			return nil, err
		}
	}

	idx := mask.Indices()
	if len(idx) == 0 {
		return nil, errors.NewInsufficientDataError("features.Build", "valid pixels", 0, 1)
	}

	x := mat.NewDense(len(idx), len(layers), nil)
	fillColumns(x, layers, idx, 0, o.workers)
	if err := errors.CheckMatrix("features.Build", x); err != nil {
		return nil, err
	}

	nClimate := 0
	for _, c := range cats {
		if c != nil && c.Kind() == catalog.KindClimate {
			nClimate += c.Len()
		}
	}

	m := &Matrix{
		X:        x,
		Columns:  merged.Labels(),
		Mask:     mask.Clone(),
		Georef:   ref.Georef(),
		nClimate: nClimate,
		fire:     fire,
	}
	invalidFire := 0
	if fire != nil {
		m.Y, invalidFire = target(fire, idx)
	}

	o.logger.Info("feature matrix built",
		log.OperationKey, log.OperationBuild,
		log.SamplesKey, len(idx),
		log.FeaturesKey, len(layers),
		log.ShapeKey, ref.String(),
		"fire.invalid_cells", invalidFire,
	)
	return m, nil
}

// WithClimate rebuilds base for another climate scenario: the topography and
// vegetation columns are copied from base and the climate block is replaced
// by the layers of climate. The mask and target of base are reused.
func WithClimate(base *Matrix, climate *catalog.Catalog, opts ...Option) (*Matrix, error) {
	o := newOptions(opts)
	if climate == nil || climate.Kind() != catalog.KindClimate {
		return nil, errors.NewValueError("features.WithClimate", "a climate catalog is required")
	}

	layers := climate.Layers()
	for _, l := range layers {
		if err := raster.CheckMask("features.WithClimate", l, base.Mask); err != nil {
			return nil, err
		}
		if l.Georef().GeoTransform != base.Georef.GeoTransform {
			return nil, errors.NewAlignmentError("features.WithClimate", l.Label(), "base geotransform", "different geotransform")
		}
	}

	rows, cols := base.X.Dims()
	nBase := cols - base.nClimate
	out := mat.NewDense(rows, nBase+len(layers), nil)
	if nBase > 0 {
		out.Slice(0, rows, 0, nBase).(*mat.Dense).Copy(base.X.Slice(0, rows, 0, nBase))
	}
	fillColumns(out, layers, base.Mask.Indices(), nBase, o.workers)
	if err := errors.CheckMatrix("features.WithClimate", out); err != nil {
		return nil, err
	}

	columns := append(append([]string(nil), base.Columns[:nBase]...), climate.Labels()...)
	m := &Matrix{
		X:        out,
		Y:        append([]float64(nil), base.Y...),
		Columns:  columns,
		Mask:     base.Mask.Clone(),
		Georef:   base.Georef,
		nClimate: len(layers),
		fire:     base.fire,
	}
	o.logger.Info("feature matrix rebuilt for climate scenario",
		log.OperationKey, log.OperationBuild,
		log.SamplesKey, rows,
		log.FeaturesKey, len(columns),
	)
	return m, nil
}

// fillColumns writes layers[j] at idx into column offset+j of x. Columns are
// disjoint so they are filled concurrently.
func fillColumns(x *mat.Dense, layers []*raster.Layer, idx []int, offset, workers int) {
	parallel.ParallelizeN(len(layers), workers, func(start, end int) {
		for j := start; j < end; j++ {
			l := layers[j]
			for k, cell := range idx {
				x.Set(k, offset+j, l.Value(cell))
			}
		}
	})
}

func target(fire *raster.Layer, idx []int) ([]float64, int) {
	y := make([]float64, len(idx))
	invalid := 0
	for k, cell := range idx {
		if !fire.Valid(cell) {
			invalid++
			continue
		}
		y[k] = fire.Value(cell)
	}
	return y, invalid
}
