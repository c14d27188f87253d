// Package raster holds the immutable single-band grid value object shared by
// every stage of the hazard pipeline, with GDAL-backed read and write.
package raster

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

// Georef is the affine geotransform and CRS of a grid. Two layers are
// aligned when their shapes and geotransforms are equal.
type Georef struct {
	GeoTransform [6]float64
	Projection   string // WKT
}

// Layer is an immutable 2D float64 grid with a validity mask, nodata value,
// label and georeference. New layers are built with NewLayer, Read or Derive;
// accessors never expose internal storage.
type Layer struct {
	label     string
	rows      int
	cols      int
	data      []float64
	mask      Mask
	noData    float64
	hasNoData bool
	georef    Georef
}

// LayerOption configures NewLayer and Derive.
type LayerOption func(*Layer)

// WithNoData sets the nodata sentinel; cells equal to it are invalid.
func WithNoData(v float64) LayerOption {
	return func(l *Layer) {
		l.noData = v
		l.hasNoData = true
	}
}

// WithoutNoData clears the nodata sentinel.
func WithoutNoData() LayerOption {
	return func(l *Layer) {
		l.noData = 0
		l.hasNoData = false
	}
}

// WithGeoref sets the georeference.
func WithGeoref(g Georef) LayerOption {
	return func(l *Layer) { l.georef = g }
}

// NewLayer builds a layer from row-major data (copied). The mask marks a
// cell valid when it is not NaN and differs from the nodata value.
func NewLayer(label string, rows, cols int, data []float64, opts ...LayerOption) (*Layer, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.NewValueError("raster.NewLayer", fmt.Sprintf("invalid shape %dx%d for %q", rows, cols, label))
	}
	if len(data) != rows*cols {
		return nil, errors.NewAlignmentError("raster.NewLayer", label,
			fmt.Sprintf("%d cells", rows*cols), fmt.Sprintf("%d cells", len(data)))
	}
	l := &Layer{
		label: label,
		rows:  rows,
		cols:  cols,
		data:  append([]float64(nil), data...),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.mask = deriveMask(rows, cols, l.data, l.noData, l.hasNoData)
	return l, nil
}

func deriveMask(rows, cols int, data []float64, noData float64, hasNoData bool) Mask {
	m := NewMask(rows, cols, false)
	for i, v := range data {
		m.Valid[i] = !math.IsNaN(v) && (!hasNoData || v != noData)
	}
	return m
}

// Derive returns a new layer with the receiver's shape, georef and nodata
// but a new label and data. opts may override the nodata sentinel.
func (l *Layer) Derive(label string, data []float64, opts ...LayerOption) (*Layer, error) {
	if len(data) != l.rows*l.cols {
		return nil, errors.NewAlignmentError("raster.Derive", label,
			fmt.Sprintf("%dx%d (%d cells)", l.rows, l.cols, l.rows*l.cols),
			fmt.Sprintf("%d cells", len(data)))
	}
	base := []LayerOption{WithGeoref(l.georef)}
	if l.hasNoData {
		base = append(base, WithNoData(l.noData))
	}
	return NewLayer(label, l.rows, l.cols, data, append(base, opts...)...)
}

// Label returns the layer label.
func (l *Layer) Label() string { return l.label }

// Rows returns the number of rows.
func (l *Layer) Rows() int { return l.rows }

// Cols returns the number of columns.
func (l *Layer) Cols() int { return l.cols }

// Len returns rows*cols.
func (l *Layer) Len() int { return len(l.data) }

// At returns the value at row r, column c.
func (l *Layer) At(r, c int) float64 { return l.data[r*l.cols+c] }

// Value returns the value at flat row-major index i.
func (l *Layer) Value(i int) float64 { return l.data[i] }

// Valid reports whether the cell at flat index i is valid.
func (l *Layer) Valid(i int) bool { return l.mask.Valid[i] }

// Values returns a copy of the row-major data.
func (l *Layer) Values() []float64 { return append([]float64(nil), l.data...) }

// Mask returns a copy of the validity mask.
func (l *Layer) Mask() Mask { return l.mask.Clone() }

// NoData returns the nodata sentinel and whether one is set.
func (l *Layer) NoData() (float64, bool) { return l.noData, l.hasNoData }

// Georef returns the georeference.
func (l *Layer) Georef() Georef { return l.georef }

// String implements fmt.Stringer.
func (l *Layer) String() string {
	return fmt.Sprintf("Layer(%q, %dx%d, valid=%d)", l.label, l.rows, l.cols, l.mask.Count())
}

func shapeString(rows, cols int) string {
	return fmt.Sprintf("%dx%d", rows, cols)
}

// CheckAligned returns an AlignmentError naming the first layer whose shape
// or geotransform differs from layers[0].
func CheckAligned(op string, layers ...*Layer) error {
	if len(layers) < 2 {
		return nil
	}
	ref := layers[0]
	for _, l := range layers[1:] {
		if l.rows != ref.rows || l.cols != ref.cols {
			return errors.NewShapeAlignmentError(op, l.label, ref.rows, ref.cols, l.rows, l.cols)
		}
		if l.georef.GeoTransform != ref.georef.GeoTransform {
			return errors.NewAlignmentError(op, l.label,
				fmt.Sprintf("geotransform %v", ref.georef.GeoTransform),
				fmt.Sprintf("geotransform %v", l.georef.GeoTransform))
		}
	}
	return nil
}

// CheckMask returns an AlignmentError when m does not match the layer shape.
func CheckMask(op string, l *Layer, m Mask) error {
	if !m.SameShape(l.rows, l.cols) {
		return errors.NewAlignmentError(op, "mask", shapeString(l.rows, l.cols), shapeString(m.Rows, m.Cols))
	}
	return nil
}
