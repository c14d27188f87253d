// Package rasterize burns polygon features onto the grid of a reference
// layer, producing e.g. the fire presence target raster.
package rasterize

import (
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
)

// DefaultLabel is the label of burned layers unless WithLabel is given.
const DefaultLabel = "fires"

// Feature is a polygon with its burn value.
type Feature struct {
	Geom  geom.Polygonal
	Value float64
}

type indexed struct {
	geom.Polygonal
	order int
	value float64
}

type options struct {
	column string
	label  string
}

// Option configures Shapefile and Polygons.
type Option func(*options)

// WithColumn burns the numeric attribute column instead of 1.
func WithColumn(name string) Option {
	return func(o *options) { o.column = name }
}

// WithLabel sets the output layer label.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

func newOptions(opts []Option) options {
	o := options{label: DefaultLabel}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Shapefile reads polygons from an ESRI shapefile and burns them onto the
// grid of ref. Features are burned in file order.
func Shapefile(path string, ref *raster.Layer, opts ...Option) (*raster.Layer, error) {
	o := newOptions(opts)

	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open shapefile %s", path)
	}

	var columns []string
	if o.column != "" {
		columns = []string{o.column}
	}

	var features []Feature
	for {
		g, fields, more := dec.DecodeRowFields(columns...)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			dec.Close()
			return nil, errors.NewFormatError(path, "features must be polygons")
		}
		f := Feature{Geom: poly, Value: 1}
		if o.column != "" {
			raw, ok := fields[o.column]
			if !ok {
				dec.Close()
				return nil, errors.NewFormatError(path, "missing attribute column "+o.column)
			}
			f.Value, err = parseField(raw)
			if err != nil {
				dec.Close()
				return nil, errors.NewFormatError(path, "column "+o.column+": "+err.Error())
			}
		}
		features = append(features, f)
	}
	if err := dec.Error(); err != nil {
		dec.Close()
		return nil, errors.Wrapf(err, "decode shapefile %s", path)
	}
	dec.Close()

	return burn(features, ref, o)
}

// dbf numeric fields are space padded and may carry NUL bytes.
func parseField(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	return strconv.ParseFloat(s, 64)
}

// Polygons burns in-memory features onto the grid of ref. Later features
// overwrite earlier ones; cells outside every polygon are 0.
func Polygons(features []Feature, ref *raster.Layer, opts ...Option) (*raster.Layer, error) {
	return burn(features, ref, newOptions(opts))
}

func burn(features []Feature, ref *raster.Layer, o options) (*raster.Layer, error) {
	rows, cols := ref.Rows(), ref.Cols()
	gt := ref.Georef().GeoTransform
	extent := gridBounds(gt, rows, cols)

	index := rtree.NewTree(25, 50)
	for i, f := range features {
		if f.Geom == nil {
			continue
		}
		if !extent.Overlaps(f.Geom.Bounds()) {
			continue
		}
		index.Insert(&indexed{Polygonal: f.Geom, order: i, value: f.Value})
	}

	eps := 1e-6 * (math.Abs(gt[1]) + math.Abs(gt[5]))
	values := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			p := pixelCenter(gt, r, c)
			best := -1
			for _, item := range index.SearchIntersect(pointBox(p, eps)) {
				cand := item.(*indexed)
				if cand.order <= best {
					continue
				}
				if p.Within(cand.Polygonal) != geom.Outside {
					best = cand.order
					values[r*cols+c] = cand.value
				}
			}
		}
	}

	out, err := ref.Derive(o.label, values, raster.WithoutNoData())
	if err != nil {
		return nil, errors.Wrap(err, "rasterize features")
	}
	return out, nil
}

func pixelCenter(gt [6]float64, r, c int) geom.Point {
	x := float64(c) + 0.5
	y := float64(r) + 0.5
	return geom.Point{
		X: gt[0] + x*gt[1] + y*gt[2],
		Y: gt[3] + x*gt[4] + y*gt[5],
	}
}

func gridBounds(gt [6]float64, rows, cols int) *geom.Bounds {
	b := geom.NewBounds()
	for _, corner := range [][2]float64{{0, 0}, {float64(cols), 0}, {0, float64(rows)}, {float64(cols), float64(rows)}} {
		b.Extend(geom.Point{
			X: gt[0] + corner[0]*gt[1] + corner[1]*gt[2],
			Y: gt[3] + corner[0]*gt[4] + corner[1]*gt[5],
		}.Bounds())
	}
	return b
}

// pointBox is a small box around p so the R-tree search is not degenerate.
func pointBox(p geom.Point, eps float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: p.X - eps, Y: p.Y - eps},
		Max: geom.Point{X: p.X + eps, Y: p.Y + eps},
	}
}
