// Package catalog groups aligned raster layers into labelled, ordered
// catalogs (topography, vegetation, climate) and merges them into the column
// order used by the feature matrix.
package catalog

import (
	"fmt"
	"log/slog"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
)

// Kind tags the source of a catalog. Merge orders catalogs by Kind.
type Kind int

const (
	KindTopography Kind = iota
	KindVegetation
	KindClimate
	// KindMerged is the kind of a Merge result.
	KindMerged
)

func (k Kind) String() string {
	switch k {
	case KindTopography:
		return "topography"
	case KindVegetation:
		return "vegetation"
	case KindClimate:
		return "climate"
	case KindMerged:
		return "merged"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Catalog is an insertion-ordered label → layer mapping. Labels are unique.
type Catalog struct {
	kind   Kind
	labels []string
	layers map[string]*raster.Layer
	mask   *raster.Mask
}

// New returns an empty catalog of the given kind.
func New(kind Kind) *Catalog {
	return &Catalog{kind: kind, layers: make(map[string]*raster.Layer)}
}

// Add appends l. Duplicate labels are rejected.
func (c *Catalog) Add(l *raster.Layer) error {
	if _, ok := c.layers[l.Label()]; ok {
		return errors.NewValidationError("label", fmt.Sprintf("duplicate layer in %s catalog", c.kind), l.Label())
	}
	c.labels = append(c.labels, l.Label())
	c.layers[l.Label()] = l
	return nil
}

// Kind returns the catalog kind.
func (c *Catalog) Kind() Kind { return c.kind }

// Len returns the number of layers.
func (c *Catalog) Len() int { return len(c.labels) }

// Labels returns the layer labels in insertion order.
func (c *Catalog) Labels() []string { return append([]string(nil), c.labels...) }

// Layer returns the layer with the given label.
func (c *Catalog) Layer(label string) (*raster.Layer, bool) {
	l, ok := c.layers[label]
	return l, ok
}

// Layers returns the layers in insertion order.
func (c *Catalog) Layers() []*raster.Layer {
	out := make([]*raster.Layer, len(c.labels))
	for i, label := range c.labels {
		out[i] = c.layers[label]
	}
	return out
}

// Mask returns the combined validity mask carried by vegetation catalogs.
func (c *Catalog) Mask() (raster.Mask, bool) {
	if c.mask == nil {
		return raster.Mask{}, false
	}
	return c.mask.Clone(), true
}

// SetMask attaches a validity mask to the catalog.
func (c *Catalog) SetMask(m raster.Mask) { c.mask = &m }

// Merge concatenates catalogs as topography, vegetation, then climate,
// whatever the argument order, keeping insertion order within each. Labels
// must be unique across all inputs. The first mask found is carried over.
func Merge(cats ...*Catalog) (*Catalog, error) {
	out := New(KindMerged)
	for _, kind := range []Kind{KindTopography, KindVegetation, KindClimate, KindMerged} {
		for _, c := range cats {
			if c == nil || c.kind != kind {
				continue
			}
			for _, l := range c.Layers() {
				if err := out.Add(l); err != nil {
					return nil, errors.Wrapf(err, "merge %s catalog", c.kind)
				}
			}
			if out.mask == nil && c.mask != nil {
				m := c.mask.Clone()
				out.mask = &m
			}
		}
	}
	if err := raster.CheckAligned("catalog.Merge", out.Layers()...); err != nil {
		return nil, err
	}
	return out, nil
}

// Source names a raster file and the label its layer gets.
type Source struct {
	Path  string
	Label string
}

// Reader loads a layer; raster.Read is the default.
type Reader func(path, label string) (*raster.Layer, error)

type options struct {
	reader   Reader
	logger   *slog.Logger
	window   int
	progress bool
	workers  int
}

// Option configures the catalog builders.
type Option func(*options)

// WithReader replaces raster.Read, e.g. with an in-memory source in tests.
func WithReader(r Reader) Option {
	return func(o *options) { o.reader = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWindow sets the half-width w of the (2w+1)² density kernel.
func WithWindow(w int) Option {
	return func(o *options) { o.window = w }
}

// WithProgress shows a progress bar while density layers are computed.
func WithProgress(show bool) Option {
	return func(o *options) { o.progress = show }
}

// WithWorkers bounds the goroutines used for density layers. n <= 0 uses
// all cores.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func newOptions(opts []Option) options {
	o := options{reader: raster.Read, logger: slog.Default(), window: 2}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
