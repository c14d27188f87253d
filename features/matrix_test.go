package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/firehazard/catalog"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
)

var gr = raster.Georef{GeoTransform: [6]float64{0, 100, 0, 300, 0, -100}}

func layer(t *testing.T, label string, data ...float64) *raster.Layer {
	t.Helper()
	l, err := raster.NewLayer(label, 3, 3, data, raster.WithNoData(-9999), raster.WithGeoref(gr))
	require.NoError(t, err)
	return l
}

func cat(t *testing.T, kind catalog.Kind, layers ...*raster.Layer) *catalog.Catalog {
	t.Helper()
	c := catalog.New(kind)
	for _, l := range layers {
		require.NoError(t, c.Add(l))
	}
	return c
}

func fixture(t *testing.T) (raster.Mask, *raster.Layer, []*catalog.Catalog) {
	mask := raster.NewMask(3, 3, false)
	for _, i := range []int{1, 3, 4, 8} {
		mask.Valid[i] = true
	}
	topo := cat(t, catalog.KindTopography, layer(t, "dem", 0, 1, 2, 3, 4, 5, 6, 7, 8))
	veg := cat(t, catalog.KindVegetation, layer(t, "veg", 10, 11, 12, 13, 14, 15, 16, 17, 18))
	clim := cat(t, catalog.KindClimate, layer(t, "MAT", 20, 21, 22, 23, 24, 25, 26, 27, 28))
	fire := layer(t, "fires", 0, 1, 0, -9999, 0, 0, 0, 0, 1)
	// climate first on purpose: Build orders by kind
	return mask, fire, []*catalog.Catalog{clim, topo, veg}
}

func TestBuild_MaskConsistency(t *testing.T) {
	mask, fire, cats := fixture(t)

	m, err := Build(mask, fire, cats)
	require.NoError(t, err)

	assert.Equal(t, []string{"dem", "veg", "MAT"}, m.Columns)
	assert.Equal(t, mask.Count(), m.Samples())
	_, nCols := m.X.Dims()
	assert.Equal(t, len(m.Columns), nCols)

	for k, cell := range mask.Indices() {
		assert.Equal(t, float64(cell), m.X.At(k, 0))
		assert.Equal(t, float64(10+cell), m.X.At(k, 1))
		assert.Equal(t, float64(20+cell), m.X.At(k, 2))
	}
	// cell 3 is nodata in the fire raster and counts as absence
	assert.Equal(t, []float64{1, 0, 0, 1}, m.Y)
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, gr, m.Georef)
}

func TestBuild_Errors(t *testing.T) {
	mask, fire, cats := fixture(t)

	_, err := Build(raster.NewMask(2, 2, true), fire, cats)
	var aerr *errors.AlignmentError
	require.ErrorAs(t, err, &aerr)

	small, err := raster.NewLayer("fires", 1, 1, []float64{1})
	require.NoError(t, err)
	_, err = Build(mask, small, cats)
	require.ErrorAs(t, err, &aerr)

	_, err = Build(raster.NewMask(3, 3, false), fire, cats)
	var ierr *errors.InsufficientDataError
	require.ErrorAs(t, err, &ierr)

	nan := cat(t, catalog.KindTopography, layer(t, "slope", math.NaN(), 1, 1, 1, 1, 1, 1, 1, 1))
	nanMask := raster.NewMask(3, 3, true)
	_, err = Build(nanMask, nil, []*catalog.Catalog{nan})
	var nerr *errors.NumericalInstabilityError
	require.ErrorAs(t, err, &nerr)
}

func TestWithClimate(t *testing.T) {
	mask, fire, cats := fixture(t)
	base, err := Build(mask, fire, cats, WithWorkers(1))
	require.NoError(t, err)

	future := cat(t, catalog.KindClimate, layer(t, "MAT", 30, 31, 32, 33, 34, 35, 36, 37, 38))
	m, err := WithClimate(base, future)
	require.NoError(t, err)

	assert.Equal(t, base.Columns, m.Columns)
	assert.Equal(t, base.Y, m.Y)
	for k, cell := range mask.Indices() {
		assert.Equal(t, base.X.At(k, 0), m.X.At(k, 0))
		assert.Equal(t, base.X.At(k, 1), m.X.At(k, 1))
		assert.Equal(t, float64(30+cell), m.X.At(k, 2))
	}
	// base is untouched
	assert.Equal(t, 21.0, base.X.At(0, 2))

	_, err = WithClimate(base, cat(t, catalog.KindTopography))
	require.Error(t, err)
}
