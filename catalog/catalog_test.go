package catalog

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
)

var testGeoref = raster.Georef{GeoTransform: [6]float64{0, 100, 0, 500, 0, -100}}

func layer(t *testing.T, label string, rows, cols int, data []float64) *raster.Layer {
	t.Helper()
	l, err := raster.NewLayer(label, rows, cols, data, raster.WithNoData(-9999), raster.WithGeoref(testGeoref))
	require.NoError(t, err)
	return l
}

// memReader serves layers by path.
func memReader(layers map[string]*raster.Layer) Reader {
	return func(path, label string) (*raster.Layer, error) {
		l, ok := layers[path]
		if !ok {
			return nil, errors.Newf("open %s: no such file", path)
		}
		return l.Derive(label, l.Values())
	}
}

// 5x5 DEM whose border is nodata, interior valid; interior split 311 / 0.
func vegetationFixture(t *testing.T) (veg, dem *raster.Layer) {
	t.Helper()
	const nd = -9999
	demData := make([]float64, 25)
	vegData := make([]float64, 25)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			i := r*5 + c
			if r == 0 || r == 4 || c == 0 || c == 4 {
				demData[i] = nd
				vegData[i] = 311
				continue
			}
			demData[i] = float64(100 + i)
			if c <= 2 {
				vegData[i] = 311
			}
		}
	}
	return layer(t, "veg", 5, 5, vegData), layer(t, "dem", 5, 5, demData)
}

func TestKernel_Normalization(t *testing.T) {
	for _, w := range []int{0, 1, 2, 3} {
		k := NewKernel(w)
		sum := 0.0
		for _, v := range k.Weights() {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "w=%d", w)
	}

	// no boundary effect at the centre of a 5x5 all-T grid with w=2
	codes := make([]int, 25)
	for i := range codes {
		codes[i] = 7
	}
	d := NewKernel(2).Density(codes, 5, 5, 7)
	assert.Equal(t, 100.0, d[12])
	// corner sees a 3x3 quarter of the 5x5 window
	assert.InDelta(t, 100*9.0/25, d[0], 1e-12)
}

func TestKernel_DensityMatchesBruteForce(t *testing.T) {
	rows, cols := 6, 7
	codes := make([]int, rows*cols)
	for i := range codes {
		codes[i] = (i * 7 % 5) % 3
	}
	k := NewKernel(1)
	got := k.Density(codes, rows, cols, 2)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			count := 0
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					rr, cc := r+dr, c+dc
					if rr < 0 || rr >= rows || cc < 0 || cc >= cols {
						continue
					}
					if codes[rr*cols+cc] == 2 {
						count++
					}
				}
			}
			assert.InDelta(t, 100*float64(count)/9, got[r*cols+c], 1e-9)
		}
	}
}

func TestVegetationFromLayers(t *testing.T) {
	veg, dem := vegetationFixture(t)

	c, err := VegetationFromLayers(veg, dem, WithWorkers(2))
	require.NoError(t, err)

	assert.Equal(t, KindVegetation, c.Kind())
	assert.Equal(t, []string{"veg", "perc_0", "perc_311"}, c.Labels())

	mask, ok := c.Mask()
	require.True(t, ok)
	for i := 0; i < 25; i++ {
		want := dem.Valid(i) && veg.Value(i) != 0
		assert.Equal(t, want, mask.Valid[i], "cell %d", i)
	}
	assert.Equal(t, 6, mask.Count())

	vl, _ := c.Layer("veg")
	for i := 0; i < 25; i++ {
		if !mask.Valid[i] {
			assert.Equal(t, 0.0, vl.Value(i), "veg outside mask is zeroed")
		}
	}

	p0, _ := c.Layer("perc_0")
	p311, _ := c.Layer("perc_311")
	for i := 0; i < 25; i++ {
		// every cell of the window is either 0 or 311; zero fill pads the rest
		r, col := i/5, i%5
		inWindow := 0
		for rr := r - 2; rr <= r+2; rr++ {
			for cc := col - 2; cc <= col+2; cc++ {
				if rr >= 0 && rr < 5 && cc >= 0 && cc < 5 {
					inWindow++
				}
			}
		}
		assert.InDelta(t, 100*float64(inWindow)/25, p0.Value(i)+p311.Value(i), 1e-9)
		assert.Equal(t, dem.Georef(), p0.Georef())
	}
	// centre (2,2): 6 cells of 311 in the 5x5 window
	assert.InDelta(t, 100*6.0/25, p311.At(2, 2), 1e-9)
}

func TestVegetation_Errors(t *testing.T) {
	veg, dem := vegetationFixture(t)

	_, err := VegetationFromLayers(veg, dem, WithWindow(-1))
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)

	small := layer(t, "dem", 2, 2, []float64{1, 2, 3, 4})
	_, err = VegetationFromLayers(veg, small)
	var aerr *errors.AlignmentError
	require.ErrorAs(t, err, &aerr)

	gt := testGeoref
	gt.GeoTransform[0] = 5000
	shifted, err := raster.NewLayer(VegLabel, veg.Rows(), veg.Cols(), veg.Values(), raster.WithGeoref(gt))
	require.NoError(t, err)
	_, err = VegetationFromLayers(shifted, dem)
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, VegLabel, aerr.Label)
	assert.Contains(t, aerr.Got, "5000")

	_, err = Vegetation("veg.tif", "dem.tif", WithReader(memReader(map[string]*raster.Layer{"veg.tif": veg})))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dem.tif")
}

func TestTopography(t *testing.T) {
	files := map[string]*raster.Layer{
		"dem.tif":   layer(t, "x", 2, 2, []float64{1, 2, 3, 4}),
		"slope.tif": layer(t, "x", 2, 2, []float64{5, 6, 7, 8}),
	}
	c, err := Topography([]Source{
		{Path: "slope.tif", Label: "slope"},
		{Path: "dem.tif", Label: "dem"},
	}, WithReader(memReader(files)))
	require.NoError(t, err)
	assert.Equal(t, []string{"slope", "dem"}, c.Labels())
	dem, ok := c.Layer("dem")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 4}, dem.Values())

	files["bad.tif"] = layer(t, "x", 1, 4, []float64{1, 2, 3, 4})
	_, err = Topography([]Source{{Path: "dem.tif", Label: "dem"}, {Path: "bad.tif", Label: "bad"}}, WithReader(memReader(files)))
	var aerr *errors.AlignmentError
	require.ErrorAs(t, err, &aerr)

	_, err = Topography(nil)
	require.Error(t, err)
}

func TestClimate(t *testing.T) {
	root := "/data/climate"
	s := RCP45_2021_2040
	files := map[string]*raster.Layer{
		s.Path(root, "MWMT"): layer(t, "x", 1, 2, []float64{20, 21}),
		s.Path(root, "MAP"):  layer(t, "x", 1, 2, []float64{600, 650}),
	}
	assert.Equal(t, filepath.Join(root, "rcp45_2021_2040", "MWMT_202140.tif"), s.Path(root, "MWMT"))

	c, err := Climate(root, s, []string{"MWMT", "MAP"}, WithReader(memReader(files)))
	require.NoError(t, err)
	assert.Equal(t, KindClimate, c.Kind())
	assert.Equal(t, []string{"MWMT", "MAP"}, c.Labels())

	_, err = Climate(root, s, []string{"MWMT", "TD"}, WithReader(memReader(files)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TD_202140.tif")

	assert.Len(t, DefaultClimateVariables, 14)
	assert.Len(t, Scenarios(), 4)
}

func TestMerge_Order(t *testing.T) {
	mk := func(kind Kind, labels ...string) *Catalog {
		c := New(kind)
		for _, l := range labels {
			require.NoError(t, c.Add(layer(t, l, 1, 1, []float64{1})))
		}
		return c
	}
	veg := mk(KindVegetation, "veg", "perc_0")
	veg.SetMask(raster.NewMask(1, 1, true))
	topo := mk(KindTopography, "dem", "slope")
	clim := mk(KindClimate, "MWMT")

	m, err := Merge(clim, veg, topo)
	require.NoError(t, err)
	assert.Equal(t, []string{"dem", "slope", "veg", "perc_0", "MWMT"}, m.Labels())
	_, ok := m.Mask()
	assert.True(t, ok)

	_, err = Merge(topo, mk(KindClimate, "dem"))
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCatalog_AddDuplicate(t *testing.T) {
	c := New(KindTopography)
	require.NoError(t, c.Add(layer(t, "dem", 1, 1, []float64{1})))
	err := c.Add(layer(t, "dem", 1, 1, []float64{2}))
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "topography", c.Kind().String())
	assert.False(t, math.IsNaN(c.Layers()[0].Value(0)))
}
