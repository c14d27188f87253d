package raster

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

var testGeoref = Georef{
	GeoTransform: [6]float64{260000, 100, 0, 4750000, 0, -100},
	Projection:   "",
}

func TestNewLayer_Mask(t *testing.T) {
	l, err := NewLayer("dem", 2, 3, []float64{
		-9999, 10, 20,
		30, math.NaN(), 50,
	}, WithNoData(-9999), WithGeoref(testGeoref))
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, true, true, false, true}, l.Mask().Valid)
	assert.Equal(t, 4, l.Mask().Count())
	assert.Equal(t, []int{1, 2, 3, 5}, l.Mask().Indices())
	assert.Equal(t, 30.0, l.At(1, 0))
	nd, ok := l.NoData()
	assert.True(t, ok)
	assert.Equal(t, -9999.0, nd)
}

func TestNewLayer_NoNoData(t *testing.T) {
	l, err := NewLayer("veg", 1, 3, []float64{0, -9999, 1})
	require.NoError(t, err)
	assert.Equal(t, 3, l.Mask().Count())
}

func TestLayer_Immutable(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	l, err := NewLayer("a", 2, 2, data)
	require.NoError(t, err)

	data[0] = 100
	values := l.Values()
	values[1] = 100
	mask := l.Mask()
	mask.Valid[2] = false

	assert.Equal(t, []float64{1, 2, 3, 4}, l.Values())
	assert.True(t, l.Valid(2))
}

func TestLayer_Derive(t *testing.T) {
	dem, err := NewLayer("dem", 2, 2, []float64{-1, 5, 6, 7}, WithNoData(-1), WithGeoref(testGeoref))
	require.NoError(t, err)

	perc, err := dem.Derive("perc_0", []float64{0, 50, 100, -1})
	require.NoError(t, err)
	assert.Equal(t, "perc_0", perc.Label())
	assert.Equal(t, testGeoref, perc.Georef())
	assert.Equal(t, []bool{true, true, true, false}, perc.Mask().Valid)
	assert.Equal(t, "dem", dem.Label())

	score, err := dem.Derive("susceptibility", []float64{0, 0, 0, 0}, WithNoData(-5))
	require.NoError(t, err)
	nd, _ := score.NoData()
	assert.Equal(t, -5.0, nd)

	_, err = dem.Derive("bad", []float64{1, 2, 3})
	var alignErr *errors.AlignmentError
	assert.ErrorAs(t, err, &alignErr)
}

func TestCheckAligned(t *testing.T) {
	a, _ := NewLayer("a", 2, 2, make([]float64, 4), WithGeoref(testGeoref))
	b, _ := NewLayer("b", 2, 2, make([]float64, 4), WithGeoref(testGeoref))
	wide, _ := NewLayer("wide", 2, 3, make([]float64, 6), WithGeoref(testGeoref))
	shifted, _ := NewLayer("shifted", 2, 2, make([]float64, 4), WithGeoref(Georef{
		GeoTransform: [6]float64{260100, 100, 0, 4750000, 0, -100},
	}))

	assert.NoError(t, CheckAligned("test", a, b))
	assert.NoError(t, CheckAligned("test", a))

	tests := []struct {
		name  string
		layer *Layer
	}{
		{"shape", wide},
		{"geotransform", shifted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAligned("test", a, b, tt.layer)
			var alignErr *errors.AlignmentError
			require.ErrorAs(t, err, &alignErr)
			assert.Equal(t, tt.layer.Label(), alignErr.Label)
		})
	}
}

func TestMask_And(t *testing.T) {
	a := Mask{Rows: 1, Cols: 3, Valid: []bool{true, true, false}}
	b := Mask{Rows: 1, Cols: 3, Valid: []bool{true, false, true}}
	out, err := a.And(b)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, out.Valid)

	_, err = a.And(NewMask(3, 1, true))
	assert.Error(t, err)
}

func TestReadWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.tif")
	l, err := NewLayer("dem", 2, 3, []float64{-9999, 1.5, 2, 3, 4, 5}, WithNoData(-9999), WithGeoref(testGeoref))
	require.NoError(t, err)
	require.NoError(t, Write(path, l, Float32))

	got, err := Read(path, "dem")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Rows())
	assert.Equal(t, 3, got.Cols())
	assert.Equal(t, l.Values(), got.Values())
	assert.Equal(t, l.Mask().Valid, got.Mask().Valid)
	assert.Equal(t, testGeoref.GeoTransform, got.Georef().GeoTransform)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.tif"), "dem")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.tif")
}
