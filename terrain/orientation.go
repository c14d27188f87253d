// Package terrain derives orientation layers from a DEM aspect raster.
package terrain

import (
	"math"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
)

// Labels of the derived layers.
const (
	NorthingLabel = "northing"
	EastingLabel  = "easting"
)

// Orientation converts an aspect layer in degrees clockwise from north into
// northing = cos(aspect) and easting = sin(aspect). Invalid cells keep their
// input value so the nodata mask carries over.
func Orientation(aspect *raster.Layer) (northing, easting *raster.Layer, err error) {
	n := aspect.Len()
	north := make([]float64, n)
	east := make([]float64, n)
	for i := 0; i < n; i++ {
		v := aspect.Value(i)
		if !aspect.Valid(i) {
			north[i], east[i] = v, v
			continue
		}
		rad := v * math.Pi / 180
		north[i] = math.Cos(rad)
		east[i] = math.Sin(rad)
	}

	northing, err = aspect.Derive(NorthingLabel, north)
	if err != nil {
		return nil, nil, errors.Wrap(err, "derive northing")
	}
	easting, err = aspect.Derive(EastingLabel, east)
	if err != nil {
		return nil, nil, errors.Wrap(err, "derive easting")
	}
	return northing, easting, nil
}
