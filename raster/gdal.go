package raster

import (
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

var registerOnce sync.Once

func registerDrivers() {
	registerOnce.Do(godal.RegisterAll)
}

// Read loads band 1 of the raster at path into a labelled layer. The dataset
// is closed before returning.
func Read(path, label string) (*Layer, error) {
	registerDrivers()

	ds, err := godal.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open raster %s", path)
	}
	defer ds.Close()

	st := ds.Structure()
	if st.NBands < 1 {
		return nil, errors.NewFormatError(path, "dataset has no bands")
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, errors.NewFormatError(path, "unreadable geotransform: "+err.Error())
	}

	band := ds.Bands()[0]
	data := make([]float64, st.SizeX*st.SizeY)
	if err := band.Read(0, 0, data, st.SizeX, st.SizeY); err != nil {
		return nil, errors.Wrapf(err, "read band 1 of %s", path)
	}

	opts := []LayerOption{WithGeoref(Georef{GeoTransform: gt, Projection: ds.Projection()})}
	if nd, ok := band.NoData(); ok {
		opts = append(opts, WithNoData(nd))
	}
	l, err := NewLayer(label, st.SizeY, st.SizeX, data, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "build layer from %s", path)
	}
	return l, nil
}

// DataType is the on-disk sample type used by Write.
type DataType = godal.DataType

// Output sample types.
const (
	Float32 = godal.Float32
	Int16   = godal.Int16
	Byte    = godal.Byte
)

// Write stores l as a single-band LZW-compressed tiled GeoTIFF. Invalid cells
// are written as the layer's nodata value.
func Write(path string, l *Layer, dtype DataType) (err error) {
	registerDrivers()

	ds, err := godal.Create(godal.GTiff, path, 1, dtype, l.cols, l.rows,
		godal.CreationOption("COMPRESS=LZW", "TILED=YES"))
	if err != nil {
		return errors.Wrapf(err, "create raster %s", path)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close raster %s", path)
		}
	}()

	if err := ds.SetGeoTransform(l.georef.GeoTransform); err != nil {
		return errors.Wrapf(err, "set geotransform on %s", path)
	}
	if l.georef.Projection != "" {
		if err := ds.SetProjection(l.georef.Projection); err != nil {
			return errors.Wrapf(err, "set projection on %s", path)
		}
	}

	band := ds.Bands()[0]
	buf := l.Values()
	if l.hasNoData {
		if err := band.SetNoData(l.noData); err != nil {
			return errors.Wrapf(err, "set nodata on %s", path)
		}
		for i, ok := range l.mask.Valid {
			if !ok {
				buf[i] = l.noData
			}
		}
	}
	if err := band.Write(0, 0, buf, l.cols, l.rows); err != nil {
		return errors.Wrapf(err, "write band 1 of %s", path)
	}
	return nil
}
