// Package firehazard maps wildfire susceptibility and hazard from aligned
// topography, vegetation and climate rasters.
//
// A run builds three layer catalogs on one grid, copies the cells inside the
// vegetation mask into a feature matrix, draws a balanced presence /
// pseudo-absence sample from historical fires, trains a probabilistic
// classifier and scores every masked cell. The susceptibility surface is
// then cut at quantile thresholds and crossed with fuel classes through a
// small lookup matrix to give ordinal hazard classes.
//
// # Installation
//
//	go install github.com/YuminosukeSato/firehazard/cmd/firehazard@latest
//
// GDAL (>= 3.0) and its headers must be available for the raster packages.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "log"
//
//	    "github.com/YuminosukeSato/firehazard/catalog"
//	    "github.com/YuminosukeSato/firehazard/features"
//	    "github.com/YuminosukeSato/firehazard/raster"
//	    "github.com/YuminosukeSato/firehazard/sampling"
//	    "github.com/YuminosukeSato/firehazard/susceptibility"
//	)
//
//	func main() {
//	    topo, err := catalog.Topography([]catalog.Source{
//	        {Path: "topo/dem.tif", Label: "dem"},
//	        {Path: "topo/slope.tif", Label: "slope"},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    veg, err := catalog.Vegetation("veg.tif", "topo/dem.tif")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fires, err := raster.Read("fires.tif", "fires")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    mask, _ := veg.Mask()
//	    fm, err := features.Build(mask, fires, []*catalog.Catalog{topo, veg})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    sampler, _ := sampling.NewSampler(sampling.WithPercentage(0.1))
//	    model, sample, err := susceptibility.Prepare(fm, sampler, susceptibility.DefaultClassifierConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := model.FitSample(sample); err != nil {
//	        log.Fatal(err)
//	    }
//	    susc, err := model.Score(fm)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    _ = raster.Write("susceptibility.tif", susc, raster.Float32)
//	}
//
// # Packages
//
//   - raster: immutable layers, validity masks, GDAL read and write
//   - catalog: topography, vegetation and climate catalogs and their merge
//   - features: per-pixel feature matrix
//   - sampling: balanced presence / pseudo-absence sampler
//   - susceptibility: classifier training, evaluation and scoring
//   - hazard: quantile thresholds, fuel classes and the lookup matrix
//   - landcover, terrain, rasterize: input preparation
//   - sklearn/*, preprocessing, metrics: the learning toolkit underneath
//   - core/model, core/parallel: interfaces, fitted state, worker helpers
//
// The firehazard command runs the whole pipeline from a YAML file:
//
//	firehazard run --config firehazard.yaml --future rcp45_2021_2040
package firehazard
