package catalog

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/schollz/progressbar/v3"

	"github.com/YuminosukeSato/firehazard/core/parallel"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/raster"
)

// Conventional labels.
const (
	VegLabel   = "veg"
	PercPrefix = "perc_"
)

// DefaultTopography lists the terrain layers in column order.
var DefaultTopography = []string{"dem", "slope", "aspect", "easting", "northing", "roughness"}

// DefaultClimateVariables are the ECLIPS 2.0 variables used as features.
var DefaultClimateVariables = []string{
	"MWMT", "TD", "AHM", "SHM", "DDbelow0", "DDabove18", "MAT", "MAP",
	"Tave_sm", "Tmax_sm", "PPT_at", "PPT_sm", "PPT_sp", "PPT_wt",
}

// Scenario is a climate period directory and the file suffix of its layers.
type Scenario struct {
	Name   string
	Suffix string
}

// Known climate scenarios.
var (
	Hist1961_1990   = Scenario{Name: "hist_1961_1990", Suffix: "196190"}
	Hist1991_2010   = Scenario{Name: "hist_1991_2010", Suffix: "199110"}
	RCP45_2011_2020 = Scenario{Name: "rcp45_2011_2020", Suffix: "201120"}
	RCP45_2021_2040 = Scenario{Name: "rcp45_2021_2040", Suffix: "202140"}
)

// Scenarios returns the known scenarios keyed by name.
func Scenarios() map[string]Scenario {
	return map[string]Scenario{
		Hist1961_1990.Name:   Hist1961_1990,
		Hist1991_2010.Name:   Hist1991_2010,
		RCP45_2011_2020.Name: RCP45_2011_2020,
		RCP45_2021_2040.Name: RCP45_2021_2040,
	}
}

// Path returns root/<name>/<variable>_<suffix>.tif.
func (s Scenario) Path(root, variable string) string {
	return filepath.Join(root, s.Name, fmt.Sprintf("%s_%s.tif", variable, s.Suffix))
}

// readAll loads sources in order into a catalog of the given kind and checks
// that every layer aligns with the first.
func readAll(kind Kind, sources []Source, o options) (*Catalog, error) {
	if len(sources) == 0 {
		return nil, errors.NewValueError("catalog."+kind.String(), "no sources")
	}
	c := New(kind)
	for _, src := range sources {
		l, err := o.reader(src.Path, src.Label)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s layer %q", kind, src.Label)
		}
		if err := c.Add(l); err != nil {
			return nil, err
		}
		o.logger.Debug("layer loaded",
			log.CatalogKey, kind.String(),
			log.LayerKey, src.Label,
			log.PathKey, src.Path,
			log.ValidPixelsKey, l.Mask().Count(),
		)
	}
	if err := raster.CheckAligned("catalog."+kind.String(), c.Layers()...); err != nil {
		return nil, err
	}
	return c, nil
}

// Topography loads terrain layers as-is, in source order.
func Topography(sources []Source, opts ...Option) (*Catalog, error) {
	o := newOptions(opts)
	c, err := readAll(KindTopography, sources, o)
	if err != nil {
		return nil, err
	}
	o.logger.Info("topography catalog loaded", log.CatalogKey, KindTopography.String(), log.FeaturesKey, c.Len())
	return c, nil
}

// Climate loads root/<scenario>/<var>_<suffix>.tif for every variable.
func Climate(root string, scenario Scenario, variables []string, opts ...Option) (*Catalog, error) {
	o := newOptions(opts)
	sources := make([]Source, len(variables))
	for i, v := range variables {
		sources[i] = Source{Path: scenario.Path(root, v), Label: v}
	}
	c, err := readAll(KindClimate, sources, o)
	if err != nil {
		return nil, errors.Wrapf(err, "climate scenario %s", scenario.Name)
	}
	o.logger.Info("climate catalog loaded",
		log.CatalogKey, KindClimate.String(),
		log.ScenarioKey, scenario.Name,
		log.FeaturesKey, c.Len(),
	)
	return c, nil
}

// Vegetation reads the vegetation and DEM rasters and builds the vegetation
// catalog with VegetationFromLayers.
func Vegetation(vegPath, demPath string, opts ...Option) (*Catalog, error) {
	o := newOptions(opts)
	veg, err := o.reader(vegPath, VegLabel)
	if err != nil {
		return nil, errors.Wrap(err, "load vegetation")
	}
	dem, err := o.reader(demPath, "dem")
	if err != nil {
		return nil, errors.Wrap(err, "load dem")
	}
	return VegetationFromLayers(veg, dem, opts...)
}

// VegetationFromLayers builds the "veg" class layer and one "perc_<code>"
// neighbourhood density layer per class present inside the combined mask
// (veg != 0 and DEM valid), code 0 included, ascending. Codes outside the
// mask are set to 0 before densities are computed. The combined mask is
// attached to the catalog.
func VegetationFromLayers(veg, dem *raster.Layer, opts ...Option) (*Catalog, error) {
	o := newOptions(opts)
	if o.window < 0 {
		return nil, errors.NewValidationError("window", "must be >= 0", o.window)
	}
	if err := raster.CheckAligned("catalog.Vegetation", dem, veg); err != nil {
		return nil, err
	}

	n := veg.Len()
	codes := make([]int, n)
	mask := raster.NewMask(veg.Rows(), veg.Cols(), false)
	for i := 0; i < n; i++ {
		code := 0
		if veg.Valid(i) {
			code = roundCode(veg.Value(i))
		}
		mask.Valid[i] = code != 0 && dem.Valid(i)
		if mask.Valid[i] {
			codes[i] = code
		}
	}

	distinct := distinctCodes(codes)
	vegValues := make([]float64, n)
	for i, c := range codes {
		vegValues[i] = float64(c)
	}

	c := New(KindVegetation)
	vegLayer, err := dem.Derive(VegLabel, vegValues, raster.WithoutNoData())
	if err != nil {
		return nil, err
	}
	if err := c.Add(vegLayer); err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if o.progress {
		bar = progressbar.Default(int64(len(distinct)), "vegetation density")
	}

	k := NewKernel(o.window)
	densities := make([]*raster.Layer, len(distinct))
	err = parallel.ForEachN(len(distinct), o.workers, func(i int) error {
		data := k.Density(codes, veg.Rows(), veg.Cols(), distinct[i])
		l, err := dem.Derive(fmt.Sprintf("%s%d", PercPrefix, distinct[i]), data, raster.WithoutNoData())
		if err != nil {
			return err
		}
		densities[i] = l
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, errors.Wrap(err, "vegetation density")
	}
	for _, l := range densities {
		if err := c.Add(l); err != nil {
			return nil, err
		}
	}
	c.SetMask(mask)

	o.logger.Info("vegetation catalog built",
		log.CatalogKey, KindVegetation.String(),
		log.FeaturesKey, c.Len(),
		log.ValidPixelsKey, mask.Count(),
		"vegetation.codes", distinct,
	)
	return c, nil
}

func distinctCodes(codes []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}

func roundCode(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
