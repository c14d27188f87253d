// Package config loads the pipeline run configuration from a YAML file,
// FIREHAZARD_* environment variables and bound CLI flags through viper.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/firehazard/landcover"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
)

// EnvPrefix prefixes every environment override, e.g. FIREHAZARD_SAMPLING_SEED.
const EnvPrefix = "FIREHAZARD"

// Config holds all settings of one pipeline run.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Workers  int    `mapstructure:"workers"`
	Progress bool   `mapstructure:"progress"`

	Topography Topography `mapstructure:"topography"`
	Vegetation Vegetation `mapstructure:"vegetation"`
	Climate    Climate    `mapstructure:"climate"`
	Fires      Fires      `mapstructure:"fires"`
	Sampling   Sampling   `mapstructure:"sampling"`
	Model      Model      `mapstructure:"model"`
	Hazard     Hazard     `mapstructure:"hazard"`
	Output     Output     `mapstructure:"output"`
}

// Topography lists terrain layers read from Dir/<label>.tif.
type Topography struct {
	Dir    string   `mapstructure:"dir"`
	Layers []string `mapstructure:"layers"`
}

// Path returns the raster path of label.
func (t Topography) Path(label string) string {
	return filepath.Join(t.Dir, label+".tif")
}

// Vegetation points at the vegetation raster and the reference DEM. When CLC
// is set, the CORINE raster is read instead of Path and its NonBurnable codes
// are set to 0.
type Vegetation struct {
	Path        string `mapstructure:"path"`
	CLC         string `mapstructure:"clc"`
	NonBurnable []int  `mapstructure:"non_burnable"`
	DEM         string `mapstructure:"dem"`
	Window      int    `mapstructure:"window"`
}

// Climate selects the present scenario and an optional future one.
type Climate struct {
	Root      string   `mapstructure:"root"`
	Scenario  string   `mapstructure:"scenario"`
	Future    string   `mapstructure:"future"`
	Variables []string `mapstructure:"variables"`
}

// Fires is the fire occurrence source: a GeoTIFF, or a shapefile burned onto
// the DEM grid.
type Fires struct {
	Path   string `mapstructure:"path"`
	Column string `mapstructure:"column"`
}

// IsShapefile reports whether Path is a shapefile.
func (f Fires) IsShapefile() bool {
	return strings.EqualFold(filepath.Ext(f.Path), ".shp")
}

// Sampling configures the balanced sampler.
type Sampling struct {
	Percentage float64 `mapstructure:"percentage"`
	TestSize   float64 `mapstructure:"test_size"`
	Seed       int64   `mapstructure:"seed"`
}

// Model configures the susceptibility classifier.
type Model struct {
	Classifier  string  `mapstructure:"classifier"`
	NEstimators int     `mapstructure:"n_estimators"`
	MaxDepth    int     `mapstructure:"max_depth"`
	MaxFeatures int     `mapstructure:"max_features"`
	C           float64 `mapstructure:"c"`
	MaxIter     int     `mapstructure:"max_iter"`
	Seed        int64   `mapstructure:"seed"`
	// Path of a fitted model to load instead of training.
	Load string `mapstructure:"load"`
}

// Hazard configures the hazard classification. FuelTable must map every
// code of FuelDomain; an empty domain selects the burnable CORINE codes.
type Hazard struct {
	LandCover  string      `mapstructure:"land_cover"`
	Levels     []float64   `mapstructure:"levels"`
	Matrix     [][]int     `mapstructure:"matrix"`
	FuelTable  map[int]int `mapstructure:"fuel_table"`
	FuelDomain []int       `mapstructure:"fuel_domain"`
}

// Output names the output directory and the metrics textfile.
type Output struct {
	Dir         string `mapstructure:"dir"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", 0)
	v.SetDefault("progress", false)

	v.SetDefault("topography.layers", []string{"dem", "slope", "aspect", "easting", "northing", "roughness"})
	v.SetDefault("vegetation.window", 2)
	v.SetDefault("vegetation.non_burnable", landcover.NonBurnable)

	v.SetDefault("climate.scenario", "hist_1991_2010")
	v.SetDefault("climate.variables", []string{
		"MWMT", "TD", "AHM", "SHM", "DDbelow0", "DDabove18", "MAT", "MAP",
		"Tave_sm", "Tmax_sm", "PPT_at", "PPT_sm", "PPT_sp", "PPT_wt",
	})

	v.SetDefault("sampling.percentage", 0.1)
	v.SetDefault("sampling.test_size", 0.33)
	v.SetDefault("sampling.seed", 42)

	v.SetDefault("model.classifier", "random_forest")
	v.SetDefault("model.n_estimators", 50)
	v.SetDefault("model.max_depth", 8)
	v.SetDefault("model.max_features", 0)
	v.SetDefault("model.c", 1.0)
	v.SetDefault("model.max_iter", 100)
	v.SetDefault("model.seed", 42)

	v.SetDefault("hazard.levels", []float64{0.5, 0.75})
	v.SetDefault("hazard.matrix", [][]int{{1, 2, 3, 4}, {2, 3, 4, 5}, {3, 3, 5, 6}})
	v.SetDefault("hazard.fuel_domain", landcover.Corine().Burnable(landcover.NonBurnable))

	v.SetDefault("output.dir", "output")

	// registered so AutomaticEnv can override them on Unmarshal
	for _, key := range []string{
		"topography.dir", "vegetation.path", "vegetation.clc", "vegetation.dem", "climate.root",
		"climate.future", "fires.path", "fires.column", "model.load",
		"hazard.land_cover", "output.metrics_file",
	} {
		v.SetDefault(key, "")
	}
}

// New returns a viper instance with defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadFile reads path into a new viper instance and decodes it.
func LoadFile(path string) (*Config, error) {
	v := New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Load(v)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and required paths.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log_level", err.Error(), c.LogLevel)
	}
	required := map[string]string{
		"topography.dir":    c.Topography.Dir,
		"vegetation.dem":    c.Vegetation.DEM,
		"climate.root":      c.Climate.Root,
		"fires.path":        c.Fires.Path,
		"hazard.land_cover": c.Hazard.LandCover,
	}
	for _, key := range sortedKeys(required) {
		if required[key] == "" {
			return errors.NewValidationError(key, "is required", "")
		}
	}
	if c.Vegetation.Path == "" && c.Vegetation.CLC == "" {
		return errors.NewValidationError("vegetation.path", "vegetation.path or vegetation.clc is required", "")
	}
	if len(c.Topography.Layers) == 0 {
		return errors.NewValidationError("topography.layers", "at least one layer is required", c.Topography.Layers)
	}
	if len(c.Climate.Variables) == 0 {
		return errors.NewValidationError("climate.variables", "at least one variable is required", c.Climate.Variables)
	}
	if c.Vegetation.Window < 0 {
		return errors.NewValidationError("vegetation.window", "must be >= 0", c.Vegetation.Window)
	}
	if !(c.Sampling.Percentage > 0 && c.Sampling.Percentage <= 1) {
		return errors.NewValidationError("sampling.percentage", "must be in (0, 1]", c.Sampling.Percentage)
	}
	if !(c.Sampling.TestSize > 0 && c.Sampling.TestSize < 1) {
		return errors.NewValidationError("sampling.test_size", "must be in (0, 1)", c.Sampling.TestSize)
	}
	for i, q := range c.Hazard.Levels {
		if !(q > 0 && q < 1) || (i > 0 && q <= c.Hazard.Levels[i-1]) {
			return errors.NewValidationError("hazard.levels", "must be strictly increasing in (0, 1)", c.Hazard.Levels)
		}
	}
	if len(c.Hazard.Matrix) != len(c.Hazard.Levels)+1 {
		return errors.NewValidationError("hazard.matrix",
			fmt.Sprintf("needs %d rows for %d levels", len(c.Hazard.Levels)+1, len(c.Hazard.Levels)), len(c.Hazard.Matrix))
	}
	for i, row := range c.Hazard.Matrix {
		if len(row) == 0 || len(row) != len(c.Hazard.Matrix[0]) {
			return errors.NewValidationError("hazard.matrix", fmt.Sprintf("row %d is not rectangular", i), row)
		}
	}
	if len(c.Hazard.FuelTable) == 0 {
		return errors.NewValidationError("hazard.fuel_table", "is required", nil)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
