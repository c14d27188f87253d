// Package pipeline runs the hazard mapping end to end: catalogs, feature
// matrix, balanced sample, susceptibility model and hazard classes, for the
// present climate and an optional future scenario.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/firehazard/catalog"
	"github.com/YuminosukeSato/firehazard/features"
	"github.com/YuminosukeSato/firehazard/hazard"
	"github.com/YuminosukeSato/firehazard/internal/config"
	"github.com/YuminosukeSato/firehazard/internal/observability"
	"github.com/YuminosukeSato/firehazard/landcover"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/raster"
	"github.com/YuminosukeSato/firehazard/rasterize"
	"github.com/YuminosukeSato/firehazard/sampling"
	"github.com/YuminosukeSato/firehazard/susceptibility"
)

// ModelFile is the name of the saved model inside the output directory.
const ModelFile = "model.gob"

// Writer stores a layer with the given sample type.
type Writer func(path string, l *raster.Layer, dtype raster.DataType) error

// Scenario holds the rasters of one climate scenario.
type Scenario struct {
	Name           string
	Susceptibility *raster.Layer
	Hazard         *hazard.Result
}

// Outcome is the result of a run.
type Outcome struct {
	RunID      string
	Report     *susceptibility.Report
	Thresholds []float64
	Scenarios  []Scenario
	Files      []string
}

// Pipeline wires the stages of a run.
type Pipeline struct {
	runID   string
	cfg     *config.Config
	reader  catalog.Reader
	writer  Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReader replaces the GDAL raster reader.
func WithReader(r catalog.Reader) Option {
	return func(p *Pipeline) { p.reader = r }
}

// WithWriter replaces the GeoTIFF writer.
func WithWriter(w Writer) Option {
	return func(p *Pipeline) { p.writer = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRunID sets the run identifier. Defaults to a random UUID.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// New returns a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, reader: raster.Read, writer: raster.Write}
	for _, opt := range opts {
		opt(p)
	}
	if p.runID == "" {
		p.runID = uuid.New().String()
	}
	p.logger = log.OrDefault(p.logger).With(log.RunIDKey, p.runID)
	if p.metrics == nil {
		p.metrics = observability.NewMetrics(nil)
	}
	return p
}

// Metrics returns the metrics of the pipeline.
func (p *Pipeline) Metrics() *observability.Metrics { return p.metrics }

func (p *Pipeline) catalogOptions() []catalog.Option {
	return []catalog.Option{
		catalog.WithReader(p.reader),
		catalog.WithLogger(p.logger),
		catalog.WithWindow(p.cfg.Vegetation.Window),
		catalog.WithProgress(p.cfg.Progress),
		catalog.WithWorkers(p.cfg.Workers),
	}
}

func scenario(name string) (catalog.Scenario, error) {
	s, ok := catalog.Scenarios()[name]
	if !ok {
		return catalog.Scenario{}, errors.NewValidationError("climate.scenario", "unknown scenario", name)
	}
	return s, nil
}

// Run executes every stage and writes the outputs. It stops at the first
// error or when ctx is cancelled between stages.
func (p *Pipeline) Run(ctx context.Context) (out *Outcome, err error) {
	defer errors.Recover(&err, "pipeline.Run")

	cfg := p.cfg
	present, err := scenario(cfg.Climate.Scenario)
	if err != nil {
		return nil, err
	}
	var future *catalog.Scenario
	if cfg.Climate.Future != "" {
		s, err := scenario(cfg.Climate.Future)
		if err != nil {
			return nil, err
		}
		future = &s
	}
	hc, err := p.hazardClassifier()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output dir %s", cfg.Output.Dir)
	}

	out = &Outcome{RunID: p.runID}

	// catalogs
	stage := observability.StartStage(p.metrics, "catalogs")
	cats, mask, err := p.loadCatalogs(present)
	if err != nil {
		return nil, err
	}
	stage.Done()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// features
	stage = observability.StartStage(p.metrics, "features")
	fire, err := p.loadFires(cats[0])
	if err != nil {
		return nil, err
	}
	fm, err := features.Build(mask, fire, cats, features.WithLogger(p.logger), features.WithWorkers(cfg.Workers))
	if err != nil {
		return nil, err
	}
	p.metrics.ValidPixels.Set(float64(fm.Samples()))
	stage.Done()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// model
	stage = observability.StartStage(p.metrics, "model")
	mdl, report, err := p.model(fm)
	if err != nil {
		return nil, err
	}
	out.Report = report
	stage.Done()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// hazard
	stage = observability.StartStage(p.metrics, "hazard")
	land, err := p.reader(cfg.Hazard.LandCover, catalog.VegLabel)
	if err != nil {
		return nil, errors.Wrap(err, "load land cover")
	}
	sc, err := p.score(mdl, hc, fm, land, present.Name, true)
	if err != nil {
		return nil, err
	}
	out.Thresholds = hc.Thresholds()
	out.Scenarios = append(out.Scenarios, *sc)

	if future != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clim, err := catalog.Climate(cfg.Climate.Root, *future, cfg.Climate.Variables, p.catalogOptions()...)
		if err != nil {
			return nil, err
		}
		p.metrics.LayersLoaded.WithLabelValues(catalog.KindClimate.String()).Add(float64(clim.Len()))
		ffm, err := features.WithClimate(fm, clim, features.WithLogger(p.logger), features.WithWorkers(cfg.Workers))
		if err != nil {
			return nil, err
		}
		sc, err := p.score(mdl, hc, ffm, land, future.Name, false)
		if err != nil {
			return nil, err
		}
		out.Scenarios = append(out.Scenarios, *sc)
	}
	stage.Done()

	for _, s := range out.Scenarios {
		files, err := p.write(s)
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, files...)
	}
	if cfg.Model.Load == "" {
		path := filepath.Join(cfg.Output.Dir, ModelFile)
		if err := mdl.Save(path); err != nil {
			return nil, err
		}
		out.Files = append(out.Files, path)
	}
	if cfg.Output.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return nil, err
		}
		out.Files = append(out.Files, cfg.Output.MetricsFile)
	}

	p.logger.Info("pipeline finished",
		log.ScenarioKey, present.Name,
		"output.files", len(out.Files),
	)
	return out, nil
}

// loadCatalogs returns the topography, vegetation and climate catalogs in
// that order and the vegetation mask.
func (p *Pipeline) loadCatalogs(present catalog.Scenario) ([]*catalog.Catalog, raster.Mask, error) {
	cfg := p.cfg
	opts := p.catalogOptions()

	sources := make([]catalog.Source, len(cfg.Topography.Layers))
	for i, label := range cfg.Topography.Layers {
		sources[i] = catalog.Source{Path: cfg.Topography.Path(label), Label: label}
	}
	topo, err := catalog.Topography(sources, opts...)
	if err != nil {
		return nil, raster.Mask{}, err
	}
	vegLayer, err := p.loadVegetation()
	if err != nil {
		return nil, raster.Mask{}, err
	}
	dem, err := p.reader(cfg.Vegetation.DEM, "dem")
	if err != nil {
		return nil, raster.Mask{}, errors.Wrap(err, "load dem")
	}
	veg, err := catalog.VegetationFromLayers(vegLayer, dem, opts...)
	if err != nil {
		return nil, raster.Mask{}, err
	}
	clim, err := catalog.Climate(cfg.Climate.Root, present, cfg.Climate.Variables, opts...)
	if err != nil {
		return nil, raster.Mask{}, err
	}
	cats := []*catalog.Catalog{topo, veg, clim}
	for _, c := range cats {
		p.metrics.LayersLoaded.WithLabelValues(c.Kind().String()).Add(float64(c.Len()))
	}
	mask, _ := veg.Mask()
	return cats, mask, nil
}

// loadVegetation reads the vegetation raster, or the CORINE raster with its
// non-burnable codes set to 0.
func (p *Pipeline) loadVegetation() (*raster.Layer, error) {
	v := p.cfg.Vegetation
	if v.CLC == "" {
		l, err := p.reader(v.Path, catalog.VegLabel)
		if err != nil {
			return nil, errors.Wrap(err, "load vegetation")
		}
		return l, nil
	}
	clc, err := p.reader(v.CLC, catalog.VegLabel)
	if err != nil {
		return nil, errors.Wrap(err, "load corine land cover")
	}
	veg, err := landcover.Reclassify(clc, v.NonBurnable)
	if err != nil {
		return nil, err
	}
	p.logger.Info("non-burnable land cover removed",
		log.PathKey, v.CLC,
		"landcover.non_burnable", len(v.NonBurnable),
	)
	return veg, nil
}

// loadFires reads the fire raster, or burns the fire shapefile onto the
// grid of the first topography layer.
func (p *Pipeline) loadFires(topo *catalog.Catalog) (*raster.Layer, error) {
	f := p.cfg.Fires
	if !f.IsShapefile() {
		l, err := p.reader(f.Path, rasterize.DefaultLabel)
		if err != nil {
			return nil, errors.Wrap(err, "load fires")
		}
		return l, nil
	}
	ref := topo.Layers()[0]
	var opts []rasterize.Option
	if f.Column != "" {
		opts = append(opts, rasterize.WithColumn(f.Column))
	}
	return rasterize.Shapefile(f.Path, ref, opts...)
}

// model trains and evaluates a classifier, or loads a fitted one.
func (p *Pipeline) model(fm *features.Matrix) (*susceptibility.Model, *susceptibility.Report, error) {
	cfg := p.cfg
	sampler, err := sampling.NewSampler(
		sampling.WithPercentage(cfg.Sampling.Percentage),
		sampling.WithTestSize(cfg.Sampling.TestSize),
		sampling.WithSeed(cfg.Sampling.Seed),
		sampling.WithLogger(p.logger),
	)
	if err != nil {
		return nil, nil, err
	}

	var (
		mdl    *susceptibility.Model
		sample *sampling.Sample
	)
	if cfg.Model.Load != "" {
		if mdl, err = susceptibility.Load(cfg.Model.Load, susceptibility.WithLogger(p.logger)); err != nil {
			return nil, nil, err
		}
		if sample, err = sampler.Draw(fm); err != nil {
			return nil, nil, err
		}
	} else {
		mdl, sample, err = susceptibility.Prepare(fm, sampler, classifierConfig(cfg), susceptibility.WithLogger(p.logger))
		if err != nil {
			return nil, nil, err
		}
		if err := mdl.FitSample(sample); err != nil {
			return nil, nil, err
		}
	}
	p.metrics.Samples.WithLabelValues("train").Set(float64(len(sample.YTrain)))
	p.metrics.Samples.WithLabelValues("test").Set(float64(len(sample.YTest)))

	report, err := mdl.Evaluate(sample)
	if err != nil {
		return nil, nil, err
	}
	p.metrics.ModelScore.WithLabelValues("auc_train").Set(report.AUCTrain)
	p.metrics.ModelScore.WithLabelValues("auc_test").Set(report.AUCTest)
	p.metrics.ModelScore.WithLabelValues("mse").Set(report.MSE)
	p.metrics.ModelScore.WithLabelValues("log_loss").Set(report.LogLoss)
	p.metrics.ModelScore.WithLabelValues("accuracy").Set(report.Accuracy)
	return mdl, report, nil
}

func classifierConfig(cfg *config.Config) susceptibility.ClassifierConfig {
	return susceptibility.ClassifierConfig{
		Name:        cfg.Model.Classifier,
		NEstimators: cfg.Model.NEstimators,
		MaxDepth:    cfg.Model.MaxDepth,
		MaxFeatures: cfg.Model.MaxFeatures,
		NJobs:       cfg.Workers,
		C:           cfg.Model.C,
		MaxIter:     cfg.Model.MaxIter,
		Seed:        cfg.Model.Seed,
	}
}

func (p *Pipeline) hazardClassifier() (*hazard.Classifier, error) {
	domain := p.cfg.Hazard.FuelDomain
	if len(domain) == 0 {
		domain = landcover.Corine().Burnable(landcover.NonBurnable)
	}
	table, err := landcover.NewFuelTable(p.cfg.Hazard.FuelTable, domain)
	if err != nil {
		return nil, err
	}
	m, err := hazard.NewLookupMatrix(p.cfg.Hazard.Matrix)
	if err != nil {
		return nil, err
	}
	return hazard.NewClassifier(table,
		hazard.WithLevels(p.cfg.Hazard.Levels),
		hazard.WithMatrix(m),
		hazard.WithLogger(p.logger),
	)
}

// score predicts susceptibility on fm and classifies it. fit freezes the
// hazard thresholds on this scenario.
func (p *Pipeline) score(mdl *susceptibility.Model, hc *hazard.Classifier, fm *features.Matrix, land *raster.Layer, name string, fit bool) (*Scenario, error) {
	susc, err := mdl.Score(fm)
	if err != nil {
		return nil, errors.Wrapf(err, "score scenario %s", name)
	}
	if fit {
		if err := hc.Fit(susc); err != nil {
			return nil, err
		}
	}
	res, err := hc.Classify(susc, land)
	if err != nil {
		return nil, errors.Wrapf(err, "classify scenario %s", name)
	}
	if fit {
		for code, n := range res.Unmapped {
			p.metrics.UnmappedCells.WithLabelValues(strconv.Itoa(code)).Add(float64(n))
		}
	}
	for class, n := range hazard.Counts(res.Hazard) {
		p.metrics.HazardCells.WithLabelValues(name, strconv.Itoa(class)).Set(float64(n))
	}
	return &Scenario{Name: name, Susceptibility: susc, Hazard: res}, nil
}

// write stores the susceptibility as Float32 and the class rasters as Int16.
func (p *Pipeline) write(s Scenario) ([]string, error) {
	dir := p.cfg.Output.Dir
	outputs := []struct {
		layer *raster.Layer
		dtype raster.DataType
	}{
		{s.Susceptibility, raster.Float32},
		{s.Hazard.Susceptibility, raster.Int16},
		{s.Hazard.Fuel, raster.Int16},
		{s.Hazard.Hazard, raster.Int16},
	}
	files := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path := filepath.Join(dir, o.layer.Label()+"_"+s.Name+".tif")
		if err := p.writer(path, o.layer, o.dtype); err != nil {
			return nil, err
		}
		p.logger.Info("raster written", log.LayerKey, o.layer.Label(), log.PathKey, path, log.ScenarioKey, s.Name)
		files = append(files, path)
	}
	return files, nil
}
