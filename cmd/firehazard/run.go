package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/firehazard/internal/config"
	"github.com/YuminosukeSato/firehazard/internal/pipeline"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train the susceptibility model and write hazard rasters",
		Long: `Run the whole pipeline described by a YAML configuration file:
load the topography, vegetation and climate catalogs, build the feature
matrix, train and evaluate the susceptibility model on a balanced sample,
and write susceptibility and hazard GeoTIFFs for the present scenario and
the optional future one. Every key can be overridden with a FIREHAZARD_
environment variable, e.g. FIREHAZARD_SAMPLING_SEED=7.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return errors.Wrapf(err, "read config %s", path)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "firehazard.yaml", "Pipeline configuration file")
	cmd.Flags().StringP("output-dir", "o", "output", "Directory for rasters and the model")
	cmd.Flags().String("future", "", "Future climate scenario to classify with the present thresholds")
	cmd.Flags().String("model", "", "Load a fitted model instead of training")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().Bool("progress", false, "Show a progress bar while computing density layers")
	for key, name := range map[string]string{
		"output.dir":          "output-dir",
		"climate.future":      "future",
		"model.load":          "model",
		"output.metrics_file": "metrics-file",
		"progress":            "progress",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			panic(errors.Wrapf(err, "bind flag %s", name))
		}
	}
	return cmd
}

func runPipeline(ctx context.Context, cfg *config.Config) error {
	out, err := pipeline.New(cfg).Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("susceptibility model report", slog.Any("report", out.Report))
	for _, s := range out.Scenarios {
		slog.Info("scenario classified",
			log.ScenarioKey, s.Name,
			log.ThresholdsKey, out.Thresholds,
			log.ValidPixelsKey, s.Susceptibility.Mask().Count(),
		)
	}
	return nil
}
