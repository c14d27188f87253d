package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/raster"
	"github.com/YuminosukeSato/firehazard/terrain"
)

func newOrientCmd() *cobra.Command {
	var aspectPath, outDir string
	cmd := &cobra.Command{
		Use:   "orient",
		Short: "Derive northing and easting rasters from an aspect raster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			aspect, err := raster.Read(aspectPath, "aspect")
			if err != nil {
				return err
			}
			northing, easting, err := terrain.Orientation(aspect)
			if err != nil {
				return err
			}
			for _, l := range []*raster.Layer{northing, easting} {
				path := filepath.Join(outDir, l.Label()+".tif")
				if err := raster.Write(path, l, raster.Float32); err != nil {
					return err
				}
				slog.Info("raster written", log.LayerKey, l.Label(), log.PathKey, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&aspectPath, "aspect", "", "Aspect raster in degrees clockwise from north")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "Output directory")
	_ = cmd.MarkFlagRequired("aspect")
	return cmd
}
