package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/raster"
	"github.com/YuminosukeSato/firehazard/rasterize"
)

func newRasterizeCmd() *cobra.Command {
	var shpPath, refPath, outPath, column string
	cmd := &cobra.Command{
		Use:   "rasterize",
		Short: "Burn shapefile polygons onto the grid of a reference raster",
		Long: `Burn the polygons of a shapefile onto the grid of a reference
raster. Cells inside a polygon get 1, or the value of --column when set;
later polygons overwrite earlier ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := raster.Read(refPath, "ref")
			if err != nil {
				return err
			}
			var opts []rasterize.Option
			dtype := raster.Int16
			if column != "" {
				opts = append(opts, rasterize.WithColumn(column))
				dtype = raster.Float32
			}
			out, err := rasterize.Shapefile(shpPath, ref, opts...)
			if err != nil {
				return err
			}
			if err := raster.Write(outPath, out, dtype); err != nil {
				return err
			}
			slog.Info("raster written",
				log.LayerKey, out.Label(),
				log.PathKey, outPath,
				log.ShapeKey, out.String(),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&shpPath, "shp", "", "Polygon shapefile")
	cmd.Flags().StringVar(&refPath, "ref", "", "Reference raster defining the grid")
	cmd.Flags().StringVar(&outPath, "out", "fires.tif", "Output GeoTIFF")
	cmd.Flags().StringVar(&column, "column", "", "Numeric attribute to burn instead of 1")
	_ = cmd.MarkFlagRequired("shp")
	_ = cmd.MarkFlagRequired("ref")
	return cmd
}
