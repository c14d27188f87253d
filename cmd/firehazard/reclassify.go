package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/firehazard/catalog"
	"github.com/YuminosukeSato/firehazard/landcover"
	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/raster"
)

func newReclassifyCmd() *cobra.Command {
	var clcPath, outPath string
	var nonBurnable []int
	cmd := &cobra.Command{
		Use:   "reclassify",
		Short: "Zero the non-burnable codes of a CORINE land cover raster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clc, err := raster.Read(clcPath, catalog.VegLabel)
			if err != nil {
				return err
			}
			veg, err := landcover.Reclassify(clc, nonBurnable)
			if err != nil {
				return err
			}
			if err := raster.Write(outPath, veg, raster.Int16); err != nil {
				return err
			}
			slog.Info("raster written", log.LayerKey, veg.Label(), log.PathKey, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&clcPath, "clc", "", "CORINE level-3 land cover raster")
	cmd.Flags().StringVar(&outPath, "out", "veg.tif", "Output vegetation raster")
	cmd.Flags().IntSliceVar(&nonBurnable, "non-burnable", landcover.NonBurnable, "CLC codes set to 0")
	_ = cmd.MarkFlagRequired("clc")
	return cmd
}
