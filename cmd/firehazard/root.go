package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/firehazard/internal/config"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
)

// envFile is loaded before flags are read when present.
const envFile = ".env"

func newRootCmd() *cobra.Command {
	v := config.New()
	var restoreWarnings func()

	root := &cobra.Command{
		Use:           "firehazard",
		Short:         "Wildfire susceptibility and hazard mapping",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				slog.Warn("could not load env file", "path", envFile, log.ErrAttr(err))
			}
			if err := log.SetupLogger(v.GetString("log_level")); err != nil {
				return err
			}
			restoreWarnings = log.InstallZerologWarnings(os.Stderr)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if restoreWarnings != nil {
				restoreWarnings()
			}
		},
	}

	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().IntP("workers", "n", 0, "Parallel workers, 0 uses every CPU")
	for key, name := range map[string]string{"log_level": "log-level", "workers": "workers"} {
		if err := v.BindPFlag(key, root.PersistentFlags().Lookup(name)); err != nil {
			panic(errors.Wrapf(err, "bind flag %s", name))
		}
	}

	root.AddCommand(newRunCmd(v), newOrientCmd(), newRasterizeCmd(), newReclassifyCmd())
	return root
}
