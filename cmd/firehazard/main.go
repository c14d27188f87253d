// Command firehazard builds wildfire susceptibility and hazard rasters.
package main

import (
	"log/slog"
	"os"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
)

func main() {
	if err := execute(); err != nil {
		slog.Error("firehazard failed", log.ErrAttr(err))
		os.Exit(1)
	}
}

func execute() (err error) {
	defer errors.Recover(&err, "firehazard")
	return newRootCmd().Execute()
}
