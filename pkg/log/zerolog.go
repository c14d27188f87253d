package log

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

// InstallZerologWarnings routes errors.Warn to a zerolog logger writing to w.
// Warnings implementing zerolog.LogObjectMarshaler are emitted as a
// structured "warning" object. The returned func restores the previous
// fallback handler.
func InstallZerologWarnings(w io.Writer) func() {
	logger := zerolog.New(w).With().Timestamp().Str("component", "firehazard").Logger()
	errors.SetZerologWarnFunc(func(warning error) {
		event := logger.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			event = event.Object("warning", obj)
		}
		event.Msg(warning.Error())
	})
	return func() { errors.SetZerologWarnFunc(nil) }
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
