package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

func TestNewLogger_CloudLoggingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Info("layer read", LayerKey, "dem")

	out := buf.String()
	assert.Contains(t, out, `"severity":"INFO"`)
	assert.Contains(t, out, `"message":"layer read"`)
	assert.Contains(t, out, `"raster.label":"dem"`)
	assert.Contains(t, out, "logging.googleapis.com/sourceLocation")
}

func TestErrFmtHandler_AddsStacktrace(t *testing.T) {
	logger, capture := NewTestLogger(slog.LevelDebug)
	err := errors.NewInsufficientDataError("sampling.Draw", "presence", 0, 1)
	logger.Error("sampling failed", ErrAttr(err))

	entries, perr := capture.Entries()
	require.NoError(t, perr)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0][StacktraceAttrKey])
	assert.True(t, capture.ContainsMessage("sampling failed"))
}

func TestCapture_LevelFiltering(t *testing.T) {
	logger, capture := NewTestLogger(slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown", ValidPixelsKey, 12)

	assert.False(t, capture.ContainsMessage("hidden"))
	assert.True(t, capture.ContainsField(ValidPixelsKey, 12.0))

	capture.Clear()
	assert.Empty(t, capture.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstallZerologWarnings(t *testing.T) {
	var buf bytes.Buffer
	restore := InstallZerologWarnings(&buf)
	defer restore()

	errors.Warn(errors.NewUnmappedCodeWarning("fuel", 999, 2))

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"code":999`)
	assert.Contains(t, out, "no entry in fuel lookup")
}
