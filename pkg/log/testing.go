// Package log provides testing utilities for structured logging.

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
)

// Capture collects JSON log records written by a *slog.Logger so tests can
// assert on messages and fields.
type Capture struct {
	buffer *bytes.Buffer
}

// NewTestLogger returns a JSON slog logger at the given level together with
// the capture it writes into. The handler chain matches NewLogger minus
// source locations.
//
// Example:
//
//	logger, capture := log.NewTestLogger(slog.LevelDebug)
//	logger.Info("catalog built", log.CatalogKey, "vegetation")
//	capture.ContainsField(log.CatalogKey, "vegetation") // true
func NewTestLogger(level slog.Level) (*slog.Logger, *Capture) {
	buffer := &bytes.Buffer{}
	handler := slog.NewJSONHandler(buffer, &slog.HandlerOptions{Level: level})
	return slog.New(WrapByErrFmtHandler(handler)), &Capture{buffer: buffer}
}

// String returns the raw captured output.
func (c *Capture) String() string {
	return c.buffer.String()
}

// Entries parses the captured output into one map per record.
func (c *Capture) Entries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(c.buffer.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any record message contains message.
func (c *Capture) ContainsMessage(message string) bool {
	entries, err := c.Entries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if msg, ok := entry[slog.MessageKey].(string); ok && strings.Contains(msg, message) {
			return true
		}
	}
	return false
}

// ContainsField reports whether any record has key equal to value.
// Numbers decode as float64.
func (c *Capture) ContainsField(key string, value interface{}) bool {
	entries, err := c.Entries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear drops everything captured so far.
func (c *Capture) Clear() {
	c.buffer.Reset()
}
