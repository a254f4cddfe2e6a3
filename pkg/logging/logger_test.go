// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.level.String())
	}
}

func TestNewWritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "testsvc",
		Quiet:   true,
	})

	logger.Info("analysis started", "property_id", "prop-1")
	require.NoError(t, logger.Close())

	filename := "testsvc_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "analysis started", entry["msg"])
	assert.Equal(t, "prop-1", entry["property_id"])
	assert.Equal(t, "testsvc", entry["service"])
}

// The orchestrator installs Slog() as the process-wide default, so
// service packages logging through bare slog must land in the same
// handlers as the wrapper methods.
func TestSlogBridgeSharesHandlers(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "orchestrator",
		Quiet:   true,
	})

	logger.Slog().Info("gatekeeper rules loaded", "rules", 12)
	require.NoError(t, logger.Close())

	filename := "orchestrator_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "gatekeeper rules loaded", entry["msg"])
	assert.Equal(t, "orchestrator", entry["service"])
	assert.Equal(t, float64(12), entry["rules"])
}

func TestLevelFilteringDropsDebug(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "filter",
		Quiet:   true,
	})

	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Close())

	filename := "filter_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assert.NotContains(t, string(data), "dropped")
}

func TestExporterReceivesEntries(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "export",
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Info("uploaded", "chunks", 12)
	logger.Error("failed", "error", "boom")

	// Export runs on its own goroutine.
	require.Eventually(t, func() bool {
		return len(exporter.Entries()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	entries := exporter.Entries()
	assert.Equal(t, "uploaded", entries[0].Message)
	assert.Equal(t, LevelInfo, entries[0].Level)
	assert.Equal(t, 12, entries[0].Attrs["chunks"])
	assert.Equal(t, "export", entries[0].Service)
	assert.Equal(t, LevelError, entries[1].Level)

	require.NoError(t, logger.Close())
}

func TestWithAddsAttributes(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "child",
		Quiet:   true,
	})

	child := logger.With("analysis_id", "run-1")
	child.Info("phase complete")
	require.NoError(t, logger.Close())

	filename := "child_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "run-1")
}

func TestArgsToMapSkipsDanglingKey(t *testing.T) {
	m := argsToMap([]any{"a", 1, "b", "two", "dangling"})
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".pathway/logs"), expandPath("~/.pathway/logs"))
	assert.Equal(t, "/var/log/pathway", expandPath("/var/log/pathway"))
}

func TestDefaultLoggerDoesNotPanic(t *testing.T) {
	logger := Default()
	logger.Info("hello")
	assert.NotNil(t, logger.Slog())
	require.NoError(t, logger.Close())
}
