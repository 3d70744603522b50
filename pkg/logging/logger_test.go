// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
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

func logFile(dir, service string) string {
	return filepath.Join(dir, service+"_"+time.Now().Format("2006-01-02")+".log")
}

// TestLevelString verifies level names.
func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

// TestNewQuiet verifies a quiet logger without a file destination
// discards output and closes cleanly.
func TestNewQuiet(t *testing.T) {
	logger := New(Config{Quiet: true})
	logger.Info("dropped")
	logger.Error("also dropped")
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close(), "double close is harmless")
}

// TestFileLogging verifies JSON file output with the service attribute.
func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelDebug,
		LogDir:  dir,
		Service: "testsvc",
		Quiet:   true,
	})
	logger.Info("expansion step", "n", 42)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile(dir, "testsvc"))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "expansion step", entry["msg"])
	assert.Equal(t, "testsvc", entry["service"])
	assert.Equal(t, float64(42), entry["n"])
}

// TestLevelFiltering verifies messages below the configured level are
// dropped from the file.
func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "testsvc",
		Quiet:   true,
	})
	logger.Info("filtered out")
	logger.Warn("kept")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile(dir, "testsvc"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filtered out")
	assert.Contains(t, string(data), "kept")
}

// TestWith verifies attribute inheritance.
func TestWith(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "testsvc", Quiet: true})
	child := logger.With("number", "-1,-1,1@53")
	child.Info("resumed")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile(dir, "testsvc"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "-1,-1,1@53")
}

// TestDefault verifies the default logger is usable.
func TestDefault(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger.Slog())
	assert.NoError(t, logger.Close())
}
