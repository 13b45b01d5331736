// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

func TestSetup_CountsByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, counter, closer, err := Setup(types.LogConfig{}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("one")
	logger.With("module", "sampler").Warn("two")
	logger.WithGroup("g").Error("three")
	logger.Error("four")

	assert.Equal(t, map[string]int{"INFO": 1, "WARN": 1, "ERROR": 2}, counter.Counts())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "module=sampler")

	counter.Reset()
	assert.Empty(t, counter.Counts())
}

func TestSetup_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, counter, closer, err := Setup(types.LogConfig{Verbose: true}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("details")
	assert.Contains(t, buf.String(), "details")
	assert.Equal(t, 1, counter.Counts()["DEBUG"])
}

func TestSetup_WritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "observatory.log")
	var buf bytes.Buffer
	logger, _, closer, err := Setup(types.LogConfig{File: path}, &buf)
	require.NoError(t, err)

	logger.Info("to both", "n", 1)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}
