package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castorbuild/castor/internal/app"
)

func TestParseDefaults(t *testing.T) {
	out := &bytes.Buffer{}

	config, shouldExit, err := Parse([]string{"out.txt"}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, app.DefaultBuildPath, config.BuildPath)
	assert.Equal(t, app.DefaultDigestsPath, config.DigestsPath)
	assert.Equal(t, app.DefaultSettingsPath, config.SettingsPath)
	assert.Equal(t, app.DefaultConcurrency, config.Concurrency)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "info", config.LogLevel)
	assert.False(t, config.DryRun)
	assert.Equal(t, []string{"out.txt"}, config.Targets)
}

func TestParseFlags(t *testing.T) {
	out := &bytes.Buffer{}

	config, shouldExit, err := Parse([]string{
		"-f", "build/",
		"-digests", "cache.json",
		"-c", "8",
		"-n",
		"-log-format", "text",
		"-log-level", "debug",
		"first.txt", "second.txt",
	}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, "build/", config.BuildPath)
	assert.Equal(t, "cache.json", config.DigestsPath)
	assert.Equal(t, int64(8), config.Concurrency)
	assert.True(t, config.DryRun)
	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, []string{"first.txt", "second.txt"}, config.Targets)
}

func TestParseNoTargetsPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}

	config, shouldExit, err := Parse(nil, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseListWithoutPatternsMatchesAll(t *testing.T) {
	out := &bytes.Buffer{}

	config, shouldExit, err := Parse([]string{"-list", "-stale"}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.True(t, config.List)
	assert.True(t, config.StaleOnly)
	assert.True(t, config.MatchAll, "listing with no patterns should cover every artifact")
}

func TestParseInvalidLogLevel(t *testing.T) {
	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"-log-level", "loud", "out.txt"}, out)
	require.Error(t, err)
	exitErr, ok := err.(*ExitError)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseInvalidLogFormat(t *testing.T) {
	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"-log-format", "xml", "out.txt"}, out)
	require.Error(t, err)
	exitErr, ok := err.(*ExitError)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParseUnknownFlag(t *testing.T) {
	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"--bogus"}, out)
	require.Error(t, err)
	_, ok := err.(*ExitError)
	assert.True(t, ok)
}
