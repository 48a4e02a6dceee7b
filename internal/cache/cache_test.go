package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/castorbuild/castor/internal/build"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digests.json")

	c := build.NewContext()
	_, err := c.NewFile("output.txt")
	require.NoError(t, err)
	c.SetMetadata("output.txt", build.Metadata{
		CompositeDigest: "deadbeef",
		Duration:        1500 * time.Millisecond,
	})

	require.NoError(t, Save(path, c))

	restored := build.NewContext()
	_, err = restored.NewFile("output.txt")
	require.NoError(t, err)
	require.NoError(t, Load(path, restored))

	m, ok := restored.Metadata("output.txt")
	require.True(t, ok)
	assert.Equal(t, "deadbeef", m.CompositeDigest.String())
	assert.Equal(t, 1500*time.Millisecond, m.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	c := build.NewContext()
	assert.NoError(t, Load(filepath.Join(t.TempDir(), "missing.json"), c))
}

func TestLoadDiscardsUnknownArtifacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digests.json")

	c := build.NewContext()
	_, err := c.NewFile("known.txt")
	require.NoError(t, err)
	_, err = c.NewFile("forgotten.txt")
	require.NoError(t, err)
	c.SetMetadata("known.txt", build.Metadata{CompositeDigest: "aaaaaaaa"})
	c.SetMetadata("forgotten.txt", build.Metadata{CompositeDigest: "bbbbbbbb"})
	require.NoError(t, Save(path, c))

	restored := build.NewContext()
	_, err = restored.NewFile("known.txt")
	require.NoError(t, err)
	require.NoError(t, Load(path, restored))

	_, ok := restored.Metadata("known.txt")
	assert.True(t, ok)
	_, ok = restored.Metadata("forgotten.txt")
	assert.False(t, ok)
}

func TestVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digests.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "0", "artifacts": {}}`), 0o644))

	err := Load(path, build.NewContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersion)
}

func TestSaveIsSparse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digests.json")

	c := build.NewContext()
	_, err := c.NewFile("empty.txt")
	require.NoError(t, err)
	c.SetMetadata("empty.txt", build.Metadata{})
	require.NoError(t, Save(path, c))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "empty.txt")
}
