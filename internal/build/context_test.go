package build

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateArtifactNameRejected(t *testing.T) {
	c := NewContext()
	_, err := c.NewFile("dummy")
	require.NoError(t, err)

	_, err = c.NewFile("dummy")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	// The kind does not matter; the name is taken.
	_, err = c.NewArtifact("dummy")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMultipleParentsRejected(t *testing.T) {
	c := NewContext()
	out, err := c.NewFile("dummy")
	require.NoError(t, err)

	noop := func(ctx context.Context, io *IO) error { return nil }
	_, err = c.NewTransform("test", []*Artifact{out}, nil, noop)
	require.NoError(t, err)

	_, err = c.NewTransform("test", []*Artifact{out}, nil, noop)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "already has a parent")
}

func TestTransformRequiresOutputsAndBody(t *testing.T) {
	c := NewContext()

	_, err := c.NewTransform("test", nil, nil, func(ctx context.Context, io *IO) error { return nil })
	assert.ErrorIs(t, err, ErrConfiguration)

	out, err := c.NewFile("dummy")
	require.NoError(t, err)
	_, err = c.NewTransform("test", []*Artifact{out}, nil, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestMetadataStore(t *testing.T) {
	c := NewContext()
	_, err := c.NewFile("known")
	require.NoError(t, err)

	meta := Metadata{CompositeDigest: "deadbeef", Duration: 3 * time.Second}
	assert.True(t, c.SetMetadata("known", meta))
	assert.False(t, c.SetMetadata("unknown", meta), "entries for unregistered names are rejected")

	got, ok := c.Metadata("known")
	require.True(t, ok)
	assert.Equal(t, meta, got)

	snapshot := c.MetadataSnapshot()
	assert.Equal(t, map[string]Metadata{"known": meta}, snapshot)

	c.invalidate([]string{"known"})
	_, ok = c.Metadata("known")
	assert.False(t, ok)
}

func TestMatchArtifacts(t *testing.T) {
	c := NewContext()
	for _, name := range []string{"data/raw.csv", "data/clean.csv", "report.pdf"} {
		_, err := c.NewFile(name)
		require.NoError(t, err)
	}

	t.Run("patterns anchor at the start", func(t *testing.T) {
		matched, err := c.MatchArtifacts([]string{"data/"}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"data/clean.csv", "data/raw.csv"}, Names(matched))
	})

	t.Run("matchAll ignores patterns", func(t *testing.T) {
		matched, err := c.MatchArtifacts(nil, true)
		require.NoError(t, err)
		assert.Len(t, matched, 3)
	})

	t.Run("invalid pattern is a configuration error", func(t *testing.T) {
		_, err := c.MatchArtifacts([]string{"("}, false)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestListArtifactsLeafFiles(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, "present.txt", "hello")

	c := NewContext()
	_, err := c.NewFile("present.txt")
	require.NoError(t, err)
	_, err = c.NewFile("absent.txt")
	require.NoError(t, err)

	statuses, err := c.ListArtifacts(nil, true, false)
	require.NoError(t, err)
	assert.Equal(t, []Status{
		{Name: "absent.txt", Stale: true},
		{Name: "present.txt", Stale: false},
	}, statuses)

	stale, err := c.ListArtifacts(nil, true, true)
	require.NoError(t, err)
	assert.Equal(t, []Status{{Name: "absent.txt", Stale: true}}, stale)
}

func TestEnvIsCopied(t *testing.T) {
	c := NewContext()
	c.SetEnv(map[string]string{"KEY": "value"})

	env := c.Env()
	env["KEY"] = "mutated"
	assert.Equal(t, "value", c.Env()["KEY"])
}
