// Package cache persists per-artifact metadata (composite digests and run
// durations) between build invocations.
//
// The file is a versioned JSON document. The version tag guards the digest
// algorithm and the record shape: a mismatch is a hard error, never a silent
// migration.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/castorbuild/castor/internal/build"
	"github.com/castorbuild/castor/internal/digest"
)

// Version tags the current cache file format.
const Version = "1"

// ErrVersion marks a cache file written by an incompatible version. It is
// surfaced before any build work begins.
var ErrVersion = errors.New("cache version mismatch")

type entry struct {
	CompositeDigest string  `json:"composite_digest,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

type file struct {
	Version   string           `json:"version"`
	Artifacts map[string]entry `json:"artifacts"`
}

// Load reads the cache file and installs metadata into the Context for every
// artifact name it still knows; entries for unregistered names are
// discarded. A missing file is not an error.
func Load(path string, c *build.Context) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache %s: %w", path, err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding cache %s: %w", path, err)
	}
	if f.Version != Version {
		return fmt.Errorf("%w: expected %q but got %q in %s", ErrVersion, Version, f.Version, path)
	}

	for name, e := range f.Artifacts {
		c.SetMetadata(name, build.Metadata{
			CompositeDigest: digest.Digest(e.CompositeDigest),
			Duration:        time.Duration(e.DurationSeconds * float64(time.Second)),
		})
	}
	return nil
}

// Save writes the Context's current metadata to the cache file. Artifacts
// without metadata are omitted entirely. Save runs even after a failed build
// so already-completed transforms stay cached.
func Save(path string, c *build.Context) error {
	f := file{
		Version:   Version,
		Artifacts: make(map[string]entry),
	}
	for name, m := range c.MetadataSnapshot() {
		if m.CompositeDigest.IsZero() && m.Duration == 0 {
			continue
		}
		f.Artifacts[name] = entry{
			CompositeDigest: m.CompositeDigest.String(),
			DurationSeconds: m.Duration.Seconds(),
		}
	}

	data, err := json.MarshalIndent(f, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache %s: %w", path, err)
	}
	return nil
}
