package build

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/castorbuild/castor/internal/digest"
	"golang.org/x/sync/errgroup"
)

// Kind distinguishes the flavors of node in the dependency graph.
type Kind int

const (
	// KindFile is an artifact backed by a file on disk; its digest is the
	// digest of the file's current content.
	KindFile Kind = iota
	// KindAbstract is an artifact with no backing content. Its digest is
	// absent unless it is marked always-present.
	KindAbstract
	// KindGroup is a namespace node; realizing it realizes its members.
	KindGroup
)

// Artifact is a named node in the dependency graph. It is either bare
// (pre-existing, externally supplied) or owned by exactly one transform that
// produces it.
type Artifact struct {
	ctx  *Context
	name string
	kind Kind

	expected     digest.Digest
	present      bool
	ignoreGroups bool

	parent *Transform
	// children lists the transforms that consume this artifact. The list is
	// informational and never used for ownership or lifetime decisions.
	children []*Transform
	members  []*Artifact
}

// ArtifactOption adjusts an artifact at construction time.
type ArtifactOption func(*Artifact)

// WithExpectedDigest declares the digest the artifact's content is expected
// to have, e.g. for verifying downloads.
func WithExpectedDigest(d digest.Digest) ArtifactOption {
	return func(a *Artifact) { a.expected = d }
}

// IgnoreGroups registers the artifact under its bare name even while groups
// are open, so it can be addressed by a stable global name.
func IgnoreGroups() ArtifactOption {
	return func(a *Artifact) { a.ignoreGroups = true }
}

// AlwaysPresent marks an abstract artifact as present, giving it a stable
// digest derived from its name.
func AlwaysPresent() ArtifactOption {
	return func(a *Artifact) { a.present = true }
}

func (c *Context) newArtifact(name string, kind Kind, opts ...ArtifactOption) (*Artifact, error) {
	a := &Artifact{ctx: c, kind: kind}
	for _, opt := range opts {
		opt(a)
	}
	a.name = c.qualify(name, a.ignoreGroups)
	if strings.ContainsAny(a.name, " \t") {
		slog.Warn("artifact name contains whitespace; expect the unexpected", "artifact", a.name)
	}
	if err := c.register(a); err != nil {
		return nil, err
	}
	return a, nil
}

// NewFile declares a file-backed artifact. The name, after group prefixing,
// is also its path relative to the working directory.
func (c *Context) NewFile(name string, opts ...ArtifactOption) (*Artifact, error) {
	return c.newArtifact(name, KindFile, opts...)
}

// NewArtifact declares an abstract artifact with no backing content.
func (c *Context) NewArtifact(name string, opts ...ArtifactOption) (*Artifact, error) {
	return c.newArtifact(name, KindAbstract, opts...)
}

// NormalizeArtifact resolves a name to an artifact, declaring a file
// artifact on first use. Resolution tries the group-qualified name, then the
// bare name (for references across groups), and finally declares a new file
// artifact under the current group.
func (c *Context) NormalizeArtifact(name string) (*Artifact, error) {
	if a, ok := c.Lookup(c.qualify(name, false)); ok {
		return a, nil
	}
	if a, ok := c.Lookup(name); ok {
		return a, nil
	}
	return c.NewFile(name)
}

// GlobFiles declares a file artifact for every path matching the pattern,
// skipping names that are already registered.
func (c *Context) GlobFiles(pattern string) ([]*Artifact, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid glob %q: %v", ErrConfiguration, pattern, err)
	}
	sort.Strings(paths)
	arts := make([]*Artifact, 0, len(paths))
	for _, path := range paths {
		if existing, ok := c.Lookup(c.qualify(path, false)); ok {
			arts = append(arts, existing)
			continue
		}
		a, err := c.NewFile(path)
		if err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	return arts, nil
}

// Name returns the artifact's unique, group-qualified name.
func (a *Artifact) Name() string { return a.name }

// Kind returns the artifact's kind.
func (a *Artifact) Kind() Kind { return a.kind }

// Parent returns the transform that produces this artifact, or nil for bare
// artifacts.
func (a *Artifact) Parent() *Transform { return a.parent }

// Consumers returns the transforms that consume this artifact as an input.
func (a *Artifact) Consumers() []*Transform { return a.children }

// ExpectedDigest returns the declared expected content digest, if any.
func (a *Artifact) ExpectedDigest() digest.Digest { return a.expected }

// Digest recomputes the artifact's current content digest. It is a pure read
// and is never cached across builds; only composite digests are persisted.
func (a *Artifact) Digest() (digest.Digest, error) {
	switch a.kind {
	case KindFile:
		return digest.File(a.name)
	case KindAbstract:
		if a.present {
			return digest.Bytes([]byte(a.name)), nil
		}
		return digest.Zero, nil
	default:
		return digest.Zero, nil
	}
}

// Realize brings the artifact up to date. Generated artifacts delegate to
// their owning transform; a bare file artifact that does not exist fails
// with a missing-input error. Group artifacts realize their members
// concurrently.
func (a *Artifact) Realize(ctx context.Context) error {
	if a.kind == KindGroup {
		g, gctx := errgroup.WithContext(ctx)
		for _, m := range a.members {
			m := m
			g.Go(func() error { return m.Realize(gctx) })
		}
		return g.Wait()
	}
	if a.parent != nil {
		return a.parent.Realize(ctx)
	}
	if a.kind == KindFile {
		d, err := a.Digest()
		if err != nil {
			return err
		}
		if d.IsZero() {
			return fmt.Errorf("%w: %s does not exist and has no transform to generate it", ErrMissingInput, a.name)
		}
	}
	return nil
}

// Stale reports whether the artifact needs regenerating: a generated
// artifact is stale when its owning transform says so or when any of its
// transitive dependencies is stale, a bare file artifact when it is missing.
// The check is side-effect-free.
func (a *Artifact) Stale() (bool, error) {
	if a.kind == KindGroup {
		return false, nil
	}
	if a.parent != nil {
		stale, err := a.parent.StaleOutputs()
		if err != nil {
			return false, err
		}
		for _, s := range stale {
			if s == a {
				return true, nil
			}
		}
		for _, in := range a.parent.inputs {
			upstream, err := in.Stale()
			if err != nil {
				return false, err
			}
			if upstream {
				return true, nil
			}
		}
		return false, nil
	}
	if a.kind == KindFile {
		d, err := a.Digest()
		if err != nil {
			return false, err
		}
		return d.IsZero(), nil
	}
	return false, nil
}

// String implements fmt.Stringer.
func (a *Artifact) String() string {
	switch a.kind {
	case KindFile:
		return fmt.Sprintf("File(%s)", a.name)
	case KindGroup:
		return fmt.Sprintf("Group(%s)", a.name)
	default:
		return fmt.Sprintf("Artifact(%s)", a.name)
	}
}
