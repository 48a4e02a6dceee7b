package build

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/castorbuild/castor/internal/digest"
	"golang.org/x/sync/semaphore"
)

// Metadata is the persisted per-artifact record: the composite digest written
// after the last successful run of the owning transform, and how long that
// run took.
type Metadata struct {
	CompositeDigest digest.Digest
	Duration        time.Duration
}

// Context owns the artifact registry, the per-artifact metadata store, the
// group stack, and the shared execution limiter for one build universe.
// Contexts are constructed explicitly; independent builds (and tests) get
// isolation by constructing their own.
type Context struct {
	mu        sync.Mutex
	artifacts map[string]*Artifact
	metadata  map[string]Metadata
	stack     []*Group

	dryRun bool
	sem    *semaphore.Weighted
	env    map[string]string
}

// NewContext returns an empty Context with no concurrency limit.
func NewContext() *Context {
	return &Context{
		artifacts: make(map[string]*Artifact),
		metadata:  make(map[string]Metadata),
		env:       make(map[string]string),
	}
}

// SetDryRun configures whether stale transforms are reported instead of run.
func (c *Context) SetDryRun(dryRun bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dryRun = dryRun
}

// DryRun reports whether the Context is in dry-run mode.
func (c *Context) DryRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dryRun
}

// SetConcurrency bounds how many transform bodies may run simultaneously.
// A limit of zero or less removes the bound. The limiter gates only body
// execution, never dependency evaluation.
func (c *Context) SetConcurrency(limit int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 {
		c.sem = nil
		return
	}
	c.sem = semaphore.NewWeighted(limit)
}

func (c *Context) acquireSlot(ctx context.Context) error {
	c.mu.Lock()
	sem := c.sem
	c.mu.Unlock()
	if sem == nil {
		return nil
	}
	return sem.Acquire(ctx, 1)
}

func (c *Context) releaseSlot() {
	c.mu.Lock()
	sem := c.sem
	c.mu.Unlock()
	if sem != nil {
		sem.Release(1)
	}
}

// SetEnv replaces the global environment variables shared by subprocess
// transforms.
func (c *Context) SetEnv(env map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.env = make(map[string]string, len(env))
	for k, v := range env {
		c.env[k] = v
	}
}

// Env returns a copy of the global environment variables.
func (c *Context) Env() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	env := make(map[string]string, len(c.env))
	for k, v := range c.env {
		env[k] = v
	}
	return env
}

// register adds a named artifact to the registry. Names are unique: a second
// registration under an existing name is a configuration error.
func (c *Context) register(a *Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.artifacts[a.name]; ok {
		return fmt.Errorf("%w: artifact %q is already registered", ErrConfiguration, a.name)
	}
	c.artifacts[a.name] = a
	if g := c.currentGroupLocked(); g != nil && !a.ignoreGroups {
		g.art.members = append(g.art.members, a)
	}
	return nil
}

// Lookup returns the artifact registered under the given name.
func (c *Context) Lookup(name string) (*Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.artifacts[name]
	return a, ok
}

// Artifacts returns all registered artifacts ordered by name.
func (c *Context) Artifacts() []*Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	arts := make([]*Artifact, 0, len(c.artifacts))
	for _, a := range c.artifacts {
		arts = append(arts, a)
	}
	sort.Slice(arts, func(i, j int) bool { return arts[i].name < arts[j].name })
	return arts
}

// Metadata returns the recorded metadata for an artifact name.
func (c *Context) Metadata(name string) (Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.metadata[name]
	return m, ok
}

// SetMetadata installs metadata for a registered artifact, e.g. when loading
// the persisted cache. Entries for unknown names are rejected.
func (c *Context) SetMetadata(name string, m Metadata) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.artifacts[name]; !ok {
		return false
	}
	c.metadata[name] = m
	return true
}

// MetadataSnapshot returns a consistent copy of the metadata store.
func (c *Context) MetadataSnapshot() map[string]Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make(map[string]Metadata, len(c.metadata))
	for name, m := range c.metadata {
		snapshot[name] = m
	}
	return snapshot
}

// commitMetadata atomically records the metadata for a transform's outputs.
func (c *Context) commitMetadata(updates map[string]Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, m := range updates {
		c.metadata[name] = m
	}
}

// invalidate drops the recorded metadata for the given artifact names.
func (c *Context) invalidate(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		delete(c.metadata, name)
	}
}

// currentGroupLocked returns the innermost open group, or nil.
func (c *Context) currentGroupLocked() *Group {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// qualify prefixes a name with the open group path unless the artifact opts
// out of grouping.
func (c *Context) qualify(name string, ignoreGroups bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ignoreGroups {
		return name
	}
	if g := c.currentGroupLocked(); g != nil {
		return g.art.name + "/" + name
	}
	return name
}

// MatchArtifacts returns the artifacts whose names match any of the given
// anchored regular expressions, ordered by name. With matchAll set, every
// registered artifact is returned and the patterns are ignored.
func (c *Context) MatchArtifacts(patterns []string, matchAll bool) ([]*Artifact, error) {
	if matchAll {
		return c.Artifacts(), nil
	}
	regexps := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("%w: invalid artifact pattern %q: %v", ErrConfiguration, p, err)
		}
		regexps = append(regexps, re)
	}
	var matched []*Artifact
	for _, a := range c.Artifacts() {
		for _, re := range regexps {
			if re.MatchString(a.name) {
				matched = append(matched, a)
				break
			}
		}
	}
	return matched, nil
}

// Status is one row of an artifact listing.
type Status struct {
	Name  string
	Stale bool
}

// ListArtifacts reports the staleness of matching artifacts without running
// anything. Groups are omitted; with staleOnly set, up-to-date artifacts are
// filtered out.
func (c *Context) ListArtifacts(patterns []string, matchAll, staleOnly bool) ([]Status, error) {
	arts, err := c.MatchArtifacts(patterns, matchAll)
	if err != nil {
		return nil, err
	}
	var statuses []Status
	for _, a := range arts {
		if a.kind == KindGroup {
			continue
		}
		stale, err := a.Stale()
		if err != nil {
			return nil, err
		}
		if staleOnly && !stale {
			continue
		}
		statuses = append(statuses, Status{Name: a.name, Stale: stale})
	}
	return statuses, nil
}

// Reset clears every transform's memoized outcome so the graph can be
// realized again within the same process, e.g. between builds in tests. It
// must not be called while a build is in flight.
func (c *Context) Reset() {
	seen := make(map[*Transform]struct{})
	for _, a := range c.Artifacts() {
		if a.parent == nil {
			continue
		}
		if _, ok := seen[a.parent]; ok {
			continue
		}
		seen[a.parent] = struct{}{}
		a.parent.reset()
	}
}

// Names returns the names of the given artifacts in order.
func Names(arts []*Artifact) []string {
	names := make([]string, len(arts))
	for i, a := range arts {
		names[i] = a.name
	}
	return names
}

func joinNames(arts []*Artifact) string {
	return strings.Join(Names(arts), ", ")
}
