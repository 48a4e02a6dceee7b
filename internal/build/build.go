package build

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Build realizes the named target artifacts, recursively realizing their
// transitive dependencies. Independent subtrees run concurrently; the first
// failure cancels the in-flight remainder. Successfully completed transforms
// keep their committed metadata even when a sibling subtree fails.
func Build(ctx context.Context, c *Context, targets []string) error {
	arts := make([]*Artifact, 0, len(targets))
	for _, name := range targets {
		a, ok := c.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: unknown artifact %q", ErrConfiguration, name)
		}
		arts = append(arts, a)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range arts {
		a := a
		g.Go(func() error { return a.Realize(gctx) })
	}
	return g.Wait()
}
