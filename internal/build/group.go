package build

import "fmt"

// Group is a namespace node. While a group is open, newly declared artifacts
// get its slash-joined path as a name prefix. Groups nest: opening a group
// inside another prefixes the inner name with the outer path.
type Group struct {
	ctx *Context
	art *Artifact
}

// OpenGroup opens the named group and pushes it onto the group stack.
// Reopening a path that already names a group returns the existing group;
// a collision with a non-group artifact is a configuration error.
func (c *Context) OpenGroup(name string) (*Group, error) {
	qualified := c.qualify(name, false)

	c.mu.Lock()
	if existing, ok := c.artifacts[qualified]; ok {
		if existing.kind != KindGroup {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: group %q collides with %s", ErrConfiguration, qualified, existing)
		}
		g := &Group{ctx: c, art: existing}
		c.stack = append(c.stack, g)
		c.mu.Unlock()
		return g, nil
	}
	c.mu.Unlock()

	art, err := c.newArtifact(name, KindGroup)
	if err != nil {
		return nil, err
	}
	g := &Group{ctx: c, art: art}
	c.mu.Lock()
	c.stack = append(c.stack, g)
	c.mu.Unlock()
	return g, nil
}

// Close pops the group off the stack. Groups must be closed in the reverse
// order they were opened; anything else is a programmer error.
func (g *Group) Close() {
	c := g.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stack) == 0 || c.stack[len(c.stack)-1].art != g.art {
		panic(fmt.Sprintf("group %q closed out of order", g.art.name))
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// Name returns the group's full slash-joined path.
func (g *Group) Name() string { return g.art.name }

// Artifact returns the group's node in the registry, e.g. to realize every
// member of the group.
func (g *Group) Artifact() *Artifact { return g.art }
