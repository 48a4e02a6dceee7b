// Package hcl loads HCL build files and translates them into a populated
// build Context: declared artifacts, opened groups, and transforms bound to
// their registered handlers.
package hcl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/castorbuild/castor/internal/build"
	"github.com/castorbuild/castor/internal/ctxlog"
	"github.com/castorbuild/castor/internal/digest"
	"github.com/castorbuild/castor/internal/fsutil"
	"github.com/castorbuild/castor/internal/registry"
	"github.com/castorbuild/castor/internal/schema"
)

// Extension is the file suffix build files are discovered by.
const Extension = ".hcl"

// Loader translates parsed build files into build Context declarations.
type Loader struct {
	registry *registry.Registry
	evalCtx  *hcl.EvalContext
}

// NewLoader returns a Loader resolving transform kinds against the registry.
func NewLoader(reg *registry.Registry) *Loader {
	return &Loader{registry: reg, evalCtx: newEvalContext()}
}

// newEvalContext exposes the process environment to build file expressions
// as an `env` object, e.g. `url = "https://${env.MIRROR_HOST}/pkg.tar.gz"`.
func newEvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

// Load discovers build files under the given paths, parses them, and applies
// their declarations to the Context. Artifact blocks across all files are
// declared before any transform, so a transform may reference an artifact a
// later file describes.
func (l *Loader) Load(ctx context.Context, c *build.Context, paths ...string) error {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(Extension, paths...)
	if err != nil {
		return fmt.Errorf("discovering build files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no build files found under %v", build.ErrConfiguration, paths)
	}
	logger.Debug("discovered build files", "count", len(files), "files", files)

	parser := hclparse.NewParser()
	roots := make([]*schema.Root, 0, len(files))
	for _, path := range files {
		f, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return fmt.Errorf("%w: parsing %s: %s", build.ErrConfiguration, path, diags.Error())
		}
		var root schema.Root
		if diags := gohcl.DecodeBody(f.Body, l.evalCtx, &root); diags.HasErrors() {
			return fmt.Errorf("%w: decoding %s: %s", build.ErrConfiguration, path, diags.Error())
		}
		roots = append(roots, &root)
	}

	for _, root := range roots {
		if err := l.declareArtifacts(c, root.Artifacts, root.Globs, root.Groups); err != nil {
			return err
		}
	}
	for _, root := range roots {
		if err := l.declareTransforms(ctx, c, root.Transforms, root.Groups); err != nil {
			return err
		}
	}
	return nil
}

// declareArtifacts declares the artifact and glob blocks of one nesting
// level, then recurses into its group blocks with the group open.
func (l *Loader) declareArtifacts(c *build.Context, arts []*schema.Artifact, globs []*schema.Glob, groups []*schema.Group) error {
	for _, a := range arts {
		if err := l.declareArtifact(c, a); err != nil {
			return err
		}
	}
	for _, g := range globs {
		if _, err := c.GlobFiles(g.Pattern); err != nil {
			return err
		}
	}
	for _, sub := range groups {
		g, err := c.OpenGroup(sub.Name)
		if err != nil {
			return err
		}
		err = l.declareArtifacts(c, sub.Artifacts, sub.Globs, sub.Groups)
		g.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) declareArtifact(c *build.Context, s *schema.Artifact) error {
	var opts []build.ArtifactOption
	if s.ExpectedDigest != "" {
		opts = append(opts, build.WithExpectedDigest(digest.Digest(s.ExpectedDigest)))
	}
	if s.IgnoreGroups {
		opts = append(opts, build.IgnoreGroups())
	}
	if s.Abstract {
		if s.AlwaysPresent {
			opts = append(opts, build.AlwaysPresent())
		}
		_, err := c.NewArtifact(s.Name, opts...)
		return err
	}
	if s.AlwaysPresent {
		return fmt.Errorf("%w: artifact %q: always_present applies to abstract artifacts only", build.ErrConfiguration, s.Name)
	}
	_, err := c.NewFile(s.Name, opts...)
	return err
}

func (l *Loader) declareTransforms(ctx context.Context, c *build.Context, transforms []*schema.Transform, groups []*schema.Group) error {
	for _, t := range transforms {
		if err := l.declareTransform(ctx, c, t); err != nil {
			return err
		}
	}
	for _, sub := range groups {
		g, err := c.OpenGroup(sub.Name)
		if err != nil {
			return err
		}
		err = l.declareTransforms(ctx, c, sub.Transforms, sub.Groups)
		g.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) declareTransform(ctx context.Context, c *build.Context, s *schema.Transform) error {
	logger := ctxlog.FromContext(ctx)

	h, ok := l.registry.Handler(s.Kind)
	if !ok {
		return fmt.Errorf("%w: transform %q uses unknown kind %q", build.ErrConfiguration, s.Name, s.Kind)
	}
	input := h.NewInput()
	var argBody hcl.Body = hcl.EmptyBody()
	if s.Arguments != nil {
		argBody = s.Arguments.Body
	}
	if diags := gohcl.DecodeBody(argBody, l.evalCtx, input); diags.HasErrors() {
		return fmt.Errorf("%w: transform %q arguments: %s", build.ErrConfiguration, s.Name, diags.Error())
	}

	outputs, err := l.resolve(c, s.Outputs)
	if err != nil {
		return err
	}
	inputs, err := l.resolve(c, s.Inputs)
	if err != nil {
		return err
	}

	fn, err := l.registry.Bind(s.Kind, input)
	if err != nil {
		return err
	}
	if _, err := c.NewTransform(s.Kind, outputs, inputs, fn); err != nil {
		return fmt.Errorf("transform %q: %w", s.Name, err)
	}
	logger.Debug("declared transform", "kind", s.Kind, "name", s.Name,
		"outputs", build.Names(outputs), "inputs", build.Names(inputs))
	return nil
}

func (l *Loader) resolve(c *build.Context, names []string) ([]*build.Artifact, error) {
	arts := make([]*build.Artifact, 0, len(names))
	for _, name := range names {
		a, err := c.NormalizeArtifact(name)
		if err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	return arts, nil
}
