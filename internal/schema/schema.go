// Package schema defines the Go structs the HCL build files decode into.
package schema

import "github.com/hashicorp/hcl/v2"

// Artifact declares a named artifact ahead of any transform that uses it,
// e.g. to attach an expected digest or to opt out of group prefixing.
type Artifact struct {
	Name           string `hcl:"name,label"`
	Abstract       bool   `hcl:"abstract,optional"`
	AlwaysPresent  bool   `hcl:"always_present,optional"`
	ExpectedDigest string `hcl:"expected_digest,optional"`
	IgnoreGroups   bool   `hcl:"ignore_groups,optional"`
}

// Arguments carries a transform's kind-specific arguments. The body is
// decoded later against the input struct of the registered handler.
type Arguments struct {
	Body hcl.Body `hcl:",remain"`
}

// Transform declares one transform invocation: which kind runs, which
// artifacts it produces, and which it consumes.
type Transform struct {
	Kind      string     `hcl:"kind,label"`
	Name      string     `hcl:"name,label"`
	Outputs   []string   `hcl:"outputs,optional"`
	Inputs    []string   `hcl:"inputs,optional"`
	Arguments *Arguments `hcl:"arguments,block"`
}

// Glob declares a file artifact for every existing path matching the
// pattern, e.g. to feed a whole source tree into one transform.
type Glob struct {
	Pattern string `hcl:"pattern,label"`
}

// Group is a namespace block. Artifacts and transforms declared inside get
// the group's slash-joined path as a name prefix. Groups nest.
type Group struct {
	Name       string       `hcl:"name,label"`
	Artifacts  []*Artifact  `hcl:"artifact,block"`
	Globs      []*Glob      `hcl:"glob,block"`
	Transforms []*Transform `hcl:"transform,block"`
	Groups     []*Group     `hcl:"group,block"`
}

// Root is the top level of a single build file.
type Root struct {
	Artifacts  []*Artifact  `hcl:"artifact,block"`
	Globs      []*Glob      `hcl:"glob,block"`
	Transforms []*Transform `hcl:"transform,block"`
	Groups     []*Group     `hcl:"group,block"`
}
