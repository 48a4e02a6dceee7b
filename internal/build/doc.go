// Package build implements the dependency-graph execution engine: artifacts,
// transforms, groups, and the Context that owns them.
//
// A Context is populated during configuration load and then driven by Build.
// Realizing an artifact realizes its owning transform, which concurrently
// realizes its inputs, decides staleness from composite digests, and runs its
// body at most once per Context lifetime. All waiters on the same transform
// observe the same outcome.
package build
