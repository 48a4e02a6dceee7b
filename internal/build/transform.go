package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/castorbuild/castor/internal/ctxlog"
	"github.com/castorbuild/castor/internal/digest"
	"golang.org/x/sync/errgroup"
)

// IO hands a transform body its resolved artifact handles and the owning
// Context.
type IO struct {
	Context *Context
	Outputs []*Artifact
	Inputs  []*Artifact
}

// Body is the contract for a transform implementation. On success every
// declared file output must exist and be readable; failure is signalled by
// returning an error. Bodies must honor ctx cancellation, including
// terminating any subprocess they launched.
type Body func(ctx context.Context, io *IO) error

// Transform consumes zero or more input artifacts and produces one or more
// output artifacts. It owns the staleness check and the memoized,
// at-most-once execution of its body.
type Transform struct {
	ctx     *Context
	kind    string
	inputs  []*Artifact
	outputs []*Artifact
	body    Body

	// The memoized outcome: the first Realize starts run exactly once, every
	// caller waits on done and observes the same err.
	once sync.Once
	done chan struct{}
	err  error
}

// NewTransform declares a transform producing outputs from inputs. Claiming
// an output that already has a parent transform is a configuration error.
func (c *Context) NewTransform(kind string, outputs, inputs []*Artifact, body Body) (*Transform, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: transform %q declares no outputs", ErrConfiguration, kind)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: transform %q has no body", ErrConfiguration, kind)
	}
	t := &Transform{
		ctx:     c,
		kind:    kind,
		inputs:  inputs,
		outputs: outputs,
		body:    body,
		done:    make(chan struct{}),
	}
	for _, out := range outputs {
		if out.parent != nil {
			return nil, fmt.Errorf("%w: artifact %q already has a parent transform", ErrConfiguration, out.name)
		}
	}
	for _, out := range outputs {
		out.parent = t
	}
	for _, in := range inputs {
		in.children = append(in.children, t)
	}
	return t, nil
}

// Kind returns the transform's kind label.
func (t *Transform) Kind() string { return t.kind }

// Inputs returns the transform's input artifacts in declared order.
func (t *Transform) Inputs() []*Artifact { return t.inputs }

// Outputs returns the transform's output artifacts in declared order.
func (t *Transform) Outputs() []*Artifact { return t.outputs }

// String implements fmt.Stringer.
func (t *Transform) String() string {
	return fmt.Sprintf("%s([%s] -> [%s])", t.kind, joinNames(t.inputs), joinNames(t.outputs))
}

// compositeDigests evaluates the composite digest for every output from the
// current input and output content digests. A composite digest is absent
// when any input digest or the output's own digest is absent.
func (t *Transform) compositeDigests() (map[*Artifact]digest.Digest, error) {
	inputDigests := make([]digest.Digest, 0, len(t.inputs))
	anyAbsent := false
	for _, in := range t.inputs {
		d, err := in.Digest()
		if err != nil {
			return nil, err
		}
		if d.IsZero() {
			anyAbsent = true
			break
		}
		inputDigests = append(inputDigests, d)
	}

	composites := make(map[*Artifact]digest.Digest, len(t.outputs))
	for _, out := range t.outputs {
		if anyAbsent {
			composites[out] = digest.Zero
			continue
		}
		d, err := out.Digest()
		if err != nil {
			return nil, err
		}
		if d.IsZero() {
			composites[out] = digest.Zero
			continue
		}
		composites[out] = digest.Combine(inputDigests, d)
	}
	return composites, nil
}

// StaleOutputs returns the outputs whose composite digest is absent or
// differs from the recorded metadata, in declared order. It is a pure check
// and may be repeated without limit.
func (t *Transform) StaleOutputs() ([]*Artifact, error) {
	composites, err := t.compositeDigests()
	if err != nil {
		return nil, err
	}
	var stale []*Artifact
	for _, out := range t.outputs {
		d := composites[out]
		last, ok := t.ctx.Metadata(out.name)
		if d.IsZero() || !ok || d != last.CompositeDigest {
			stale = append(stale, out)
		}
	}
	return stale, nil
}

// Realize drives the transform to a terminal state. The first caller starts
// the run; all callers, concurrent or sequential, observe the identical
// outcome without the body running again.
func (t *Transform) Realize(ctx context.Context) error {
	t.once.Do(func() {
		go func() {
			t.err = t.run(ctx)
			close(t.done)
		}()
	})
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transform) run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	// Realize all inputs concurrently. The first failure cancels the
	// remaining realizations and propagates immediately.
	g, gctx := errgroup.WithContext(ctx)
	for _, in := range t.inputs {
		in := in
		g.Go(func() error { return in.Realize(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stale, err := t.StaleOutputs()
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		logger.Info("🟢 artifacts are up to date", "artifacts", Names(t.outputs))
		return nil
	}
	if t.ctx.DryRun() {
		logger.Info("🟡 artifacts are stale; transform not run because of dry run", "artifacts", Names(stale))
		return nil
	}
	logger.Info("🟡 artifacts are stale; running transform", "kind", t.kind, "artifacts", Names(stale))

	// Drop the recorded digests before running so an interrupted run leaves
	// the outputs stale on the next invocation.
	t.ctx.invalidate(Names(t.outputs))

	if err := t.ctx.acquireSlot(ctx); err != nil {
		return err
	}
	defer t.ctx.releaseSlot()

	start := time.Now()
	if err := t.body(ctx, &IO{Context: t.ctx, Outputs: t.outputs, Inputs: t.inputs}); err != nil {
		logger.Error("❌ failed to generate artifacts", "artifacts", Names(t.outputs), "error", err)
		return fmt.Errorf("%w: [%s]: %w", ErrBodyExecution, joinNames(t.outputs), err)
	}
	duration := time.Since(start)

	for _, out := range t.outputs {
		if out.kind != KindFile {
			continue
		}
		d, err := out.Digest()
		if err != nil {
			return err
		}
		if d.IsZero() {
			logger.Error("❌ transform did not generate artifact", "artifact", out.name)
			return fmt.Errorf("%w: %s did not generate %s", ErrContractViolation, t, out.name)
		}
	}

	composites, err := t.compositeDigests()
	if err != nil {
		return err
	}
	updates := make(map[string]Metadata, len(composites))
	for out, d := range composites {
		updates[out.name] = Metadata{CompositeDigest: d, Duration: duration}
	}
	t.ctx.commitMetadata(updates)

	logger.Info("✅ generated artifacts", "artifacts", Names(t.outputs), "duration", duration)
	return nil
}

// reset clears the memoized outcome. Only Context.Reset calls this, between
// independent build invocations.
func (t *Transform) reset() {
	t.once = sync.Once{}
	t.done = make(chan struct{})
	t.err = nil
}
