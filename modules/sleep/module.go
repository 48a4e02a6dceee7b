// Package sleep provides the sleep transform. It pauses for a configured
// duration and then writes every file output, which makes it a convenient
// stand-in for slow generators in examples and tests.
package sleep

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/castorbuild/castor/internal/build"
	"github.com/castorbuild/castor/internal/ctxlog"
	"github.com/castorbuild/castor/internal/registry"
)

// Input is the arguments block of a sleep transform.
type Input struct {
	Seconds float64 `hcl:"seconds,optional"`
}

func onRunSleep(ctx context.Context, input *Input, io *build.IO) error {
	logger := ctxlog.FromContext(ctx)

	if d := time.Duration(input.Seconds * float64(time.Second)); d > 0 {
		logger.Debug("😴 sleeping", "duration", d)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, out := range io.Outputs {
		if out.Kind() != build.KindFile {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(out.Name()), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(out.Name(), []byte(out.Name()+"\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Module registers the sleep transform kind.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("sleep", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       onRunSleep,
	})
}
