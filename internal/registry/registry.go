// Package registry maps transform kinds to their registered Go handlers.
// Modules self-register at startup; the registry validates every handler
// signature by reflection before any build work begins, so a malformed
// transform definition is a startup error rather than a runtime surprise.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/castorbuild/castor/internal/build"
)

// Handler is a registered transform implementation. NewInput returns a fresh
// pointer to the handler's argument struct (decoded from the build file);
// Fn must be a func(ctx context.Context, input *T, io *build.IO) error where
// *T matches NewInput's return type.
type Handler struct {
	NewInput func() any
	Fn       any
}

// Module is anything that can register handlers, one per transform kind.
type Module interface {
	Register(r *Registry)
}

// Registry holds the transform-kind handler table.
type Registry struct {
	handlers map[string]*Handler
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// RegisterTransform registers the handler for a transform kind. Registering
// the same kind twice panics; that is a programmer error in module wiring.
func (r *Registry) RegisterTransform(kind string, h *Handler) {
	if _, ok := r.handlers[kind]; ok {
		panic(fmt.Sprintf("transform kind %q registered twice", kind))
	}
	r.handlers[kind] = h
}

// Handler returns the handler registered for a kind.
func (r *Registry) Handler(kind string) (*Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns all registered transform kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	ioType      = reflect.TypeOf((*build.IO)(nil))
)

// Validate checks every registered handler's signature. A handler that
// returns anything besides a single error, or whose input type does not
// match its NewInput constructor, violates the transform contract.
func (r *Registry) Validate() error {
	for _, kind := range r.Kinds() {
		h := r.handlers[kind]
		if err := validateHandler(h); err != nil {
			return fmt.Errorf("%w: transform kind %q: %v", build.ErrContractViolation, kind, err)
		}
	}
	return nil
}

func validateHandler(h *Handler) error {
	if h.Fn == nil {
		return fmt.Errorf("no handler function registered")
	}
	if h.NewInput == nil {
		return fmt.Errorf("no input constructor registered")
	}
	fnType := reflect.TypeOf(h.Fn)
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("handler is %s, not a function", fnType.Kind())
	}
	if fnType.NumIn() != 3 || fnType.In(0) != contextType || fnType.In(2) != ioType {
		return fmt.Errorf("handler must be func(context.Context, *Input, *build.IO) error")
	}
	inputType := reflect.TypeOf(h.NewInput())
	if fnType.In(1) != inputType {
		return fmt.Errorf("handler input parameter is %s but NewInput returns %s", fnType.In(1), inputType)
	}
	if fnType.NumOut() != 1 || fnType.Out(0) != errorType {
		return fmt.Errorf("handler must return exactly one error value")
	}
	return nil
}

// Bind closes the kind's handler over a decoded input struct, producing the
// body the build engine executes.
func (r *Registry) Bind(kind string, input any) (build.Body, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown transform kind %q", build.ErrConfiguration, kind)
	}
	fn := reflect.ValueOf(h.Fn)
	inputVal := reflect.ValueOf(input)
	return func(ctx context.Context, io *build.IO) error {
		results := fn.Call([]reflect.Value{
			reflect.ValueOf(ctx),
			inputVal,
			reflect.ValueOf(io),
		})
		if err, ok := results[0].Interface().(error); ok && err != nil {
			return err
		}
		return nil
	}, nil
}
