package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/castorbuild/castor/internal/build"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Message string
}

func TestValidateAcceptsWellFormedHandler(t *testing.T) {
	r := New()
	r.RegisterTransform("echo", &Handler{
		NewInput: func() any { return new(echoInput) },
		Fn: func(ctx context.Context, input *echoInput, io *build.IO) error {
			return nil
		},
	})
	assert.NoError(t, r.Validate())
}

func TestValidateRejectsContractViolations(t *testing.T) {
	cases := []struct {
		name    string
		handler *Handler
	}{
		{
			name: "extra return value",
			handler: &Handler{
				NewInput: func() any { return new(echoInput) },
				Fn: func(ctx context.Context, input *echoInput, io *build.IO) (string, error) {
					return "", nil
				},
			},
		},
		{
			name: "non-error return",
			handler: &Handler{
				NewInput: func() any { return new(echoInput) },
				Fn: func(ctx context.Context, input *echoInput, io *build.IO) string {
					return ""
				},
			},
		},
		{
			name: "missing context parameter",
			handler: &Handler{
				NewInput: func() any { return new(echoInput) },
				Fn: func(input *echoInput, io *build.IO) error {
					return nil
				},
			},
		},
		{
			name: "input type mismatch",
			handler: &Handler{
				NewInput: func() any { return new(struct{ Other bool }) },
				Fn: func(ctx context.Context, input *echoInput, io *build.IO) error {
					return nil
				},
			},
		},
		{
			name:    "nil handler function",
			handler: &Handler{NewInput: func() any { return new(echoInput) }},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			r.RegisterTransform("bad", tc.handler)
			err := r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, build.ErrContractViolation)
		})
	}
}

func TestBindInvokesHandlerWithInput(t *testing.T) {
	r := New()
	var got string
	r.RegisterTransform("echo", &Handler{
		NewInput: func() any { return new(echoInput) },
		Fn: func(ctx context.Context, input *echoInput, io *build.IO) error {
			got = input.Message
			return nil
		},
	})
	require.NoError(t, r.Validate())

	body, err := r.Bind("echo", &echoInput{Message: "hello"})
	require.NoError(t, err)
	require.NoError(t, body(context.Background(), &build.IO{}))
	assert.Equal(t, "hello", got)
}

func TestBindPropagatesHandlerError(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	r.RegisterTransform("fail", &Handler{
		NewInput: func() any { return new(echoInput) },
		Fn: func(ctx context.Context, input *echoInput, io *build.IO) error {
			return boom
		},
	})

	body, err := r.Bind("fail", new(echoInput))
	require.NoError(t, err)
	assert.ErrorIs(t, body(context.Background(), &build.IO{}), boom)
}

func TestBindUnknownKind(t *testing.T) {
	r := New()
	_, err := r.Bind("nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, build.ErrConfiguration)
}

func TestRegisterTwicePanics(t *testing.T) {
	r := New()
	h := &Handler{NewInput: func() any { return new(echoInput) }}
	r.RegisterTransform("echo", h)
	assert.Panics(t, func() { r.RegisterTransform("echo", h) })
}
