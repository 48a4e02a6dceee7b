// Package shell provides the shell transform: it runs a subprocess, either
// through /bin/sh or as a plain argv, with make-style placeholders expanded
// against the transform's declared artifacts.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/castorbuild/castor/internal/build"
	"github.com/castorbuild/castor/internal/ctxlog"
	"github.com/castorbuild/castor/internal/registry"
)

// Input is the arguments block of a shell transform. Exactly one of Command
// (run via the shell) or Argv (run directly) must be set.
type Input struct {
	Command string            `hcl:"command,optional"`
	Argv    []string          `hcl:"argv,optional"`
	Env     map[string]string `hcl:"env,optional"`
	Dir     string            `hcl:"dir,optional"`
}

// Placeholders: $@ first output, $< first input, $^ all inputs, $$ literal $.
var placeholder = regexp.MustCompile(`\$([$@<^])`)

func substitute(s string, io *build.IO) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		switch m[1] {
		case '$':
			return "$"
		case '@':
			if len(io.Outputs) == 0 {
				return ""
			}
			return io.Outputs[0].Name()
		case '<':
			if len(io.Inputs) == 0 {
				return ""
			}
			return io.Inputs[0].Name()
		case '^':
			return strings.Join(build.Names(io.Inputs), " ")
		}
		return m
	})
}

func onRunShell(ctx context.Context, input *Input, io *build.IO) error {
	logger := ctxlog.FromContext(ctx)

	if (input.Command == "") == (len(input.Argv) == 0) {
		return fmt.Errorf("exactly one of command or argv must be set")
	}

	for _, out := range io.Outputs {
		if out.Kind() != build.KindFile {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(out.Name()), 0o755); err != nil {
			return err
		}
	}

	var cmd *exec.Cmd
	if input.Command != "" {
		command := substitute(input.Command, io)
		logger.Info("⚙️ running shell command", "command", command)
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", command)
	} else {
		argv := make([]string, len(input.Argv))
		for i, arg := range input.Argv {
			argv[i] = substitute(arg, io)
		}
		logger.Info("⚙️ running subprocess", "argv", argv)
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	}
	cmd.Dir = input.Dir
	cmd.Env = buildEnv(io.Context.Env(), input.Env)

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		logger.Debug("subprocess output", "output", strings.TrimRight(string(output), "\n"))
	}
	if err != nil {
		return fmt.Errorf("subprocess failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildEnv layers the process environment, the build-wide environment, and
// the transform's own entries. Later entries win on duplicate keys.
func buildEnv(global, local map[string]string) []string {
	env := os.Environ()
	for k, v := range global {
		env = append(env, k+"="+v)
	}
	for k, v := range local {
		env = append(env, k+"="+v)
	}
	return env
}

// Module registers the shell transform kind.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("shell", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       onRunShell,
	})
}
